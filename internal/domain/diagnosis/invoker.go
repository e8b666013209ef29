package diagnosis

import (
	"context"
	"fmt"
	"math"
	"time"

	"aeye-server-go/internal/domain/oracle"
	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

const opDiagnose = "diagnosis.diagnose"

// Invoker calls the diagnosis oracle once per run. It never retries.
type Invoker struct {
	oracle oracle.DiagnosisOracle
	logger *utils.Logger
}

func NewInvoker(o oracle.DiagnosisOracle, logger *utils.Logger) *Invoker {
	return &Invoker{oracle: o, logger: logger}
}

// Diagnose returns an oracle-kind error for transport failures and for
// confidences outside [0,1].
func (i *Invoker) Diagnose(ctx context.Context, s *screening.Screening, image []byte) (screening.Outcome, error) {
	start := time.Now()
	outcome, err := i.oracle.Diagnose(ctx, s, image)
	if err != nil {
		if ctx.Err() != nil {
			return screening.Outcome{}, err
		}
		return screening.Outcome{}, &errors.Error{
			Kind:    errors.KindOracle,
			Op:      opDiagnose,
			Message: "diagnosis failed: " + errors.Reason(err),
			Cause:   err,
		}
	}

	if math.IsNaN(outcome.Confidence) || outcome.Confidence < 0 || outcome.Confidence > 1 {
		return screening.Outcome{}, errors.New(errors.KindOracle, opDiagnose,
			fmt.Sprintf("diagnosis failed: confidence %v outside [0,1]", outcome.Confidence))
	}

	i.logger.DebugTag("Oracle", "diagnosis returned", map[string]interface{}{
		"result":     outcome.Result,
		"confidence": outcome.Confidence,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return outcome, nil
}
