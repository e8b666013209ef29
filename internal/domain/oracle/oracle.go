// Package oracle provides the diagnosis and image-quality capabilities. The
// pipeline only sees the interfaces; New picks the implementation from config.
package oracle

import (
	"context"
	"fmt"

	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/utils"
)

// DiagnosisOracle returns a verdict and a confidence in [0,1].
type DiagnosisOracle interface {
	Diagnose(ctx context.Context, s *screening.Screening, image []byte) (screening.Outcome, error)
}

// ImageQualityOracle reports whether a photo is good enough to diagnose.
type ImageQualityOracle interface {
	CheckQuality(ctx context.Context, image []byte) (bool, error)
}

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// New builds both oracles from one implementation.
func New(cfg config.OracleConfig, logger *utils.Logger) (DiagnosisOracle, ImageQualityOracle, error) {
	switch cfg.Mode {
	case ModeLocal, "":
		sim := NewSimulator(SimulatorOptions{
			ProbabilityDiabetes: cfg.ProbabilityDiabetes,
			QualityPassRate:     cfg.QualityPassRate,
			MinLatency:          cfg.MinLatency,
			MaxLatency:          cfg.MaxLatency,
		})
		logger.InfoTag("Oracle", "using local simulator (p=%.2f, pass=%.2f)", cfg.ProbabilityDiabetes, cfg.QualityPassRate)
		return sim, sim, nil
	case ModeRemote:
		client, err := NewRemoteClient(cfg.BaseURL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoTag("Oracle", "using remote oracle at %s", cfg.BaseURL)
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown oracle mode %q", cfg.Mode)
	}
}
