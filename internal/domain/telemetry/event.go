package telemetry

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/utils"
)

const (
	MetricImageVerificationPass   = "image_verification_pass"
	MetricImageVerificationFailed = "image_verification_failed"
	MetricDiagnosisLatency        = "diagnosis_latency"
	MetricConfidence              = "confidence"
	MetricPipelineRejected        = "pipeline_rejected"
)

// Event is one metric sample. Timestamp is filled at emission when zero.
type Event struct {
	Name      string
	Tags      map[string]string
	Value     float64
	Timestamp time.Time
}

// FormatLine renders the line-protocol body "name,k=v,...,source=<source> value=<n> [<unix ns>]".
// Tags are sorted by key and every name, key and value is made metric safe.
// The timestamp is written only when the event carries one.
func FormatLine(ev Event, source string) string {
	keys := make([]string, 0, len(ev.Tags))
	for k := range ev.Tags {
		if k == "source" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(utils.MetricSafe(ev.Name))
	for _, k := range keys {
		b.WriteByte(',')
		b.WriteString(utils.MetricSafe(k))
		b.WriteByte('=')
		b.WriteString(utils.MetricSafe(ev.Tags[k]))
	}
	b.WriteString(",source=")
	b.WriteString(utils.MetricSafe(source))
	b.WriteString(" value=")
	b.WriteString(strconv.FormatFloat(ev.Value, 'f', -1, 64))
	if !ev.Timestamp.IsZero() {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(ev.Timestamp.UnixNano(), 10))
	}
	return b.String()
}

// ImageVerification is emitted by the image gate.
func ImageVerification(passed bool, cameraType string) Event {
	name := MetricImageVerificationPass
	if !passed {
		name = MetricImageVerificationFailed
	}
	return Event{Name: name, Tags: map[string]string{"camera_type": cameraType}, Value: 1}
}

// DiagnosisLatency reports wall-clock milliseconds from request receipt to report completion.
func DiagnosisLatency(s *screening.Screening, diagnose bool, elapsed time.Duration) Event {
	return Event{
		Name: MetricDiagnosisLatency,
		Tags: map[string]string{
			"camera_type":             s.ResolvedCameraType(),
			"gender":                  s.Gender,
			"age_group":               s.AgeGroup(),
			"diabetes_history":        s.DiabetesHistory,
			"family_diabetes_history": s.FamilyDiabetesHistory,
			"diagnose_result":         strconv.FormatBool(diagnose),
		},
		Value: float64(elapsed.Microseconds()) / 1000,
	}
}

// Confidence reports the diagnosis confidence of a completed report.
func Confidence(s *screening.Screening, outcome screening.Outcome) Event {
	return Event{
		Name: MetricConfidence,
		Tags: map[string]string{
			"diagnose_result": strconv.FormatBool(outcome.Result),
			"camera_type":     s.ResolvedCameraType(),
		},
		Value: outcome.Confidence,
	}
}

// PipelineRejected counts a run that ended in a rejection at stage.
func PipelineRejected(stage string) Event {
	return Event{Name: MetricPipelineRejected, Tags: map[string]string{"stage": stage}, Value: 1}
}
