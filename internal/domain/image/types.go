package image

import (
	"context"
	"sync/atomic"
)

// QualityChecker is the image-quality capability the gate depends on.
type QualityChecker interface {
	CheckQuality(ctx context.Context, raw []byte) (bool, error)
}

// DecodedImage is owned by the gate for the duration of one run.
type DecodedImage struct {
	Bytes         []byte
	Format        string
	Width         int
	Height        int
	QualityPassed bool
}

// Metrics aggregates gate statistics for observability.
type Metrics struct {
	TotalProcessed  int64 `json:"total_processed"`
	DecodeFailures  int64 `json:"decode_failures"`
	QualityRejected int64 `json:"quality_rejected"`
	OracleFailures  int64 `json:"oracle_failures"`
}

type counters struct {
	total           atomic.Int64
	decodeFailures  atomic.Int64
	qualityRejected atomic.Int64
	oracleFailures  atomic.Int64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		TotalProcessed:  c.total.Load(),
		DecodeFailures:  c.decodeFailures.Load(),
		QualityRejected: c.qualityRejected.Load(),
		OracleFailures:  c.oracleFailures.Load(),
	}
}
