package oracle

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/utils"
)

// SimulatorOptions tune the random verdicts.
type SimulatorOptions struct {
	ProbabilityDiabetes float64
	QualityPassRate     float64
	MinLatency          time.Duration
	MaxLatency          time.Duration
	// Seed makes the verdict sequence reproducible when non-zero.
	Seed uint64
}

// Simulator answers both oracles with random verdicts. Diagnosis ignores its inputs.
type Simulator struct {
	opts SimulatorOptions
	mu   sync.Mutex
	rng  *rand.Rand
}

func NewSimulator(opts SimulatorOptions) *Simulator {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulator) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Simulator) wait(ctx context.Context) error {
	return utils.SleepContext(ctx, utils.RandomDuration(s.opts.MinLatency, s.opts.MaxLatency))
}

// Diagnose: positive with ProbabilityDiabetes, confidence uniform in [0.5,1.0] at 2 decimals.
func (s *Simulator) Diagnose(ctx context.Context, _ *screening.Screening, _ []byte) (screening.Outcome, error) {
	if err := s.wait(ctx); err != nil {
		return screening.Outcome{}, err
	}
	result := s.float() < s.opts.ProbabilityDiabetes
	confidence := math.Round((0.5+s.float()*0.5)*100) / 100
	return screening.Outcome{Result: result, Confidence: confidence}, nil
}

// CheckQuality passes with QualityPassRate.
func (s *Simulator) CheckQuality(ctx context.Context, _ []byte) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	return s.float() < s.opts.QualityPassRate, nil
}
