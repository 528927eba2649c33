package metricsource

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// Poisson means for the demo generator. Latencies are in milliseconds,
// failure rates in percent.
const (
	normalLatencyMs       = 300
	normalFailurePct      = 1
	flakyLatencyMs        = 1200
	flakyFailurePct       = 8
	onsetLatencyMs        = 2000
	onsetFailurePct       = 10
	persistentLatencyMs   = 3500
	persistentFailurePct  = 15
	issueProbability      = 0.20
	persistentProbability = 0.50
	recoveryProbability   = 0.30
)

// Synthetic generates demo traffic: mostly healthy readings, occasional
// one-off spikes and sticky incidents. Latency and failure rate evolve as two
// independent state machines.
type Synthetic struct {
	mu      sync.Mutex
	rng     *rand.Rand
	latency dimension
	failure dimension
}

type dimension struct {
	persistent bool
	normal     float64
	flaky      float64
	onset      float64
	sustained  float64
}

// NewSynthetic returns a generator. A zero seed draws one at random.
func NewSynthetic(seed uint64) *Synthetic {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Synthetic{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		latency: dimension{normal: normalLatencyMs, flaky: flakyLatencyMs, onset: onsetLatencyMs, sustained: persistentLatencyMs},
		failure: dimension{normal: normalFailurePct, flaky: flakyFailurePct, onset: onsetFailurePct, sustained: persistentFailurePct},
	}
}

func (s *Synthetic) Next(ctx context.Context) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.latency.step(s.rng)
	pct := s.failure.step(s.rng)
	return model.Sample{
		Latency:     time.Duration(ms) * time.Millisecond,
		FailureRate: float64(pct) / 100,
	}, nil
}

// Persistent reports whether either dimension is inside a sticky incident.
func (s *Synthetic) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.persistent || s.failure.persistent
}

func (d *dimension) step(rng *rand.Rand) int {
	if d.persistent {
		v := poisson(rng, d.sustained)
		if rng.Float64() < recoveryProbability {
			d.persistent = false
		}
		return v
	}
	if rng.Float64() < issueProbability {
		if rng.Float64() < persistentProbability {
			d.persistent = true
			return poisson(rng, d.onset)
		}
		return poisson(rng, d.flaky)
	}
	return poisson(rng, d.normal)
}

// poisson draws from Poisson(lambda): Knuth's product method for small means,
// a rounded normal approximation above that.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	if lambda < 30 {
		limit := math.Exp(-lambda)
		k, p := 0, 1.0
		for {
			p *= rng.Float64()
			if p <= limit {
				return k
			}
			k++
		}
	}
	v := math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64())
	if v < 0 {
		return 0
	}
	return int(v)
}
