package metricsource

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticIsDeterministicPerSeed(t *testing.T) {
	a, b := NewSynthetic(42), NewSynthetic(42)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		sa, err := a.Next(ctx)
		require.NoError(t, err)
		sb, err := b.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, sa, sb, "sample %d", i)
	}
}

func TestSyntheticProducesIncidents(t *testing.T) {
	s := NewSynthetic(7)
	ctx := context.Background()
	var healthy, spikes int
	for i := 0; i < 2000; i++ {
		sample, err := s.Next(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, sample.Latency, time.Duration(0))
		require.GreaterOrEqual(t, sample.FailureRate, 0.0)
		if sample.Latency < 500*time.Millisecond {
			healthy++
		}
		if sample.Latency > time.Second {
			spikes++
		}
	}
	assert.Greater(t, healthy, 800, "most readings are healthy")
	assert.Greater(t, spikes, 50, "incidents do occur")
}

func TestSyntheticReportsStickyIncidents(t *testing.T) {
	s := NewSynthetic(11)
	assert.False(t, s.Persistent(), "starts healthy")

	ctx := context.Background()
	var sticky, calm int
	for i := 0; i < 2000; i++ {
		_, err := s.Next(ctx)
		require.NoError(t, err)
		if s.Persistent() {
			sticky++
		} else {
			calm++
		}
	}
	assert.Positive(t, sticky)
	assert.Positive(t, calm)
}

func TestSyntheticHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSynthetic(1).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoissonMean(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, lambda := range []float64{1, 8, 300, 3500} {
		const n = 5000
		sum := 0
		for i := 0; i < n; i++ {
			sum += poisson(rng, lambda)
		}
		mean := float64(sum) / n
		assert.InEpsilon(t, lambda, mean, 0.1, "lambda=%v", lambda)
	}
	assert.Equal(t, 0, poisson(rng, 0))
}
