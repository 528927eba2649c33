package model

import (
	"errors"
	"fmt"
	"time"
)

// SecondaryMultiplier scales a severity's resend interval into the age at which
// the secondary on-call is paged.
const SecondaryMultiplier = 5

// DefaultLogCapacity keeps 90 days of samples at a 5 minute cadence.
const DefaultLogCapacity = 90 * 24 * 12

var ErrInvalidPolicy = errors.New("invalid alert policy")

// Threshold is the (latency, failure rate) pair that triggers a severity.
type Threshold struct {
	LatencyLimit     time.Duration `json:"latency_limit"`
	FailureRateLimit float64       `json:"failure_rate_limit"`
}

// Exceeded reports whether either limit is strictly exceeded.
func (t Threshold) Exceeded(latency time.Duration, failureRate float64) bool {
	return latency > t.LatencyLimit || failureRate > t.FailureRateLimit
}

// ThresholdTable maps every alerting severity to its trigger.
type ThresholdTable map[Severity]Threshold

// RepeatTable maps every alerting severity to its minimum resend interval.
type RepeatTable map[Severity]time.Duration

// Resend returns the resend interval for s.
func (r RepeatTable) Resend(s Severity) time.Duration { return r[s] }

// Secondary returns the alert age after which the secondary recipient is paged.
func (r RepeatTable) Secondary(s Severity) time.Duration { return r[s] * SecondaryMultiplier }

// DefaultThresholds are the demo thresholds.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		SeverityCritical: {LatencyLimit: 2000 * time.Millisecond, FailureRateLimit: 0.10},
		SeverityMajor:    {LatencyLimit: 1000 * time.Millisecond, FailureRateLimit: 0.05},
		SeverityLow:      {LatencyLimit: 500 * time.Millisecond, FailureRateLimit: 0.02},
	}
}

// DefaultRepeats are the demo resend intervals.
func DefaultRepeats() RepeatTable {
	return RepeatTable{
		SeverityCritical: 2 * time.Second,
		SeverityMajor:    12 * time.Second,
		SeverityLow:      48 * time.Second,
	}
}

// Policy bundles the static tables an engine classifies and times against.
type Policy struct {
	Thresholds ThresholdTable
	Repeats    RepeatTable
}

func DefaultPolicy() Policy {
	return Policy{Thresholds: DefaultThresholds(), Repeats: DefaultRepeats()}
}

// Validate checks that every alerting severity is configured and that limits
// never increase with severity.
func (p Policy) Validate() error {
	var prev *Threshold
	for _, s := range Levels {
		th, ok := p.Thresholds[s]
		if !ok {
			return fmt.Errorf("%w: missing threshold for %s", ErrInvalidPolicy, s)
		}
		if th.LatencyLimit < 0 || th.FailureRateLimit < 0 {
			return fmt.Errorf("%w: negative threshold for %s", ErrInvalidPolicy, s)
		}
		if prev != nil && (th.LatencyLimit > prev.LatencyLimit || th.FailureRateLimit > prev.FailureRateLimit) {
			return fmt.Errorf("%w: %s threshold exceeds a more severe level", ErrInvalidPolicy, s)
		}
		prev = &th
		if d, ok := p.Repeats[s]; !ok || d <= 0 {
			return fmt.Errorf("%w: resend interval for %s must be positive", ErrInvalidPolicy, s)
		}
	}
	if _, ok := p.Thresholds[SeverityNone]; ok {
		return fmt.Errorf("%w: none cannot carry a threshold", ErrInvalidPolicy)
	}
	return nil
}
