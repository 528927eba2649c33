package remediation

import (
	"context"
	"errors"
	"time"
)

// ErrNoActiveWindow is returned when completing or cancelling a target that
// has no open observation window.
var ErrNoActiveWindow = errors.New("remediation: no active observation window")

// DefaultObservationDuration is how long a fix is watched before it counts.
const DefaultObservationDuration = 30 * time.Minute

// Trigger starts an automated fix for an open alert and returns a reference
// to the change it made.
type Trigger interface {
	Trigger(ctx context.Context, target, alertID string) (changeID string, err error)
}

// ObservationWindow represents the observation period after a fix landed.
type ObservationWindow struct {
	Duration  time.Duration `json:"duration"`
	Target    string        `json:"target"`
	AlertID   string        `json:"alert_id"`
	ChangeID  string        `json:"change_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	IsActive  bool          `json:"is_active"`
}

// ObservationWindowManager tracks at most one window per target. A resolution
// during the window completes it; an escalation cancels it.
type ObservationWindowManager interface {
	StartObservation(ctx context.Context, target, alertID, changeID string, duration time.Duration) error
	CheckObservation(ctx context.Context, target string) (*ObservationWindow, error)
	CompleteObservation(ctx context.Context, target string) (*ObservationWindow, error)
	CancelObservation(ctx context.Context, target string) (*ObservationWindow, error)
}

// NoopObservationWindowManager is used when Redis is not configured.
type NoopObservationWindowManager struct{}

func (NoopObservationWindowManager) StartObservation(context.Context, string, string, string, time.Duration) error {
	return nil
}

func (NoopObservationWindowManager) CheckObservation(context.Context, string) (*ObservationWindow, error) {
	return nil, nil
}

func (NoopObservationWindowManager) CompleteObservation(context.Context, string) (*ObservationWindow, error) {
	return nil, ErrNoActiveWindow
}

func (NoopObservationWindowManager) CancelObservation(context.Context, string) (*ObservationWindow, error) {
	return nil, ErrNoActiveWindow
}
