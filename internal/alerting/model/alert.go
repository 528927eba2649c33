package model

import "time"

// Alert is one open incident. LastNotifiedAt is never before OpenedAt.
type Alert struct {
	ID             string    `json:"id"`
	Severity       Severity  `json:"severity"`
	OpenedAt       time.Time `json:"opened_at"`
	LastNotifiedAt time.Time `json:"last_notified_at"`
}

// NewAlert opens an alert at now with both timestamps equal.
func NewAlert(id string, severity Severity, now time.Time) *Alert {
	return &Alert{ID: id, Severity: severity, OpenedAt: now, LastNotifiedAt: now}
}

// RefreshNotified bumps the last notification time. Earlier times are ignored.
func (a *Alert) RefreshNotified(now time.Time) {
	if now.After(a.LastNotifiedAt) {
		a.LastNotifiedAt = now
	}
}

func (a *Alert) Age(now time.Time) time.Duration { return now.Sub(a.OpenedAt) }

func (a *Alert) SinceNotified(now time.Time) time.Duration { return now.Sub(a.LastNotifiedAt) }
