package model

import (
	"fmt"
	"time"
)

// Sample is one reading from a metrics source.
type Sample struct {
	Latency     time.Duration `json:"latency"`
	FailureRate float64       `json:"failure_rate"`
}

// LogEntry is one classification record in the rolling log.
type LogEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	Latency     time.Duration `json:"latency"`
	FailureRate float64       `json:"failure_rate"`
	Severity    Severity      `json:"severity"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] Latency: %dms, Failure Rate: %.1f%%, Alert: %s",
		e.Timestamp.Format("2006-01-02 15:04:05"), e.Latency.Milliseconds(), e.FailureRate*100, e.Severity.Label())
}

// EffectKind tags an Effect.
type EffectKind int

const (
	EffectNotify EffectKind = iota + 1
	EffectTriggerRemediation
	// EffectResolve is bookkeeping only; it never delivers a message.
	EffectResolve
)

func (k EffectKind) String() string {
	switch k {
	case EffectNotify:
		return "notify"
	case EffectTriggerRemediation:
		return "trigger_remediation"
	case EffectResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// NotifyReason says why a notification was emitted.
type NotifyReason string

const (
	ReasonOpened    NotifyReason = "opened"
	ReasonEscalated NotifyReason = "escalated"
	ReasonResend    NotifyReason = "resend"
	ReasonSecondary NotifyReason = "secondary"
	ReasonResolved  NotifyReason = "resolved"
)

// Effect is a side-effect request emitted by the engine for its caller to run.
type Effect struct {
	Kind      EffectKind
	AlertID   string
	Severity  Severity
	Recipient string       // EffectNotify only
	Reason    NotifyReason // EffectNotify only
	OpenedAt  time.Time
	// PreviousID and PreviousOpenedAt describe the replaced alert on escalation.
	PreviousID       string
	PreviousOpenedAt time.Time
}

// Notification is what a sink delivers.
type Notification struct {
	Target    string       `json:"target"`
	AlertID   string       `json:"alert_id"`
	Severity  Severity     `json:"severity"`
	Level     string       `json:"level"`
	Recipient string       `json:"recipient"`
	Reason    NotifyReason `json:"reason"`
	At        time.Time    `json:"at"`
	Message   string       `json:"message"`
}

// NewNotification renders a notify effect for target.
func NewNotification(target string, e Effect, at time.Time) Notification {
	var msg string
	switch e.Reason {
	case ReasonOpened:
		msg = fmt.Sprintf("%s Alert Triggered on %s", e.Severity.Label(), target)
	case ReasonEscalated:
		msg = fmt.Sprintf("%s Alert Triggered (Upgrading) on %s", e.Severity.Label(), target)
	case ReasonResend:
		msg = fmt.Sprintf("Resending %s alert on %s (Still unresolved)", e.Severity.Label(), target)
	case ReasonSecondary:
		msg = fmt.Sprintf("%s alert on %s open since %s", e.Severity.Label(), target, e.OpenedAt.Format(time.RFC3339))
	case ReasonResolved:
		msg = fmt.Sprintf("Issue resolved for %s on %s", e.Severity.Label(), target)
	default:
		msg = fmt.Sprintf("%s alert on %s", e.Severity.Label(), target)
	}
	return Notification{
		Target:    target,
		AlertID:   e.AlertID,
		Severity:  e.Severity,
		Level:     e.Severity.Code(),
		Recipient: e.Recipient,
		Reason:    e.Reason,
		At:        at,
		Message:   msg,
	}
}
