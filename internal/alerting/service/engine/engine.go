package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// DefaultRemediationProbability is the per-call chance of a remediation roll
// while an alert is open.
const DefaultRemediationProbability = 0.10

// Options configures effect emission. Recipients are plain identifiers handed
// to the notification sink.
type Options struct {
	PrimaryRecipient       string
	SecondaryRecipient     string
	RemediationProbability float64
	// NotifyOnResolve adds a primary "resolved" notify on closure.
	NotifyOnResolve bool
	// SecondaryEdgeTriggered pages the secondary once per alert instead of on every call.
	SecondaryEdgeTriggered bool
	// Roller returns a value in [0, 1). Defaults to math/rand/v2.
	Roller func() float64
	// NewID generates alert ids. Defaults to uuid.NewString.
	NewID func() string
}

// Engine holds at most one open alert for a single monitored target and
// drives its lifecycle. It performs no I/O.
type Engine struct {
	mu     sync.Mutex
	policy model.Policy
	opts   Options
	open   *model.Alert
	paged  bool
}

// New builds an engine. The policy must already be validated.
func New(policy model.Policy, opts Options) *Engine {
	if opts.Roller == nil {
		opts.Roller = rand.Float64
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.RemediationProbability < 0 {
		opts.RemediationProbability = 0
	}
	return &Engine{policy: policy, opts: opts}
}

// Classify returns the most severe level whose threshold the sample strictly exceeds.
func (e *Engine) Classify(s model.Sample) model.Severity {
	return Classify(e.policy.Thresholds, s.Latency, s.FailureRate)
}

// Current returns a copy of the open alert, or nil.
func (e *Engine) Current() *model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		return nil
	}
	a := *e.open
	return &a
}

// HandleSample applies one sample observed at now and returns the effects the
// caller must execute, in order.
func (e *Engine) HandleSample(s model.Sample, now time.Time) []model.Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	sev := e.Classify(s)
	if sev == model.SeverityNone {
		return e.resolve(now)
	}

	var effects []model.Effect
	switch {
	case e.open == nil:
		e.open = model.NewAlert(e.opts.NewID(), sev, now)
		e.paged = false
		effects = append(effects, e.primary(model.ReasonOpened))
	case sev.Above(e.open.Severity):
		prev := e.open
		e.open = model.NewAlert(e.opts.NewID(), sev, now)
		e.paged = false
		eff := e.primary(model.ReasonEscalated)
		eff.PreviousID = prev.ID
		eff.PreviousOpenedAt = prev.OpenedAt
		effects = append(effects, eff)
	case sev == e.open.Severity:
		if e.open.SinceNotified(now) >= e.policy.Repeats.Resend(sev) {
			e.open.RefreshNotified(now)
			effects = append(effects, e.primary(model.ReasonResend))
		}
	default:
		// lower than the open alert: hold until a full resolution
	}

	if e.open.Age(now) >= e.policy.Repeats.Secondary(e.open.Severity) {
		if !e.opts.SecondaryEdgeTriggered || !e.paged {
			e.paged = true
			effects = append(effects, e.notify(e.opts.SecondaryRecipient, model.ReasonSecondary))
		}
	}

	if e.opts.RemediationProbability > 0 && e.opts.Roller() < e.opts.RemediationProbability {
		effects = append(effects, model.Effect{
			Kind:     model.EffectTriggerRemediation,
			AlertID:  e.open.ID,
			Severity: e.open.Severity,
			OpenedAt: e.open.OpenedAt,
		})
	}
	return effects
}

func (e *Engine) resolve(now time.Time) []model.Effect {
	if e.open == nil {
		return nil
	}
	closed := e.open
	e.open = nil
	e.paged = false

	effects := []model.Effect{{
		Kind:     model.EffectResolve,
		AlertID:  closed.ID,
		Severity: closed.Severity,
		OpenedAt: closed.OpenedAt,
	}}
	if e.opts.NotifyOnResolve {
		effects = append(effects, model.Effect{
			Kind:      model.EffectNotify,
			AlertID:   closed.ID,
			Severity:  closed.Severity,
			Recipient: e.opts.PrimaryRecipient,
			Reason:    model.ReasonResolved,
			OpenedAt:  closed.OpenedAt,
		})
	}
	return effects
}

func (e *Engine) primary(reason model.NotifyReason) model.Effect {
	return e.notify(e.opts.PrimaryRecipient, reason)
}

func (e *Engine) notify(recipient string, reason model.NotifyReason) model.Effect {
	return model.Effect{
		Kind:      model.EffectNotify,
		AlertID:   e.open.ID,
		Severity:  e.open.Severity,
		Recipient: recipient,
		Reason:    reason,
		OpenedAt:  e.open.OpenedAt,
	}
}
