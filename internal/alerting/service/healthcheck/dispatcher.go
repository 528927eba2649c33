package healthcheck

import (
	"context"
	"errors"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/database"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/notifier"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/remediation"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/statecache"
	"github.com/qiniu/cloudmonitor/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultNotifyTimeout = 5 * time.Second

// Dispatcher executes engine effects against the outside world. Every call is
// best-effort: failures are logged and counted, never returned to the loop.
type Dispatcher struct {
	Notifier  notifier.Notifier
	Trigger   remediation.Trigger
	Windows   remediation.ObservationWindowManager
	Cache     statecache.AlertCache
	Incidents IncidentRecorder // optional

	NotifyTimeout       time.Duration
	ObservationDuration time.Duration
}

// NewDispatcher fills unset collaborators with their console/no-op versions.
func NewDispatcher(d Dispatcher) *Dispatcher {
	d.withDefaults()
	return &d
}

func (d *Dispatcher) withDefaults() {
	if d.Notifier == nil {
		d.Notifier = notifier.LogNotifier{}
	}
	if d.Trigger == nil {
		d.Trigger = remediation.SimulatedTrigger{}
	}
	if d.Windows == nil {
		d.Windows = remediation.NoopObservationWindowManager{}
	}
	if d.Cache == nil {
		d.Cache = statecache.NoopCache{}
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = defaultNotifyTimeout
	}
	if d.ObservationDuration <= 0 {
		d.ObservationDuration = remediation.DefaultObservationDuration
	}
}

// Dispatch runs effects in order for target.
func (d *Dispatcher) Dispatch(ctx context.Context, target string, effects []model.Effect, now time.Time) {
	for _, e := range effects {
		switch e.Kind {
		case model.EffectNotify:
			d.notify(ctx, target, e, now)
		case model.EffectResolve:
			d.resolve(ctx, target, e, now)
		case model.EffectTriggerRemediation:
			d.remediate(ctx, target, e)
		default:
			log.Warn().Str("target", target).Str("kind", e.Kind.String()).Msg("unknown effect kind")
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, target string, e model.Effect, now time.Time) {
	n := model.NewNotification(target, e, now)
	dctx, cancel := context.WithTimeout(ctx, d.NotifyTimeout)
	err := d.Notifier.Deliver(dctx, n)
	cancel()
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(target, string(e.Reason), "failed").Inc()
		log.Error().Err(err).
			Str("target", target).
			Str("alert_id", e.AlertID).
			Str("recipient", e.Recipient).
			Str("reason", string(e.Reason)).
			Msg("notification delivery failed")
	} else {
		metrics.NotificationsTotal.WithLabelValues(target, string(e.Reason), "delivered").Inc()
	}

	alert := model.Alert{ID: e.AlertID, Severity: e.Severity, OpenedAt: e.OpenedAt, LastNotifiedAt: now}
	switch e.Reason {
	case model.ReasonOpened:
		metrics.AlertTransitionsTotal.WithLabelValues(target, "opened").Inc()
		d.cachePut(ctx, target, alert)
		d.recordOpen(ctx, target, alert)
	case model.ReasonEscalated:
		metrics.AlertTransitionsTotal.WithLabelValues(target, "escalated").Inc()
		d.cancelWindow(ctx, target)
		if d.Incidents != nil && e.PreviousID != "" {
			if err := d.Incidents.Close(ctx, e.PreviousID, e.PreviousOpenedAt, now, database.EndEscalated); err != nil {
				log.Warn().Err(err).Str("target", target).Msg("close escalated incident failed")
			}
		}
		d.cachePut(ctx, target, alert)
		d.recordOpen(ctx, target, alert)
	case model.ReasonResend:
		d.cachePut(ctx, target, alert)
		if d.Incidents != nil {
			if err := d.Incidents.Touch(ctx, e.AlertID, now); err != nil {
				log.Warn().Err(err).Str("target", target).Msg("touch incident failed")
			}
		}
	}
}

func (d *Dispatcher) resolve(ctx context.Context, target string, e model.Effect, now time.Time) {
	metrics.AlertTransitionsTotal.WithLabelValues(target, "resolved").Inc()
	log.Info().
		Str("target", target).
		Str("alert_id", e.AlertID).
		Str("severity", e.Severity.Name()).
		Dur("open_for", now.Sub(e.OpenedAt)).
		Msg("alert resolved")

	if err := d.Cache.Resolve(ctx, target, now); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("resolve cached alert failed")
	}
	if d.Incidents != nil {
		if err := d.Incidents.Close(ctx, e.AlertID, e.OpenedAt, now, database.EndResolved); err != nil {
			log.Warn().Err(err).Str("target", target).Msg("close incident failed")
		}
	}

	window, err := d.Windows.CompleteObservation(ctx, target)
	switch {
	case errors.Is(err, remediation.ErrNoActiveWindow):
		// nothing under observation
	case err != nil:
		log.Warn().Err(err).Str("target", target).Msg("complete observation window failed")
	default:
		metrics.ObservationOutcomesTotal.WithLabelValues(target, "confirmed").Inc()
		log.Info().Str("target", target).Str("change_id", window.ChangeID).Msg("remediation confirmed by resolution")
	}
}

func (d *Dispatcher) cancelWindow(ctx context.Context, target string) {
	window, err := d.Windows.CancelObservation(ctx, target)
	switch {
	case errors.Is(err, remediation.ErrNoActiveWindow):
	case err != nil:
		log.Warn().Err(err).Str("target", target).Msg("cancel observation window failed")
	default:
		metrics.ObservationOutcomesTotal.WithLabelValues(target, "cancelled").Inc()
		log.Info().Str("target", target).Str("change_id", window.ChangeID).Msg("remediation cancelled by escalation")
	}
}

func (d *Dispatcher) remediate(ctx context.Context, target string, e model.Effect) {
	tctx, cancel := context.WithTimeout(ctx, d.NotifyTimeout)
	changeID, err := d.Trigger.Trigger(tctx, target, e.AlertID)
	cancel()
	if err != nil {
		metrics.RemediationsTotal.WithLabelValues(target, "failed").Inc()
		log.Error().Err(err).Str("target", target).Str("alert_id", e.AlertID).Msg("remediation trigger failed")
		return
	}
	metrics.RemediationsTotal.WithLabelValues(target, "triggered").Inc()
	if err := d.Windows.StartObservation(ctx, target, e.AlertID, changeID, d.ObservationDuration); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("start observation window failed")
	}
}

func (d *Dispatcher) cachePut(ctx context.Context, target string, a model.Alert) {
	if err := d.Cache.Put(ctx, target, a); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("cache alert failed")
	}
}

func (d *Dispatcher) recordOpen(ctx context.Context, target string, a model.Alert) {
	if d.Incidents == nil {
		return
	}
	if err := d.Incidents.Open(ctx, target, a); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("record incident failed")
	}
}
