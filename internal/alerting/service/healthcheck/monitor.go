package healthcheck

import (
	"context"
	"errors"
	"time"

	"github.com/qiniu/cloudmonitor/internal/metrics"
	"github.com/qiniu/cloudmonitor/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// persistentSource is implemented by sources that can tell a sticky incident
// from a one-off spike, such as metricsource.Synthetic.
type persistentSource interface {
	Persistent() bool
}

// Monitor drives one target: sample, classify, record, transition, dispatch.
type Monitor struct {
	target     *Target
	dispatcher *Dispatcher
	interval   time.Duration
	now        func() time.Time
}

func NewMonitor(t *Target, d *Dispatcher, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Monitor{target: t, dispatcher: d, interval: interval, now: time.Now}
}

// Run ticks until ctx is cancelled. Cancellation is observed between ticks and
// inside the source call, never in the middle of a transition.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	log.Info().Str("target", m.target.Name).Dur("interval", m.interval).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("target", m.target.Name).Msg("monitor stopped")
			return
		case <-t.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one monitoring step. A failing source skips the step without
// touching the log or the engine.
func (m *Monitor) Tick(ctx context.Context) {
	name := m.target.Name
	ctx, span := telemetry.Tracer().Start(ctx, "monitor.tick")
	span.SetAttributes(attribute.String("target", name))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("target", name).Interface("panic", r).Msg("monitor tick panicked")
			span.SetStatus(codes.Error, "panic")
		}
		metrics.TickDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		span.End()
	}()

	sample, err := m.target.Source.Next(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		metrics.SkippedTicksTotal.WithLabelValues(name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "source failed")
		log.Warn().Err(err).Str("target", name).Msg("metrics source failed, skipping tick")
		return
	}

	now := m.now()
	sev := m.target.Engine.Classify(sample)
	entry := m.target.Log.Record(sample, sev, now)
	log.Debug().Str("target", name).Msg(entry.String())
	metrics.SamplesTotal.WithLabelValues(name, sev.Name()).Inc()
	metrics.LogEntries.WithLabelValues(name).Set(float64(m.target.Log.Len()))

	effects := m.target.Engine.HandleSample(sample, now)
	span.SetAttributes(
		attribute.String("severity", sev.Name()),
		attribute.Int("effects", len(effects)),
	)
	m.dispatcher.Dispatch(ctx, name, effects, now)

	if p, ok := m.target.Source.(persistentSource); ok {
		v := 0.0
		if p.Persistent() {
			v = 1
		}
		metrics.SourceIncident.WithLabelValues(name).Set(v)
	}
	if cur := m.target.Engine.Current(); cur != nil {
		metrics.OpenAlertSeverity.WithLabelValues(name).Set(float64(cur.Severity))
	} else {
		metrics.OpenAlertSeverity.WithLabelValues(name).Set(0)
	}
}
