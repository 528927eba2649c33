package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	team = "team@company.com"
	boss = "boss@company.com"
)

var (
	t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	quiet    = model.Sample{Latency: 300 * time.Millisecond, FailureRate: 0.01}
	low      = model.Sample{Latency: 600 * time.Millisecond, FailureRate: 0.01}
	major    = model.Sample{Latency: 1200 * time.Millisecond, FailureRate: 0.01}
	critical = model.Sample{Latency: 300 * time.Millisecond, FailureRate: 0.15}
)

func newTestEngine(opts Options) *Engine {
	opts.PrimaryRecipient = team
	opts.SecondaryRecipient = boss
	if opts.Roller == nil {
		opts.Roller = func() float64 { return 0.99 }
	}
	n := 0
	opts.NewID = func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
	return New(model.DefaultPolicy(), opts)
}

func notifies(effects []model.Effect) []model.Effect {
	var out []model.Effect
	for _, e := range effects {
		if e.Kind == model.EffectNotify {
			out = append(out, e)
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	table := model.DefaultThresholds()
	tests := []struct {
		name        string
		latency     time.Duration
		failureRate float64
		want        model.Severity
	}{
		{"normal", 300 * time.Millisecond, 0.01, model.SeverityNone},
		{"at low limit is not exceeded", 500 * time.Millisecond, 0.02, model.SeverityNone},
		{"negative inputs", -time.Second, -0.5, model.SeverityNone},
		{"low by latency", 501 * time.Millisecond, 0, model.SeverityLow},
		{"low by failure rate", 0, 0.03, model.SeverityLow},
		{"major by latency", 1001 * time.Millisecond, 0, model.SeverityMajor},
		{"major by failure rate", 0, 0.06, model.SeverityMajor},
		{"critical by latency", 3500 * time.Millisecond, 0, model.SeverityCritical},
		{"critical by failure rate", 0, 0.11, model.SeverityCritical},
		{"highest wins when both trip", 600 * time.Millisecond, 0.2, model.SeverityCritical},
		{"at critical limit is major", 2000 * time.Millisecond, 0.10, model.SeverityMajor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(table, tt.latency, tt.failureRate))
		})
	}
}

func TestClassifyBelowEveryThresholdIsNone(t *testing.T) {
	table := model.DefaultThresholds()
	for ms := 0; ms <= 500; ms += 25 {
		for r := 0; r <= 20; r++ {
			got := Classify(table, time.Duration(ms)*time.Millisecond, float64(r)/1000)
			require.Equal(t, model.SeverityNone, got, "latency=%dms rate=%d‰", ms, r)
		}
	}
}

func TestOpenAlert(t *testing.T) {
	e := newTestEngine(Options{})

	effects := e.HandleSample(low, t0)

	require.Len(t, effects, 1)
	assert.Equal(t, model.Effect{
		Kind:      model.EffectNotify,
		AlertID:   "alert-1",
		Severity:  model.SeverityLow,
		Recipient: team,
		Reason:    model.ReasonOpened,
		OpenedAt:  t0,
	}, effects[0])

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, model.SeverityLow, cur.Severity)
	assert.Equal(t, t0, cur.OpenedAt)
	assert.Equal(t, t0, cur.LastNotifiedAt)
}

func TestEscalationResetsTiming(t *testing.T) {
	e := newTestEngine(Options{})
	e.HandleSample(low, t0)

	later := t0.Add(30 * time.Second)
	effects := e.HandleSample(critical, later)

	require.Len(t, effects, 1)
	assert.Equal(t, model.ReasonEscalated, effects[0].Reason)
	assert.Equal(t, model.SeverityCritical, effects[0].Severity)
	assert.Equal(t, team, effects[0].Recipient)
	assert.Equal(t, "alert-1", effects[0].PreviousID)
	assert.Equal(t, t0, effects[0].PreviousOpenedAt)

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "alert-2", cur.ID)
	assert.Equal(t, model.SeverityCritical, cur.Severity)
	assert.Equal(t, later, cur.OpenedAt)
	assert.Equal(t, later, cur.LastNotifiedAt)
}

func TestResendThrottling(t *testing.T) {
	e := newTestEngine(Options{})
	e.HandleSample(major, t0)
	resend := model.DefaultRepeats().Resend(model.SeverityMajor)

	assert.Empty(t, notifies(e.HandleSample(major, t0.Add(resend-time.Nanosecond))))

	effects := notifies(e.HandleSample(major, t0.Add(resend)))
	require.Len(t, effects, 1)
	assert.Equal(t, model.ReasonResend, effects[0].Reason)
	assert.Equal(t, team, effects[0].Recipient)
	assert.Equal(t, t0.Add(resend), e.Current().LastNotifiedAt)
	assert.Equal(t, t0, e.Current().OpenedAt)

	// the next window starts from the resend, not from the open
	assert.Empty(t, notifies(e.HandleSample(major, t0.Add(2*resend-time.Nanosecond))))
}

func TestSecondaryEscalationEveryCall(t *testing.T) {
	e := newTestEngine(Options{})
	e.HandleSample(critical, t0)
	secondary := model.DefaultRepeats().Secondary(model.SeverityCritical)

	effects := notifies(e.HandleSample(critical, t0.Add(secondary-time.Nanosecond)))
	require.Len(t, effects, 1)
	assert.Equal(t, team, effects[0].Recipient)

	at := t0.Add(secondary)
	effects = notifies(e.HandleSample(critical, at))
	require.Len(t, effects, 1)
	assert.Equal(t, boss, effects[0].Recipient)
	assert.Equal(t, model.ReasonSecondary, effects[0].Reason)
	assert.Equal(t, t0, effects[0].OpenedAt)

	for i := 1; i <= 3; i++ {
		effects = notifies(e.HandleSample(critical, at.Add(time.Duration(i)*100*time.Millisecond)))
		require.Len(t, effects, 1)
		assert.Equal(t, boss, effects[0].Recipient)
	}

	// a due resend goes out alongside the secondary page
	effects = notifies(e.HandleSample(critical, at.Add(model.DefaultRepeats().Resend(model.SeverityCritical))))
	require.Len(t, effects, 2)
	assert.Equal(t, model.ReasonResend, effects[0].Reason)
	assert.Equal(t, team, effects[0].Recipient)
	assert.Equal(t, model.ReasonSecondary, effects[1].Reason)
}

func TestSecondaryEdgeTriggered(t *testing.T) {
	e := newTestEngine(Options{SecondaryEdgeTriggered: true})
	e.HandleSample(critical, t0)
	at := t0.Add(model.DefaultRepeats().Secondary(model.SeverityCritical))

	first := notifies(e.HandleSample(critical, at))
	require.Len(t, first, 2)
	second := notifies(e.HandleSample(critical, at.Add(time.Second)))
	assert.Empty(t, second)
}

func TestLowerSeverityDoesNotDowngrade(t *testing.T) {
	e := newTestEngine(Options{})
	e.HandleSample(critical, t0)

	effects := e.HandleSample(low, t0.Add(time.Second))
	assert.Empty(t, effects)

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, model.SeverityCritical, cur.Severity)
	assert.Equal(t, t0, cur.OpenedAt)
	assert.Equal(t, t0, cur.LastNotifiedAt)
}

func TestLowerSeverityStillPagesSecondary(t *testing.T) {
	e := newTestEngine(Options{})
	e.HandleSample(major, t0)

	effects := notifies(e.HandleSample(low, t0.Add(model.DefaultRepeats().Secondary(model.SeverityMajor))))
	require.Len(t, effects, 1)
	assert.Equal(t, boss, effects[0].Recipient)
	assert.Equal(t, model.SeverityMajor, effects[0].Severity)
}

func TestResolution(t *testing.T) {
	for _, s := range []model.Sample{low, major, critical} {
		e := newTestEngine(Options{})
		e.HandleSample(s, t0)

		effects := e.HandleSample(quiet, t0.Add(time.Second))
		assert.Empty(t, notifies(effects))
		require.Len(t, effects, 1)
		assert.Equal(t, model.EffectResolve, effects[0].Kind)
		assert.Equal(t, "alert-1", effects[0].AlertID)
		assert.Nil(t, e.Current())
	}
}

func TestResolutionNotifyExtension(t *testing.T) {
	e := newTestEngine(Options{NotifyOnResolve: true})
	e.HandleSample(major, t0)

	effects := notifies(e.HandleSample(quiet, t0.Add(time.Second)))
	require.Len(t, effects, 1)
	assert.Equal(t, model.ReasonResolved, effects[0].Reason)
	assert.Equal(t, team, effects[0].Recipient)
}

func TestQuietSampleIsIdempotent(t *testing.T) {
	e := newTestEngine(Options{})
	assert.Empty(t, e.HandleSample(quiet, t0))
	assert.Nil(t, e.Current())
	assert.Empty(t, e.HandleSample(quiet, t0))
	assert.Nil(t, e.Current())
}

func TestRemediationRoll(t *testing.T) {
	rolls := []float64{0.05, 0.5}
	e := newTestEngine(Options{
		RemediationProbability: DefaultRemediationProbability,
		Roller: func() float64 {
			v := rolls[0]
			rolls = rolls[1:]
			return v
		},
	})

	effects := e.HandleSample(major, t0)
	require.Len(t, effects, 2)
	assert.Equal(t, model.EffectTriggerRemediation, effects[1].Kind)
	assert.Equal(t, "alert-1", effects[1].AlertID)

	effects = e.HandleSample(major, t0.Add(time.Second))
	assert.Empty(t, effects)

	// remediation never closes the alert on its own
	assert.NotNil(t, e.Current())
}

func TestNoRemediationRollWithoutAlert(t *testing.T) {
	called := false
	e := newTestEngine(Options{
		RemediationProbability: 1,
		Roller: func() float64 {
			called = true
			return 0
		},
	})
	assert.Empty(t, e.HandleSample(quiet, t0))
	assert.False(t, called)
}
