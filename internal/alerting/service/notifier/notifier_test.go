package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSink = errors.New("sink down")

type recordingSink struct {
	got []model.Notification
	err error
}

func (r *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func testNotification() model.Notification {
	e := model.Effect{
		Kind:      model.EffectNotify,
		AlertID:   "alert-1",
		Severity:  model.SeverityMajor,
		Recipient: "team@company.com",
		Reason:    model.ReasonOpened,
	}
	return model.NewNotification("checkout", e, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Deliver(context.Background(), testNotification()))
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errSink}
	f := Fanout{bad, ok}

	err := f.Deliver(context.Background(), testNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, errSink)
	assert.Len(t, ok.got, 1, "a failing sink must not starve the others")
	assert.Len(t, bad.got, 1)

	assert.NoError(t, Fanout{ok}.Deliver(context.Background(), testNotification()))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sink := &recordingSink{err: errSink}
	b := NewBreaker("test", sink, 2, time.Hour)
	ctx := context.Background()

	assert.ErrorIs(t, b.Deliver(ctx, testNotification()), errSink)
	assert.ErrorIs(t, b.Deliver(ctx, testNotification()), errSink)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Deliver(ctx, testNotification())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, sink.got, 2, "open breaker must not reach the sink")
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	sink := &recordingSink{}
	b := NewBreaker("test", sink, 1, time.Hour)
	require.NoError(t, b.Deliver(context.Background(), testNotification()))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Len(t, sink.got, 1)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifierKeysByTarget(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w, topic: "alerts"}
	n := testNotification()

	require.NoError(t, k.Deliver(context.Background(), n))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "checkout", string(w.msgs[0].Key))

	var decoded model.Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, n, decoded)
}

func TestKafkaNotifierWrapsWriteErrors(t *testing.T) {
	k := &KafkaNotifier{writer: &fakeWriter{err: errSink}, topic: "alerts"}
	err := k.Deliver(context.Background(), testNotification())
	assert.ErrorIs(t, err, errSink)
}

func TestNewKafkaNotifierValidates(t *testing.T) {
	_, err := NewKafkaNotifier(nil, "alerts")
	assert.Error(t, err)
	_, err = NewKafkaNotifier([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return nil
}

func TestNATSNotifierPublishes(t *testing.T) {
	p := &fakePublisher{}
	n := &NATSNotifier{conn: p, subject: "cloudmonitor.notifications"}

	require.NoError(t, n.Deliver(context.Background(), testNotification()))
	assert.Equal(t, "cloudmonitor.notifications", p.subject)
	assert.Contains(t, string(p.data), `"severity":"major"`)
	assert.Contains(t, string(p.data), `"level":"P1"`)
}

func TestNATSNotifierHonoursCancelledContext(t *testing.T) {
	p := &fakePublisher{}
	n := &NATSNotifier{conn: p, subject: "s"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Deliver(ctx, testNotification()), context.Canceled)
	assert.Nil(t, p.data)
}
