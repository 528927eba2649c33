package notifier

import (
	"context"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Breaker fails fast once the wrapped sink has failed maxFailures times in a
// row, and probes it again after openTimeout.
type Breaker struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next Notifier, maxFailures uint32, openTimeout time.Duration) *Breaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("sink", name).Str("from", from.String()).Str("to", to.String()).Msg("notification breaker state changed")
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Deliver(ctx context.Context, n model.Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Deliver(ctx, n)
	})
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
