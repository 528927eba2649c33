package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

// Notifier delivers one notification. Deliver must respect ctx deadlines so a
// slow transport cannot stall the monitoring loop.
type Notifier interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// LogNotifier is the console stand-in for e-mail.
type LogNotifier struct{}

func (LogNotifier) Deliver(_ context.Context, n model.Notification) error {
	log.Info().
		Str("target", n.Target).
		Str("alert_id", n.AlertID).
		Str("severity", n.Severity.Name()).
		Str("recipient", n.Recipient).
		Str("reason", string(n.Reason)).
		Msgf("EMAIL: Sending %s alert to %s", n.Severity.Label(), n.Recipient)
	return nil
}

// Fanout delivers to every sink and joins the failures.
type Fanout []Notifier

func (f Fanout) Deliver(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func encode(n model.Notification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return data, nil
}
