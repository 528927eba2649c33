package notifier

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes notifications on a subject; per-target routing is
// left to subscribers.
type NATSNotifier struct {
	conn    publisher
	subject string
	close   func()
}

func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats notifier needs a subject")
	}
	nc, err := nats.Connect(url,
		nats.Name("cloudmonitor"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", url, err)
	}
	return &NATSNotifier{conn: nc, subject: subject, close: nc.Close}, nil
}

func (n *NATSNotifier) Deliver(ctx context.Context, note model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(note)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats publish to %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.close != nil {
		n.close()
	}
	return nil
}
