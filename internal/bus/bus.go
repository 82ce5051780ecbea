// Package bus publishes service events to NATS. The bus is optional:
// when NATS_URL is unset the server runs with a nil Bus and handlers
// skip publishing.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Bus is the publish-side interface handlers depend on.
type Bus interface {
	Publish(subject string, payload any) error
	Close()
}

type natsBus struct {
	conn *nats.Conn
}

// Connect dials NATS and returns a Bus backed by the connection.
func Connect(url string) (Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("face-api"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}
	slog.Info("connected to NATS", "url", url)
	return &natsBus{conn: conn}, nil
}

func (b *natsBus) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: marshal %s: %w", subject, err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

func (b *natsBus) Close() {
	// Drain flushes buffered publishes before closing.
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
