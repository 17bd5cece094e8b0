// internal/cache/nats.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Furiten/riichi-api/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DefaultSubject is the NATS subject prefix for round events.
const DefaultSubject = "riichi.rounds"

// NATSPublisher publishes round events on <subject>.<session id>, so
// subscribers can follow one table or use a wildcard for all of them.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// ConnectNATS dials url with reconnect handling logged through logger.
func ConnectNATS(url string, maxReconnects int, reconnectWait time.Duration, logger *logrus.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("riichi-api"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Subject is the subject events of one session are published on.
func (p *NATSPublisher) Subject(ev models.RoundEvent) string {
	return p.subject + "." + ev.SessionID.String()
}

func (p *NATSPublisher) Publish(_ context.Context, ev models.RoundEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal round event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev), data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	return nil
}
