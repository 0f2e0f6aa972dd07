package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn the backend uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSBackend publishes payloads to a NATS subject.
type NATSBackend struct {
	conn    natsConn
	subject string
}

func NewNATSBackend(url, subject string) (*NATSBackend, error) {
	conn, err := nats.Connect(url, nats.Name("trainerhub-activity"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSBackend{conn: conn, subject: subject}, nil
}

func (n *NATSBackend) Name() string {
	return "nats"
}

func (n *NATSBackend) Publish(_ context.Context, payload []byte) error {
	return n.conn.Publish(n.subject, payload)
}

// Close waits up to publishTimeout for buffered publishes to reach the
// server, then closes the connection.
func (n *NATSBackend) Close() error {
	err := n.conn.FlushTimeout(publishTimeout)
	n.conn.Close()
	if err != nil {
		return fmt.Errorf("flushing nats: %w", err)
	}
	return nil
}
