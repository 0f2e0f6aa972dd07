// Package notify forwards structured log emissions off-process. A Forwarder
// sits behind the activity sink interface, queues each emission, and a
// single worker publishes it to every configured backend (Redis, NATS,
// Kafka).
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/trainerhub/trainerhub/internal/metrics"
)

// publishTimeout bounds a single backend publish.
const publishTimeout = 5 * time.Second

// Backend is the interface for forwarding backends.
type Backend interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Event is the JSON document published for each emission.
type Event struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Forwarder queues emissions and publishes them asynchronously. Emit never
// blocks: when the queue is full the emission is dropped and counted.
type Forwarder struct {
	backends []Backend
	queue    chan []byte
	wg       sync.WaitGroup
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewForwarder starts the publishing worker. queueSize below 1 is raised to 1.
func NewForwarder(queueSize int, backends ...Backend) *Forwarder {
	if queueSize < 1 {
		queueSize = 1
	}
	f := &Forwarder{
		backends: backends,
		queue:    make(chan []byte, queueSize),
		now:      time.Now,
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// Emit encodes the emission and enqueues it.
func (f *Forwarder) Emit(_ context.Context, level slog.Level, message string, metadata map[string]any) {
	payload, err := json.Marshal(Event{
		Level:     level.String(),
		Message:   message,
		Metadata:  metadata,
		EmittedAt: f.now(),
	})
	if err != nil {
		slog.Debug("dropping unencodable emission", slog.Any("error", err))
		metrics.ForwardDropped.Inc()
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		metrics.ForwardDropped.Inc()
		return
	}
	select {
	case f.queue <- payload:
	default:
		metrics.ForwardDropped.Inc()
	}
}

func (f *Forwarder) run() {
	defer f.wg.Done()
	for payload := range f.queue {
		for _, b := range f.backends {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := b.Publish(ctx, payload)
			cancel()
			if err != nil {
				metrics.ForwardErrors.WithLabelValues(b.Name()).Inc()
				slog.Warn("activity forward failed",
					slog.String("backend", b.Name()),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Close stops accepting emissions, drains the queue, and closes backends.
// Safe to call more than once.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	f.wg.Wait()

	var errs []error
	for _, b := range f.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
