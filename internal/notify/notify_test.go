package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeBackend records payloads. When gate is non-nil, Publish blocks until
// the gate is closed.
type fakeBackend struct {
	mu       sync.Mutex
	payloads [][]byte
	gate     chan struct{}
	err      error
	closed   bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Publish(_ context.Context, payload []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestForwarder_PublishesToAllBackends(t *testing.T) {
	a, b := &fakeBackend{}, &fakeBackend{err: errors.New("broker down")}
	f := NewForwarder(8, a, b)

	f.Emit(context.Background(), slog.LevelInfo, "click: opened menu", map[string]any{"id": 1})
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected one payload per backend, got %d and %d", a.count(), b.count())
	}
	if !a.closed || !b.closed {
		t.Error("expected backends to be closed")
	}

	var ev Event
	if err := json.Unmarshal(a.payloads[0], &ev); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if ev.Level != "INFO" || ev.Message != "click: opened menu" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Metadata["id"] != float64(1) {
		t.Errorf("expected metadata id 1, got %v", ev.Metadata["id"])
	}
}

func TestForwarder_DropsWhenQueueFull(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{gate: gate}
	f := NewForwarder(1, backend)

	// The worker takes the first payload and blocks in Publish; the second
	// fills the queue; everything after that is dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			f.Emit(context.Background(), slog.LevelInfo, "spam", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(gate)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := backend.count(); n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 delivered payloads, got %d", n)
	}
}

func TestForwarder_EmitAfterCloseIsDropped(t *testing.T) {
	backend := &fakeBackend{}
	f := NewForwarder(4, backend)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f.Emit(context.Background(), slog.LevelInfo, "late", nil)
	if err := f.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if backend.count() != 0 {
		t.Errorf("expected no payloads after close, got %d", backend.count())
	}
}

func TestRedisBackend_PushesToList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	backend := NewRedisBackend(client, "activity", "activity:queue", 0)
	if err := backend.Publish(context.Background(), []byte(`{"message":"hi"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	items, err := mr.List("activity:queue")
	if err != nil {
		t.Fatalf("reading list: %v", err)
	}
	if len(items) != 1 || items[0] != `{"message":"hi"}` {
		t.Errorf("unexpected list contents: %v", items)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("shared client should stay open: %v", err)
	}
}

func TestRedisBackend_TrimsList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	backend := NewRedisBackend(client, "", "activity:queue", 3)
	for i := 1; i <= 5; i++ {
		if err := backend.Publish(context.Background(), []byte(fmt.Sprintf(`{"id":%d}`, i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	items, err := mr.List("activity:queue")
	if err != nil {
		t.Fatalf("reading list: %v", err)
	}
	want := []string{`{"id":5}`, `{"id":4}`, `{"id":3}`}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], items[i])
		}
	}
}

// fakeNATSConn records the order of connection calls.
type fakeNATSConn struct {
	calls    []string
	flushErr error
}

func (f *fakeNATSConn) Publish(string, []byte) error { f.calls = append(f.calls, "publish"); return nil }

func (f *fakeNATSConn) FlushTimeout(time.Duration) error {
	f.calls = append(f.calls, "flush")
	return f.flushErr
}

func (f *fakeNATSConn) Close() { f.calls = append(f.calls, "close") }

func TestNATSBackend_CloseFlushesFirst(t *testing.T) {
	conn := &fakeNATSConn{}
	backend := &NATSBackend{conn: conn, subject: "trainerhub.activity"}

	if err := backend.Publish(context.Background(), []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := strings.Join(conn.calls, ","); got != "publish,flush,close" {
		t.Errorf("unexpected call order %s", got)
	}
}

func TestNATSBackend_CloseReportsFlushTimeout(t *testing.T) {
	conn := &fakeNATSConn{flushErr: errors.New("nats: timeout")}
	backend := &NATSBackend{conn: conn, subject: "trainerhub.activity"}

	if err := backend.Close(); err == nil {
		t.Fatal("expected flush error")
	}
	if conn.calls[len(conn.calls)-1] != "close" {
		t.Error("connection must be closed even when the flush fails")
	}
}
