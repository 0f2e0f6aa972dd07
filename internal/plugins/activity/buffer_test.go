package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// emission is one captured Sink call.
type emission struct {
	level    slog.Level
	message  string
	metadata map[string]any
}

// recordingSink captures emissions for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []emission
}

func (s *recordingSink) Emit(_ context.Context, level slog.Level, message string, metadata map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emission{level: level, message: message, metadata: metadata})
}

func (s *recordingSink) all() []emission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emission(nil), s.events...)
}

// steppingClock advances one second per call from a fixed start.
func steppingClock(start time.Time) Clock {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

var testStart = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func TestBuffer_AppendAssignsSequentialIDs(t *testing.T) {
	b := NewBuffer(10)
	for i := 1; i <= 5; i++ {
		rec := b.Append(context.Background(), Entry{Message: fmt.Sprintf("m%d", i)})
		if rec.ID != int64(i) {
			t.Fatalf("append %d: expected id %d, got %d", i, i, rec.ID)
		}
	}

	got := b.Recent(5)
	if len(got) != 5 || b.Len() != 5 {
		t.Fatalf("expected 5 records, got %d (len %d)", len(got), b.Len())
	}
	for i, rec := range got {
		if rec.Message != fmt.Sprintf("m%d", i+1) {
			t.Errorf("position %d: expected m%d, got %s", i, i+1, rec.Message)
		}
	}
}

func TestBuffer_Defaults(t *testing.T) {
	b := NewBuffer(0)
	if b.Capacity() != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, b.Capacity())
	}

	rec := b.Append(context.Background(), NewEntry(""))
	if rec.Type != DefaultType || rec.Message != DefaultMessage {
		t.Errorf("expected defaults, got type=%q message=%q", rec.Type, rec.Message)
	}
	if rec.Details == nil || len(rec.Details) != 0 {
		t.Errorf("expected empty details map, got %#v", rec.Details)
	}
	if rec.User != nil {
		t.Errorf("expected anonymous record, got user %q", *rec.User)
	}
}

func TestBuffer_KeepsEmptyStrings(t *testing.T) {
	b := NewBuffer(2)
	rec := b.Append(context.Background(), Entry{User: "alice@example.com"})
	if rec.Type != "" || rec.Message != "" {
		t.Errorf("expected empty type and message kept, got type=%q message=%q", rec.Type, rec.Message)
	}
	if got := b.Recent(1)[0]; got.Type != "" || got.Message != "" {
		t.Errorf("stored record rewrote empty strings: %+v", got)
	}
}

func TestBuffer_EvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 1; i <= 7; i++ {
		b.Append(context.Background(), Entry{Type: fmt.Sprintf("t%d", i)})
	}

	if b.Len() != 3 {
		t.Fatalf("expected len 3, got %d", b.Len())
	}
	got := b.Recent(10)
	want := []string{"t5", "t6", "t7"}
	for i, rec := range got {
		if rec.Type != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], rec.Type)
		}
		if rec.ID != int64(i+5) {
			t.Errorf("position %d: expected id %d, got %d", i, i+5, rec.ID)
		}
	}
}

func TestBuffer_RecentWindow(t *testing.T) {
	b := NewBuffer(5)
	for i := 1; i <= 8; i++ {
		b.Append(context.Background(), Entry{Type: fmt.Sprintf("t%d", i)})
	}

	got := b.Recent(2)
	if len(got) != 2 || got[0].Type != "t7" || got[1].Type != "t8" {
		t.Errorf("expected [t7 t8], got %v", got)
	}
	if got := b.Recent(0); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if got := b.Recent(-3); len(got) != 0 {
		t.Errorf("negative limit: expected empty, got %d", len(got))
	}
}

func TestBuffer_RecentIsSnapshot(t *testing.T) {
	b := NewBuffer(2)
	b.Append(context.Background(), Entry{Type: "first"})
	snap := b.Recent(2)

	b.Append(context.Background(), Entry{Type: "second"})
	b.Append(context.Background(), Entry{Type: "third"})
	b.Clear()

	if len(snap) != 1 || snap[0].Type != "first" {
		t.Errorf("snapshot changed after mutation: %v", snap)
	}
}

func TestBuffer_CopiesDetails(t *testing.T) {
	b := NewBuffer(2)
	details := map[string]any{"x": 1}
	b.Append(context.Background(), Entry{Details: details})
	details["x"] = 2

	if got := b.Recent(1)[0].Details["x"]; got != 1 {
		t.Errorf("caller mutation leaked into buffer: %v", got)
	}
}

func TestBuffer_ClearKeepsCounting(t *testing.T) {
	b := NewBuffer(10)
	b.Append(context.Background(), Entry{})
	b.Append(context.Background(), Entry{})
	b.Clear()

	if got := b.Recent(100); len(got) != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", len(got))
	}
	if rec := b.Append(context.Background(), Entry{}); rec.ID != 3 {
		t.Errorf("expected id 3 after clear, got %d", rec.ID)
	}
}

func TestBuffer_TimeMatchesTimestamp(t *testing.T) {
	b := NewBuffer(10, WithClock(steppingClock(testStart)))
	for i := 0; i < 3; i++ {
		rec := b.Append(context.Background(), Entry{})
		if want := rec.Timestamp.Local().Format("15:04:05"); rec.Time != want {
			t.Errorf("expected time %s, got %s", want, rec.Time)
		}
		if !rec.Timestamp.Equal(testStart.Add(time.Duration(i) * time.Second)) {
			t.Errorf("unexpected timestamp %v", rec.Timestamp)
		}
	}
}

func TestBuffer_EmitsToSink(t *testing.T) {
	sink := &recordingSink{}
	b := NewBuffer(10, WithSink(sink), WithClock(steppingClock(testStart)))
	b.Append(context.Background(), Entry{
		Type:    "submit",
		Message: "saved booking",
		Details: map[string]any{"booking": 7},
		User:    "alice@example.com",
	})

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 emission, got %d", len(events))
	}
	ev := events[0]
	if ev.level != slog.LevelInfo || ev.message != "submit: saved booking" {
		t.Errorf("unexpected emission: %+v", ev)
	}
	if _, ok := ev.metadata["message"]; ok {
		t.Error("metadata must not carry the message key")
	}
	if ev.metadata["user"] != "alice@example.com" || ev.metadata["id"] != int64(1) {
		t.Errorf("unexpected metadata: %v", ev.metadata)
	}
}

type panickingSink struct{}

func (panickingSink) Emit(context.Context, slog.Level, string, map[string]any) {
	panic("sink exploded")
}

func TestBuffer_SinkPanicIsSwallowed(t *testing.T) {
	b := NewBuffer(10, WithSink(panickingSink{}))
	rec := b.Append(context.Background(), Entry{Type: "click"})
	if rec.ID != 1 || b.Len() != 1 {
		t.Errorf("record should still be stored, got id=%d len=%d", rec.ID, b.Len())
	}
}

func TestBuffer_ConcurrentAppends(t *testing.T) {
	const writers, perWriter = 20, 50
	b := NewBuffer(writers * perWriter)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append(context.Background(), Entry{})
				_ = b.Recent(10)
			}
		}()
	}
	wg.Wait()

	got := b.Recent(writers * perWriter)
	if len(got) != writers*perWriter {
		t.Fatalf("expected %d records, got %d", writers*perWriter, len(got))
	}
	for i, rec := range got {
		if rec.ID != int64(i+1) {
			t.Fatalf("position %d: expected id %d, got %d", i, i+1, rec.ID)
		}
	}
}

func TestBuffer_Subscribe(t *testing.T) {
	b := NewBuffer(10)
	ch, cancel := b.Subscribe(1)

	b.Append(context.Background(), Entry{Type: "one"})
	b.Append(context.Background(), Entry{Type: "two"}) // dropped: channel full

	select {
	case rec := <-ch:
		if rec.Type != "one" {
			t.Errorf("expected first record, got %s", rec.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a record on the subscription")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}
	b.Append(context.Background(), Entry{Type: "three"})
}

func TestBuffer_CloseSubscribers(t *testing.T) {
	b := NewBuffer(10)
	first, cancelFirst := b.Subscribe(4)
	second, cancelSecond := b.Subscribe(4)

	b.CloseSubscribers()
	for i, ch := range []<-chan Record{first, second} {
		if _, ok := <-ch; ok {
			t.Errorf("subscription %d: expected closed channel", i)
		}
	}

	// Cancelling after the close must not close the channel twice.
	cancelFirst()
	cancelSecond()

	late, cancelLate := b.Subscribe(4)
	defer cancelLate()
	if _, ok := <-late; ok {
		t.Error("expected Subscribe after CloseSubscribers to return a closed channel")
	}

	if rec := b.Append(context.Background(), Entry{Type: "after"}); rec.ID != 1 || b.Len() != 1 {
		t.Errorf("appends must keep working, got id=%d len=%d", rec.ID, b.Len())
	}
}
