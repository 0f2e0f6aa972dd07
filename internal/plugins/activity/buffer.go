package activity

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/trainerhub/trainerhub/internal/metrics"
)

// Buffer is a fixed-capacity ring of activity records. It is safe for
// concurrent use; one mutex serialises appends, reads and clears.
//
// Ids come from a counter that only ever grows: eviction and Clear do not
// reuse them, so the n-th append of a Buffer gets id n.
type Buffer struct {
	clock Clock
	sink  Sink

	mu      sync.Mutex
	ring    []Record
	start   int  // index of the oldest record
	size    int
	lastID  int64
	subs    map[int]chan Record
	nextSub int
	closed  bool // subscriptions ended by CloseSubscribers
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock sets the time source for record timestamps.
func WithClock(clock Clock) Option {
	return func(b *Buffer) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithSink sets where appended records are emitted. The default discards.
func WithSink(sink Sink) Option {
	return func(b *Buffer) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// NewBuffer creates a buffer holding at most capacity records. A capacity
// below 1 uses DefaultCapacity.
func NewBuffer(capacity int, opts ...Option) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		clock: SystemClock,
		sink:  discardSink{},
		ring:  make([]Record, capacity),
		subs:  make(map[int]chan Record),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append stores a new record, evicting the oldest one when the buffer is
// full, and emits it to the sink at INFO. Type and Message are stored as
// given; start from NewEntry for the defaults. It never fails.
func (b *Buffer) Append(ctx context.Context, e Entry) Record {
	rec := Record{
		Type:    e.Type,
		Message: e.Message,
		Details: maps.Clone(e.Details),
	}
	if rec.Details == nil {
		rec.Details = map[string]any{}
	}
	if e.User != "" {
		user := e.User
		rec.User = &user
	}

	b.mu.Lock()
	b.lastID++
	rec.ID = b.lastID
	rec.Timestamp = b.clock()
	rec.Time = rec.Timestamp.Local().Format(clockLayout)

	evicted := b.push(rec)
	size := b.size
	b.publish(rec)
	b.mu.Unlock()

	metrics.ActivityAppended.Inc()
	if evicted {
		metrics.ActivityEvicted.Inc()
	}
	metrics.ActivityBufferSize.Set(float64(size))

	SafeEmit(ctx, b.sink, slog.LevelInfo, fmt.Sprintf("%s: %s", rec.Type, rec.Message), rec.logMetadata())
	return rec
}

// push writes rec at the tail and reports whether the head was overwritten.
// Callers hold b.mu.
func (b *Buffer) push(rec Record) bool {
	capacity := len(b.ring)
	if b.size < capacity {
		b.ring[(b.start+b.size)%capacity] = rec
		b.size++
		return false
	}
	b.ring[b.start] = rec
	b.start = (b.start + 1) % capacity
	return true
}

// Recent returns the last min(limit, Len()) records, oldest first. The
// result is a fresh slice, never nil.
func (b *Buffer) Recent(limit int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(max(limit, 0), b.size)
	out := make([]Record, n)
	capacity := len(b.ring)
	first := b.start + b.size - n
	for i := range n {
		out[i] = b.ring[(first+i)%capacity]
	}
	return out
}

// Clear drops every buffered record. The id counter keeps counting.
func (b *Buffer) Clear() {
	b.mu.Lock()
	clear(b.ring)
	b.start, b.size = 0, 0
	b.mu.Unlock()

	metrics.ActivityBufferSize.Set(0)
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the maximum number of records the buffer retains.
func (b *Buffer) Capacity() int {
	return len(b.ring)
}

// Subscribe registers a listener for records appended from now on. Records
// are dropped for this subscriber when its channel (of the given size) is
// full. cancel unregisters and closes the channel; it is idempotent and
// safe after CloseSubscribers.
func (b *Buffer) Subscribe(size int) (<-chan Record, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan Record, size)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// CloseSubscribers closes every subscription channel and makes later
// Subscribe calls return a closed channel. Appends keep working.
func (b *Buffer) CloseSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// publish hands rec to every subscriber without blocking. Callers hold b.mu.
func (b *Buffer) publish(rec Record) {
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			metrics.ActivityStreamDropped.Inc()
		}
	}
}
