package activity

import (
	"context"
	"log/slog"
	"slices"
)

// LoggerName tags every emission of the default sink.
const LoggerName = "user_interactions"

// Sink receives one emission per appended record and per interaction event.
// Implementations must not block the caller for long and may drop messages.
type Sink interface {
	Emit(ctx context.Context, level slog.Level, message string, metadata map[string]any)
}

// reservedKeys collide with fields slog handlers write themselves.
var reservedKeys = map[string]bool{
	slog.MessageKey: true,
	"message":       true,
	slog.TimeKey:    true,
	slog.LevelKey:   true,
	slog.SourceKey:  true,
}

// SlogSink writes emissions to a slog logger tagged logger=user_interactions.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger; nil uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With(slog.String("logger", LoggerName))}
}

// Emit logs message with metadata as attributes in key order. Keys that
// collide with slog's own fields get an activity_ prefix.
func (s *SlogSink) Emit(ctx context.Context, level slog.Level, message string, metadata map[string]any) {
	if !s.logger.Enabled(ctx, level) {
		return
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		name := k
		if reservedKeys[k] {
			name = "activity_" + k
		}
		attrs = append(attrs, slog.Any(name, metadata[k]))
	}
	s.logger.LogAttrs(ctx, level, message, attrs...)
}

// MultiSink fans every emission out to each sink in order.
type MultiSink []Sink

// Emit forwards to every sink. A panicking sink does not stop the others.
func (m MultiSink) Emit(ctx context.Context, level slog.Level, message string, metadata map[string]any) {
	for _, s := range m {
		SafeEmit(ctx, s, level, message, metadata)
	}
}

// SafeEmit calls sink.Emit and swallows any panic it raises. Sink failures
// never reach the request.
func SafeEmit(ctx context.Context, sink Sink, level slog.Level, message string, metadata map[string]any) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("activity sink panicked", slog.Any("panic", r))
		}
	}()
	sink.Emit(ctx, level, message, metadata)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, slog.Level, string, map[string]any) {}
