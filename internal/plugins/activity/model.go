// Package activity is the user-interaction activity log: a bounded,
// process-local buffer of recent interaction records, fed by the ingest
// endpoint and read back by the viewer. Every appended record is also
// emitted to a structured log sink, and every authenticated exchange is
// observed by the interaction middleware.
package activity

import (
	"time"
)

const (
	// DefaultType is used when a client omits the record type.
	DefaultType = "click"

	// DefaultMessage is used when a client omits the message.
	DefaultMessage = "User interaction"

	// DefaultLimit is the number of records /activities returns without ?limit.
	DefaultLimit = 100

	// DefaultCapacity is the buffer size when none is configured.
	DefaultCapacity = 1000
)

// clockLayout renders the viewer's HH:MM:SS column.
const clockLayout = "15:04:05"

// Record is one buffered interaction. Records handed out by the buffer are
// copies and must be treated as read-only, including Details.
type Record struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	User      *string        `json:"user"`
	Timestamp time.Time      `json:"timestamp"`
	Time      string         `json:"time"`
}

// Entry is the caller-supplied part of a record. Type and Message are kept
// verbatim, including empty strings. Nil Details becomes an empty map and an
// empty User is anonymous.
type Entry struct {
	Type    string
	Message string
	Details map[string]any
	User    string
}

// NewEntry returns an entry for user carrying the default type and message.
func NewEntry(user string) Entry {
	return Entry{Type: DefaultType, Message: DefaultMessage, User: user}
}

// logMetadata is the structured metadata emitted for a record. message is
// left out because it is already the log line itself.
func (r Record) logMetadata() map[string]any {
	var user any
	if r.User != nil {
		user = *r.User
	}
	return map[string]any{
		"id":        r.ID,
		"type":      r.Type,
		"details":   r.Details,
		"user":      user,
		"timestamp": r.Timestamp,
		"time":      r.Time,
	}
}
