// Package audit records chat activity after the fact. Recording is
// fire-and-forget: it never sits on a request's critical path and its
// failures never fail the operation being audited.
package audit

import (
	"github.com/rs/zerolog"
)

// Kind labels an audited action.
type Kind string

const (
	KindDirectCreated Kind = "dm_created"
	KindMessageSent   Kind = "message_sent"
	KindMarkedRead    Kind = "conversation_marked_read"
)

// Entry is one audited action.
type Entry struct {
	Kind           Kind
	ActorID        int64
	ConversationID int64
	MessageID      int64 // zero unless KindMessageSent
}

// Sink receives audit entries. Implementations must not block the caller.
type Sink interface {
	Record(entry Entry)
}

// LogSink writes audit entries to the structured log.
type LogSink struct {
	log *zerolog.Logger
}

// NewLogSink creates an audit sink backed by the given logger.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{log: logger}
}

// Record logs the entry.
func (s *LogSink) Record(entry Entry) {
	ev := s.log.Info().
		Str("audit", string(entry.Kind)).
		Int64("actor_id", entry.ActorID).
		Int64("conversation_id", entry.ConversationID)
	if entry.MessageID != 0 {
		ev = ev.Int64("message_id", entry.MessageID)
	}
	ev.Msg("audit event")
}

// Discard is a Sink that drops everything. Used by tests.
type Discard struct{}

// Record does nothing.
func (Discard) Record(Entry) {}
