package chat

import "time"

// Unread reports whether a conversation has activity past the viewer's
// read marker. Derived state, never stored: always recomputed from the
// two timestamps so it cannot drift.
func Unread(lastMessageAt, lastReadAt *time.Time) bool {
	if lastMessageAt == nil {
		return false
	}
	return lastReadAt == nil || lastReadAt.Before(*lastMessageAt)
}
