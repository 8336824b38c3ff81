// Package domain holds the core types shared across services and adapters.
package domain

import "time"

// Message is one inbound mail, fetched fresh per processing attempt and never
// cached across cycles.
type Message struct {
	ID                string
	ThreadID          string
	From              string
	To                string
	Cc                string
	ReplyTo           string
	Subject           string
	Body              string
	Labels            []string
	InternalTimestamp time.Time
}

// HasLabel reports whether the message carries the given mailbox label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsReply reports whether the message looks like a reply or forward.
func (m *Message) IsReply() bool {
	subject := lowerTrim(m.Subject)
	if len(subject) >= 3 && (subject[:3] == "re:" || subject[:3] == "rv:") {
		return true
	}
	if len(subject) >= 4 && subject[:4] == "fwd:" {
		return true
	}
	return m.ThreadID != "" && m.ThreadID != m.ID
}

// InboxDelta is the output of one sync cycle.
type InboxDelta struct {
	// IDs is the deduplicated set of newly arrived message ids. Order is
	// unspecified.
	IDs []string

	// NewCursor is the cursor value to persist next; empty means the cursor
	// must not be advanced.
	NewCursor string

	// UsedFallback is true when the delta came from a bounded full-inbox scan
	// instead of the change log.
	UsedFallback bool
}
