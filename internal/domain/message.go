package domain

import "time"

// Role identifies who authored a log entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Phase is the lifecycle state of a log entry.
type Phase string

const (
	// PhasePending marks the typing placeholder shown while a request is
	// in flight. At most one pending message exists at a time.
	PhasePending Phase = "pending"

	// PhaseSettled marks a finished entry. Settled messages are never
	// mutated, only appended.
	PhaseSettled Phase = "settled"
)

// Message is one entry in the client's ordered, append-only log.
type Message struct {
	// ID is unique per message. A pending message and the settled entry
	// that replaces it share the same replacement contract: remove the
	// pending entry, append exactly one settled entry.
	ID string

	Role  Role
	Phase Phase

	// RawText is authoritative for copy and export. For assistant
	// messages it is the original markdown as received.
	RawText string

	// RenderedHTML is sanitized display HTML derived from RawText.
	// Never authoritative.
	RenderedHTML string

	// Timestamp is display-only, formatted at creation.
	Timestamp string
}

// FormatTimestamp renders a creation time the way the log displays it.
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
