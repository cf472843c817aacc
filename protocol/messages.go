package protocol

import (
	"encoding/json"
	"time"

	"marionette/core"
)

// EventName enumerates the socket events exchanged with the backend.
type EventName string

const (
	// Client -> backend
	EventEnterSession EventName = "enterSession"
	EventLeaveSession EventName = "leaveSession"
	EventDebugReport  EventName = "sendSlack"
	EventLog          EventName = "log"
	EventLogEnd       EventName = "logEnd"

	// Backend -> client. Stream output arrives as binary frames carrying a
	// protobuf StreamResponse; the name is kept for logging.
	EventStreamOutput EventName = "stream_output"
)

// Envelope is the outer JSON wrapper for text socket messages.
type Envelope struct {
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnterSessionPayload joins the result socket to the session the offer is
// posted for. The signal socket sends it without a session id.
type EnterSessionPayload struct {
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaveSessionPayload is sent when publishing stops.
type LeaveSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// LogPayload carries one session log line to a remote log sink.
type LogPayload struct {
	SessionID string        `json:"sessionId"`
	Entry     core.LogEntry `json:"entry"`
}

// LogEndPayload marks the end of a session's log stream.
type LogEndPayload struct {
	SessionID string `json:"sessionId"`
}
