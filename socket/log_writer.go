package socket

import (
	"time"

	"marionette/core"
	"marionette/protocol"
)

// LogWriter implements core.LogWriter by sending session log entries over a
// socket instead of writing to disk.
type LogWriter struct {
	client    *Client
	sessionID string
}

// NewLogWriter creates a LogWriter that routes logs through client. Close
// closes the client.
func NewLogWriter(client *Client, sessionID string) *LogWriter {
	return &LogWriter{
		client:    client,
		sessionID: sessionID,
	}
}

// Write queues a log entry on the socket.
func (w *LogWriter) Write(level, msg string, attrs map[string]interface{}) {
	w.client.Emit(protocol.EventLog, protocol.LogPayload{
		SessionID: w.sessionID,
		Entry: core.LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Level:     level,
			Message:   msg,
			Attrs:     core.PrintableAttrs(attrs),
		},
	})
}

// Close signals the end of the session's log stream and closes the socket.
func (w *LogWriter) Close() {
	w.client.Emit(protocol.EventLogEnd, protocol.LogEndPayload{SessionID: w.sessionID})
	w.client.Close()
}
