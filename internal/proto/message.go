package proto

const (
	TypeUser   = "user"
	TypeBot    = "bot"
	TypeSystem = "system"

	OutboundTypeError = "error"

	// EventPing is the SSE event name used for keep-alive frames.
	EventPing = "ping"
)

// Envelope is the wire form of one chat message pushed to subscribers.
type Envelope struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
	Type string `json:"type"`
}

// PublishRequest is the body of POST <room>/message and of inbound WebSocket frames.
type PublishRequest struct {
	User string `json:"user" binding:"required"`
	Text string `json:"text" binding:"required"`
}

// PublishResponse acknowledges an accepted publish.
type PublishResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is returned by HTTP endpoints on failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ErrorFrame is written to a WebSocket subscriber whose inbound frame was rejected.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error *Error `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
