package socket

// Wire events. Frames are JSON objects {"event": ..., "data": ...}.
const (
	EventSubscribe = "transcript:subscribe"
	EventUpdate    = "transcript:update"
	EventError     = "transcript:error"
)

type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type subscribeRequest struct {
	ServerID string `json:"serverId"`
	APIKey   string `json:"apiKey"`
}

// SocketError is the typed error payload sent to a connection.
type SocketError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var (
	errBadRequest = SocketError{
		Code:    400,
		Message: "Bad request: no API key or server ID specified.",
	}
	errServerNotFound = SocketError{
		Code:    404,
		Message: "Not found: server not found",
	}
	errAPIDisabled = SocketError{
		Code:    403,
		Message: "Forbidden: server has API disabled",
	}
	errInvalidKey = SocketError{
		Code:    401,
		Message: "Unauthorized: API key invalid.",
	}
	errNoSession = SocketError{
		Code:    404,
		Message: "Not found: no active transcript instance linked to this server",
	}
	errInternal = SocketError{
		Code:    500,
		Message: "Internal error",
	}
)
