package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned before any I/O when a call is malformed.
var ErrInvalidRequest = errors.New("invalid rpc request")

const genericRPCMessage = "rpc error"

// Error implements error. The message is exactly the server-supplied message,
// or a generic one when the server sent none.
func (e *Error) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return genericRPCMessage
	}
	return e.Message
}

// TransportError is returned when the HTTP exchange itself failed: the
// server was unreachable, answered non-2xx without an RPC error, or sent a
// body that is not a valid envelope.
type TransportError struct {
	Method     string // RPC method or "GET <path>"
	StatusCode int    // 0 when no response was received
	Body       string // Truncated response body, if any
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("request failed")
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s)", e.Method)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRPCError reports whether err carries a server-side RPC error and returns it.
func IsRPCError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// IsTransportError reports whether err is a transport failure and returns it.
func IsTransportError(err error) (*TransportError, bool) {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr, true
	}
	return nil, false
}

const maxErrorBody = 512

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
