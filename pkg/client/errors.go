package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransportError reports a failure to complete an HTTP exchange: connection
// refused, DNS failure, timeout, or a broken body read. The server may or may
// not have seen the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError reports a request the server received and rejected. Code and
// Message are the server's own values, preserved verbatim so callers can
// match on them.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("client: [%d] %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("client: [%d] %s", e.StatusCode, e.Message)
}

// errorBody is the JSON error payload Stardog attaches to non-2xx responses.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// newServerError decodes the error payload when it is JSON and falls back to
// the raw body text otherwise. The message is never rewritten.
func newServerError(status int, body []byte) *ServerError {
	var payload errorBody
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &ServerError{StatusCode: status, Code: payload.Code, Message: payload.Message}
	}
	return &ServerError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
