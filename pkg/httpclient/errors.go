package httpclient

import (
	"fmt"
	"net/http"
)

// StatusError is returned by CircuitBreakerClient for 5xx responses. The
// response body is already drained into Body so callers can still decode a
// structured error payload.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, string(e.Body))
}

