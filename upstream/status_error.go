package upstream

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
)

// StatusError is a non-2xx upstream response. Passthrough operations hand it
// back to the caller unchanged.
type StatusError struct {
	Service    string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s responded %d: %s", e.Service, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s responded %d", e.Service, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return errors.ErrUpstream
}

// Message extracts a human readable message from the body, if there is one.
func (e *StatusError) Message() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	for _, path := range []string{"errorMessage", "message", "error_description", "errors.0.message", "error"} {
		if r := gjson.GetBytes(e.Body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// Response converts the error into a passthrough response.
func (e *StatusError) Response() api.Response {
	return api.Response{StatusCode: e.StatusCode, Header: e.Header.Clone(), Body: e.Body}
}

// AsStatusError reports whether err wraps a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsStatus reports whether err is an upstream response with the given status.
func IsStatus(err error, status int) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == status
}
