package api

import (
	"net/http"
	"net/url"
)

// Request carries the caller's credentials plus the operation specific fields.
type Request struct {
	Token        string
	RefreshToken string
	AccountID    string

	Passcode string
	APIKey   string

	ResourceType string
	ResourceID   string

	// Path is the request path relative to the resource mount, e.g. "/v1/foo".
	Path   string
	Method string
	Header http.Header
	Params url.Values
	Body   []byte
}

// WithToken returns a copy of r using the given token pair.
func (r Request) WithToken(token, refreshToken string) Request {
	r.Token = token
	if refreshToken != "" {
		r.RefreshToken = refreshToken
	}
	return r
}

// HeaderValue is a nil-safe lookup on the inbound headers.
func (r Request) HeaderValue(key string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}
