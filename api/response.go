package api

import (
	"net/http"
)

const (
	MessageNotLoggedIn      = "Not logged in"
	MessageResourceNotFound = "Resource not found"
	MessageNoEndpoint       = "No service endpoint provided"
)

// Response is what every operation returns. Body is JSON encoded by the
// transport unless it is a []byte, which is written as is.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       any
}

// MessageBody is the shape of every locally generated error body.
type MessageBody struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
}

// SuccessBody is returned by operations with nothing else to say.
type SuccessBody struct {
	Success bool `json:"success"`
}

func JSON(status int, body any) Response {
	return Response{StatusCode: status, Header: http.Header{}, Body: body}
}

// NotLoggedIn is the uniform authentication failure. It never says why.
func NotLoggedIn() Response {
	failed := false
	return JSON(http.StatusUnauthorized, MessageBody{Success: &failed, Message: MessageNotLoggedIn})
}

func NotFound() Response {
	return JSON(http.StatusNotFound, MessageBody{Message: MessageResourceNotFound})
}

func NoEndpoint() Response {
	return JSON(http.StatusBadRequest, MessageBody{Message: MessageNoEndpoint})
}

func BadRequest(message string) Response {
	return JSON(http.StatusBadRequest, MessageBody{Message: message})
}

// Redirect answers with a 302 to location.
func Redirect(location string) Response {
	r := JSON(http.StatusFound, struct{}{})
	r.Header.Set("Location", location)
	return r
}

// WithHeader merges extra into the response headers. Values in extra are
// appended, so Set-Cookie directives from both sides survive.
func (r Response) WithHeader(extra http.Header) Response {
	if len(extra) == 0 {
		return r
	}
	merged := r.Header.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for k, vs := range extra {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	r.Header = merged
	return r
}
