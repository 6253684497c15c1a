package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/session"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 50 << 20

const invalidRequestMessage = "Invalid Request data"

// operation is the shape of every gateway entry point.
type operation func(ctx context.Context, req api.Request) api.Response

type invalidRequestBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

var errInvalidBody = errors.New("invalid request body")

// handle adapts op to net/http.
func (s *Server) handle(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Rejected request body")
			writeResponse(w, r, api.JSON(http.StatusBadRequest, invalidRequestBody{Status: http.StatusBadRequest, Message: invalidRequestMessage}))
			return
		}
		writeResponse(w, r, op(r.Context(), toAPIRequest(r, body)))
	}
}

// readBody reads the whole body. JSON bodies must be well formed.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && isJSON(r) && !json.Valid(body) {
		return nil, errInvalidBody
	}
	return body, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// toAPIRequest maps the wire request onto the gateway's request record.
func toAPIRequest(r *http.Request, body []byte) api.Request {
	query := r.URL.Query()
	req := api.Request{
		Token:        bearerOrCookie(r),
		RefreshToken: cookieValue(r, session.CookieRefreshToken),
		AccountID:    query.Get(queryAccountID),
		ResourceType: query.Get(queryResourceType),
		ResourceID:   r.PathValue(pathResourceID),
		Path:         resourceSubpath(r),
		Method:       r.Method,
		Header:       r.Header.Clone(),
		Params:       query,
		Body:         body,
	}
	if req.AccountID == "" {
		req.AccountID = cookieValue(r, session.CookieAccountID)
	}

	switch {
	case isJSON(r) && len(body) > 0:
		req.Passcode = gjson.GetBytes(body, "passcode").String()
		req.APIKey = gjson.GetBytes(body, "apikey").String()
	case isForm(r):
		if form, err := url.ParseQuery(string(body)); err == nil {
			req.Passcode = form.Get("passcode")
			req.APIKey = form.Get("apikey")
		}
	}
	return req
}

// bearerOrCookie prefers an Authorization bearer token over the token cookie.
func bearerOrCookie(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "bearer") && token != "" {
		return token
	}
	return cookieValue(r, session.CookieToken)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// resourceSubpath is the escaped path below /resources/{resource_id}, or ""
// outside resource routes. Resource ids may contain an encoded slash, so the
// split happens on the escaped form.
func resourceSubpath(r *http.Request) string {
	if r.PathValue(pathResourceID) == "" {
		return ""
	}
	rest, ok := strings.CutPrefix(r.URL.EscapedPath(), RouteResources+"/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return ""
}

// writeResponse copies headers except Transfer-Encoding and Content-Length,
// then writes raw bodies as is and anything else as JSON.
func writeResponse(w http.ResponseWriter, r *http.Request, resp api.Response) {
	for key, values := range resp.Header {
		switch http.CanonicalHeaderKey(key) {
		case "Transfer-Encoding", "Content-Length":
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	var payload []byte
	switch body := resp.Body.(type) {
	case []byte:
		payload = body
	case nil:
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Encoding response body failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"internal error"}`))
			return
		}
		payload = encoded
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Writing response failed")
	}
}
