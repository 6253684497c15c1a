// Package upstream is the outbound HTTP collaborator shared by the identity,
// accounts, catalog and resource controller clients and by the proxy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Request describes one outbound call. At most one of Form, JSON and Body is
// used, in that order.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	// Bearer sets an Authorization: Bearer header.
	Bearer string
	// Username and Password set basic auth when Username is not empty.
	Username string
	Password string

	Form url.Values
	JSON any
	Body []byte
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client executes Requests. It never retries.
type Client struct {
	httpClient *http.Client
	service    string
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout bounds each call, including reading the body.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
	}
}

// New creates a client labelled with service for logs and metrics.
func New(service string, options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		service:    service,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do performs the request and returns the response whatever its status. The
// error is non-nil only when no response was received.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("service", c.service).Str("method", req.Method).Str("url", req.URL.Redacted()).Logger()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(c.service, "error", time.Since(start).Seconds())
		logger.Warn().Err(err).Msg("Upstream request failed")
		return nil, fmt.Errorf("%w: %s %s: %w", errors.ErrUpstream, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(c.service, statusClass(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read upstream response")
		return nil, fmt.Errorf("%w: reading %s response: %w", errors.ErrUpstream, c.service, err)
	}
	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Upstream request complete")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// JSON performs the request and decodes a 2xx body into out, which may be nil.
// Non-2xx responses are returned as *StatusError.
func (c *Client) JSON(ctx context.Context, r Request, out any) error {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", ContentTypeJSON)
	}
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Service: c.service, StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", errors.ErrUpstream, c.service, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	target, err := url.Parse(r.URL)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "parse url: %v", err)
	}
	if len(r.Query) > 0 {
		q := target.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = ContentTypeForm
	case r.JSON != nil:
		encoded, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = ContentTypeJSON
	case len(r.Body) > 0:
		body = bytes.NewReader(r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "build request: %v", err)
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.Username != "" {
		req.SetBasicAuth(r.Username, r.Password)
	}
	if r.Bearer != "" {
		BearerToken(r.Bearer).SetAuthHeader(req)
	}
	return req, nil
}

// BearerToken wraps an access token for header injection.
func BearerToken(accessToken string) *oauth2.Token {
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
