package upstream_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

func TestDo_RequestShaping(t *testing.T) {
	var got *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	c := upstream.New("test")

	t.Run("form with basic auth", func(t *testing.T) {
		resp, err := c.Do(context.Background(), upstream.Request{
			Method:   http.MethodPost,
			URL:      srv.URL + "/identity/token",
			Username: "bx",
			Password: "bx",
			Form:     url.Values{"grant_type": {"refresh_token"}},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusTeapot, resp.StatusCode)
		require.False(t, resp.OK())
		require.Equal(t, "yes", resp.Header.Get("X-Upstream"))
		require.Equal(t, "short and stout", string(resp.Body))

		user, pass, ok := got.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "bx", user)
		require.Equal(t, "bx", pass)
		require.Equal(t, upstream.ContentTypeForm, got.Header.Get("Content-Type"))
		require.Equal(t, "grant_type=refresh_token", gotBody)
	})

	t.Run("json with bearer and query", func(t *testing.T) {
		_, err := c.Do(context.Background(), upstream.Request{
			Method: http.MethodPut,
			URL:    srv.URL + "/v2/resource_instances?existing=1",
			Query:  url.Values{"include": {"*"}},
			Bearer: "access-token",
			Header: http.Header{"X-Custom": {"a", "b"}},
			JSON:   map[string]string{"name": "renamed"},
		})
		require.NoError(t, err)
		require.Equal(t, http.MethodPut, got.Method)
		require.Equal(t, "Bearer access-token", got.Header.Get("Authorization"))
		require.Equal(t, []string{"a", "b"}, got.Header.Values("X-Custom"))
		require.Equal(t, "1", got.URL.Query().Get("existing"))
		require.Equal(t, "*", got.URL.Query().Get("include"))
		require.JSONEq(t, `{"name":"renamed"}`, gotBody)
	})

	t.Run("raw body defaults to GET", func(t *testing.T) {
		_, err := c.Do(context.Background(), upstream.Request{URL: srv.URL, Body: []byte("raw")})
		require.NoError(t, err)
		require.Equal(t, http.MethodGet, got.Method)
		require.Equal(t, "raw", gotBody)
	})
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := upstream.New("test").Do(context.Background(), upstream.Request{URL: addr})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrUpstream))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := upstream.New("slow", upstream.WithTimeout(50*time.Millisecond))
	_, err := c.Do(context.Background(), upstream.Request{URL: srv.URL})
	require.ErrorIs(t, err, errors.ErrUpstream)
}

func TestJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, upstream.ContentTypeJSON, r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok":
			_ = json.NewEncoder(w).Encode(map[string]any{"rows_count": 2})
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/bad":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":"BXNIM0415E","errorMessage":"Provided passcode is invalid"}`))
		case "/garbage":
			_, _ = w.Write([]byte("{not json"))
		}
	}))
	defer srv.Close()

	c := upstream.New("iam")

	t.Run("decodes 2xx", func(t *testing.T) {
		var out struct {
			RowsCount int `json:"rows_count"`
		}
		require.NoError(t, c.JSON(context.Background(), upstream.Request{URL: srv.URL + "/ok"}, &out))
		require.Equal(t, 2, out.RowsCount)
	})

	t.Run("empty body", func(t *testing.T) {
		var out map[string]any
		require.NoError(t, c.JSON(context.Background(), upstream.Request{URL: srv.URL + "/empty"}, &out))
		require.Nil(t, out)
	})

	t.Run("status error", func(t *testing.T) {
		err := c.JSON(context.Background(), upstream.Request{URL: srv.URL + "/bad"}, nil)
		require.Error(t, err)
		require.True(t, upstream.IsStatus(err, http.StatusBadRequest))
		require.False(t, upstream.IsStatus(err, http.StatusNotFound))
		require.ErrorIs(t, err, errors.ErrUpstream)

		se, ok := upstream.AsStatusError(err)
		require.True(t, ok)
		require.Equal(t, "Provided passcode is invalid", se.Message())
		require.Contains(t, se.Error(), "iam responded 400")

		resp := se.Response()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.JSONEq(t, `{"errorCode":"BXNIM0415E","errorMessage":"Provided passcode is invalid"}`, string(resp.Body.([]byte)))
	})

	t.Run("undecodable body", func(t *testing.T) {
		var out map[string]any
		err := c.JSON(context.Background(), upstream.Request{URL: srv.URL + "/garbage"}, &out)
		require.ErrorIs(t, err, errors.ErrUpstream)
		_, ok := upstream.AsStatusError(err)
		require.False(t, ok)
	})
}

func TestStatusError_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "iam", body: `{"errorMessage":"expired"}`, want: "expired"},
		{name: "message", body: `{"message":"nope"}`, want: "nope"},
		{name: "errors array", body: `{"errors":[{"message":"first"}]}`, want: "first"},
		{name: "not json", body: `<html>`, want: ""},
		{name: "no message", body: `{"status":500}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := &upstream.StatusError{Service: "x", StatusCode: 500, Body: []byte(tt.body)}
			require.Equal(t, tt.want, se.Message())
		})
	}
}

func TestDo_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := upstream.New("catalog", upstream.WithMetrics(m))

	_, err := c.Do(context.Background(), upstream.Request{URL: srv.URL + "/found"})
	require.NoError(t, err)
	_, err = c.Do(context.Background(), upstream.Request{URL: srv.URL + "/missing"})
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("catalog", "2xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("catalog", "4xx")))
}
