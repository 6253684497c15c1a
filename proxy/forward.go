package proxy

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

// Hop-by-hop headers are never forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// Proxy resolves req against the resolver and forwards it.
type Proxy struct {
	resolver *Resolver
	http     *upstream.Client
}

// New builds a proxy. httpClient performs the forwarded calls and should not
// follow redirects.
func New(resolver *Resolver, httpClient *upstream.Client) *Proxy {
	return &Proxy{resolver: resolver, http: httpClient}
}

// Proxy answers 404 for unknown resources, 400 when no endpoint applies and
// otherwise whatever the backend answered.
func (p *Proxy) Proxy(ctx context.Context, token string, req api.Request) api.Response {
	target, err := p.resolver.ResolveTarget(ctx, token, Request{
		ResourceID: req.ResourceID,
		Path:       req.Path,
		EndpointID: req.HeaderValue(EndpointHeader),
	})
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return api.NotFound()
	case errors.Is(err, errors.ErrNoEndpoint):
		return api.NoEndpoint()
	case err != nil:
		if se, ok := upstream.AsStatusError(err); ok {
			return se.Response()
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("resource_id", req.ResourceID).Msg("Proxy resolution failed")
		return api.JSON(http.StatusBadGateway, api.MessageBody{Message: err.Error()})
	}
	return p.Forward(ctx, target, token, req)
}

// Forward sends req to target. Host and the caller's session cookies are
// always dropped; dashboard targets get none of the caller's headers and no
// Authorization.
func (p *Proxy) Forward(ctx context.Context, target Target, token string, req api.Request) api.Response {
	header := http.Header{}
	if !target.DropHeaders && req.Header != nil {
		header = req.Header.Clone()
		header.Del("Host")
		header.Del("Cookie")
		header.Del("Content-Length")
		stripHopHeaders(header)
	}
	bearer := ""
	if target.InjectAuth {
		header.Del("Authorization")
		bearer = token
	}

	resp, err := p.http.Do(ctx, upstream.Request{
		Method: req.Method,
		URL:    target.URL(),
		Query:  req.Params,
		Header: header,
		Bearer: bearer,
		Body:   req.Body,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("resource_id", req.ResourceID).Msg("Forwarded request failed")
		return api.JSON(http.StatusBadGateway, api.MessageBody{Message: err.Error()})
	}

	respHeader := resp.Header.Clone()
	stripHopHeaders(respHeader)
	return api.Response{StatusCode: resp.StatusCode, Header: respHeader, Body: resp.Body}
}
