package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/proxy"
)

// RequireUser sends browsers to the fallback URL instead of answering 401.
// API clients still get the not-logged-in body.
func (s *Server) RequireUser(op operation) operation {
	return func(ctx context.Context, req api.Request) api.Response {
		resp := op(ctx, req)
		if resp.StatusCode != http.StatusUnauthorized || s.fallbackURL == "" {
			return resp
		}
		if !strings.Contains(req.HeaderValue("Accept"), "text/html") {
			return resp
		}
		return api.Redirect(s.fallbackURL)
	}
}

// resourceRoot proxies when an endpoint is selected and otherwise manages the
// instance itself.
func (s *Server) resourceRoot(ctx context.Context, req api.Request) api.Response {
	if req.HeaderValue(proxy.EndpointHeader) != "" {
		return s.service.Proxy(ctx, req)
	}
	return s.service.ManageResource(ctx, req)
}
