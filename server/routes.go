package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// SESSION
	s.registerOperation(http.MethodGet, RoutePasscode, s.service.Passcode)
	s.registerOperation(http.MethodPost, RouteLogin, s.service.Login)
	s.registerOperation(http.MethodPost, RouteLogout, s.service.Logout)
	s.registerOperation(http.MethodGet, RouteOwnUser, s.RequireUser(s.service.OwnUser))
	s.registerOperation(http.MethodGet, RouteAccounts, s.RequireUser(s.service.ListAccounts))
	s.registerOperation(http.MethodGet, RouteSwitchAccount, s.RequireUser(s.service.SwitchAccount))

	// RESOURCES
	s.registerOperation(http.MethodGet, RouteResources, s.RequireUser(s.service.ListResources))
	s.registerOperation("", RouteResource, s.RequireUser(s.resourceRoot))
	s.registerOperation("", RouteResourceKeys, s.RequireUser(s.service.ManageResource))
	s.registerOperation("", RouteResourceSubpaths, s.RequireUser(s.service.Proxy))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// registerOperation mounts op behind the API middleware. An empty method
// accepts every method; otherwise a matching OPTIONS route answers CORS
// preflight requests.
func (s *Server) registerOperation(method, path string, op operation) {
	handler := ChainMiddleware(s.handle(op), s.APIMiddleware()...)
	if method == "" {
		s.RegisterRouteHandler(path, handler)
		return
	}
	s.RegisterRouteHandler(method+" "+path, handler)
	s.RegisterRouteHandler(http.MethodOptions+" "+path, ChainMiddleware(noContent, s.APIMiddleware()...))
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
