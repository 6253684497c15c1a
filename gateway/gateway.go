// Package gateway exposes the login and resource operations as plain
// request/response functions, ready for any transport.
package gateway

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MarcoABCardoso/ibmid-login/accounts"
	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/catalog"
	"github.com/MarcoABCardoso/ibmid-login/iam"
	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/proxy"
	"github.com/MarcoABCardoso/ibmid-login/resources"
	"github.com/MarcoABCardoso/ibmid-login/session"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Sessions  *session.Manager
	Tokens    *iam.Client
	Accounts  *accounts.Client
	Catalog   *catalog.Client
	Resources *resources.Client
	Proxy     *proxy.Proxy

	// ServiceAPIKey, when set, is logged in and used instead of the caller's
	// token for resource, listing and proxy calls.
	ServiceAPIKey string
	APIKeyLogins  *cache.Cache[iam.TokenResult]

	// Closer releases shared resources such as the cache store. Optional.
	Closer io.Closer
}

type Service struct {
	sessions      *session.Manager
	tokens        *iam.Client
	accounts      *accounts.Client
	catalog       *catalog.Client
	resources     *resources.Client
	proxy         *proxy.Proxy
	serviceAPIKey string
	apiKeyLogins  *cache.Cache[iam.TokenResult]
	closer        io.Closer
}

func New(d Deps) *Service {
	return &Service{
		sessions:      d.Sessions,
		tokens:        d.Tokens,
		accounts:      d.Accounts,
		catalog:       d.Catalog,
		resources:     d.Resources,
		proxy:         d.Proxy,
		serviceAPIKey: d.ServiceAPIKey,
		apiKeyLogins:  d.APIKeyLogins,
		closer:        d.Closer,
	}
}

func (s *Service) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Passcode redirects to the provider page that hands out one-time passcodes.
func (s *Service) Passcode(ctx context.Context, _ api.Request) api.Response {
	location, err := s.tokens.PasscodeEndpoint(ctx)
	if err != nil {
		return upstreamFailure(ctx, err, "Passcode endpoint lookup failed")
	}
	return api.Redirect(location)
}

func (s *Service) Login(ctx context.Context, req api.Request) api.Response {
	return s.sessions.Login(ctx, session.LoginRequest{Passcode: req.Passcode, APIKey: req.APIKey})
}

func (s *Service) Logout(_ context.Context, _ api.Request) api.Response {
	return s.sessions.Logout()
}

func (s *Service) SwitchAccount(ctx context.Context, req api.Request) api.Response {
	return s.sessions.SwitchAccount(ctx, req)
}

func (s *Service) OwnUser(ctx context.Context, req api.Request) api.Response {
	return s.sessions.OwnUser(ctx, req)
}

// ListAccounts returns the allow-listed accounts reachable by the caller.
func (s *Service) ListAccounts(ctx context.Context, req api.Request) api.Response {
	return s.sessions.Authenticated(ctx, req, func(ctx context.Context, req api.Request, _ iam.Identity) api.Response {
		page, err := s.accounts.ListAccounts(ctx, req.Token)
		if err != nil {
			return upstreamFailure(ctx, err, "Listing accounts failed")
		}
		return api.JSON(http.StatusOK, page)
	})
}

// ListResources returns every instance visible to the operating token,
// restricted to req.ResourceType when it names a catalog service.
func (s *Service) ListResources(ctx context.Context, req api.Request) api.Response {
	return s.sessions.Authenticated(ctx, req, func(ctx context.Context, req api.Request, _ iam.Identity) api.Response {
		var token string
		var entry catalog.Entry
		found := true
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			token = s.operatingToken(gctx, req.Token)
			return nil
		})
		if req.ResourceType != "" {
			g.Go(func() error {
				var err error
				entry, found, err = s.catalog.ResolveResourceType(gctx, req.ResourceType)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return upstreamFailure(ctx, err, "Catalog lookup failed")
		}
		if !found {
			return api.NotFound()
		}

		list, err := s.resources.ListAllResources(ctx, token, entry.ID)
		if err != nil {
			return upstreamFailure(ctx, err, "Listing resources failed")
		}
		return api.JSON(http.StatusOK, list)
	})
}

// ManageResource forwards a call to the resource controller for one instance.
func (s *Service) ManageResource(ctx context.Context, req api.Request) api.Response {
	return s.sessions.Authenticated(ctx, req, func(ctx context.Context, req api.Request, _ iam.Identity) api.Response {
		resp, err := s.resources.Manage(ctx, s.operatingToken(ctx, req.Token), req.ResourceID, resources.ManageRequest{
			Path:   req.Path,
			Method: req.Method,
			Params: req.Params,
			Header: req.Header,
			Body:   req.Body,
		})
		if err != nil {
			return upstreamFailure(ctx, err, "Managing resource failed")
		}
		return resp
	})
}

// Proxy forwards a call to the backend serving the instance.
func (s *Service) Proxy(ctx context.Context, req api.Request) api.Response {
	return s.sessions.Authenticated(ctx, req, func(ctx context.Context, req api.Request, _ iam.Identity) api.Response {
		return s.proxy.Proxy(ctx, s.operatingToken(ctx, req.Token), req)
	})
}

// operatingToken is the service API key's access token when one is
// configured and its login works, otherwise callerToken.
func (s *Service) operatingToken(ctx context.Context, callerToken string) string {
	if s.serviceAPIKey == "" || s.apiKeyLogins == nil {
		return callerToken
	}
	result, err := s.apiKeyLogins.GetOrLoad(ctx, s.serviceAPIKey, func(ctx context.Context) (iam.TokenResult, error) {
		result := s.tokens.CreateToken(ctx, iam.APIKeyGrant{APIKey: s.serviceAPIKey})
		if !result.Success {
			return result, errors.Wrapf(errors.ErrInvalidGrant, "service api key login: %s", result.Message)
		}
		return result, nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Service API key login failed, using caller token")
		return callerToken
	}
	return result.Token
}

// upstreamFailure passes an upstream error status through and reports
// anything else as a bad gateway.
func upstreamFailure(ctx context.Context, err error, msg string) api.Response {
	if se, ok := upstream.AsStatusError(err); ok {
		return se.Response()
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg(msg)
	return api.JSON(http.StatusBadGateway, api.MessageBody{Message: err.Error()})
}
