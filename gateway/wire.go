package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/accounts"
	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/catalog"
	"github.com/MarcoABCardoso/ibmid-login/iam"
	"github.com/MarcoABCardoso/ibmid-login/internal/config"
	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
	"github.com/MarcoABCardoso/ibmid-login/proxy"
	"github.com/MarcoABCardoso/ibmid-login/resources"
	"github.com/MarcoABCardoso/ibmid-login/session"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

// Build wires a Service from configuration. Caches live in Redis when an
// address is configured and in process memory otherwise.
func Build(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*Service, error) {
	store, closer, err := newStore(ctx, cfg.GetRedisAddr())
	if err != nil {
		return nil, err
	}

	client := func(service string) *upstream.Client {
		return upstream.New(service, upstream.WithMetrics(m), upstream.WithTimeout(cfg.GetHTTPTimeout()))
	}

	tokens := iam.New(client("iam"), iam.Options{
		BaseURL:      cfg.GetIAMURL(),
		ClientID:     cfg.GetIAMClientID(),
		ClientSecret: cfg.GetIAMClientSecret(),
	}, cache.New[iam.Discovery]("discovery", store, cfg.GetDiscoveryTTL(), cache.WithMetrics(m)))

	accountClient := accounts.New(client("accounts"), cfg.GetAccountsURL(), cfg.GetAllowedAccounts())

	sessions, err := session.New(tokens, iam.NewVerifier(tokens), accountClient, session.Options{
		AllowedAccounts:       cfg.GetAllowedAccounts(),
		AllowedUsers:          cfg.GetAllowedUsers(),
		RefreshLifetimeFactor: cfg.GetRefreshLifetimeFactor(),
		Metrics:               m,
	})
	if err != nil {
		closeQuietly(ctx, closer)
		return nil, fmt.Errorf("[gateway Build] session manager: %w", err)
	}

	catalogClient := catalog.New(client("catalog"), catalog.Options{
		BaseURL:      cfg.GetCatalogURL(),
		ClientID:     cfg.GetIAMClientID(),
		ClientSecret: cfg.GetIAMClientSecret(),
	}, cache.New[[]catalog.Entry]("catalog", store, cfg.GetCatalogTTL(), cache.WithMetrics(m)))

	resourceClient := resources.New(client("resource-controller"), cfg.GetResourceControllerURL(),
		cache.New[resources.List]("resources", store, cfg.GetResourcesTTL(), cache.WithMetrics(m)))

	resolver := proxy.NewResolver(resourceClient, client("endpoints"), proxy.Options{
		DataPlatformURL: cfg.GetDataPlatformURL(),
		Metrics:         m,
	})
	forwarder := upstream.New("proxy", upstream.WithMetrics(m), upstream.WithHTTPClient(&http.Client{
		Timeout: cfg.GetHTTPTimeout(),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}))

	return New(Deps{
		Sessions:      sessions,
		Tokens:        tokens,
		Accounts:      accountClient,
		Catalog:       catalogClient,
		Resources:     resourceClient,
		Proxy:         proxy.New(resolver, forwarder),
		ServiceAPIKey: cfg.GetServiceAPIKey(),
		APIKeyLogins:  cache.New[iam.TokenResult]("apikey_login", store, cfg.GetAPIKeyLoginTTL(), cache.WithMetrics(m)),
		Closer:        closer,
	}), nil
}

func newStore(ctx context.Context, redisAddr string) (cache.Store, io.Closer, error) {
	if redisAddr == "" {
		return cache.NewMemoryStore(), nil, nil
	}
	store, err := cache.NewRedisStore(ctx, redisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("[gateway Build] redis cache at %s: %w", redisAddr, err)
	}
	zerolog.Ctx(ctx).Info().Str("addr", redisAddr).Msg("Using Redis cache store")
	return store, store, nil
}

func closeQuietly(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Closing cache store failed")
	}
}
