// Package session turns access and refresh tokens into a renewable,
// cookie-carried session scoped to one account, and gates operations on it.
package session

import (
	"context"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/accounts"
	"github.com/MarcoABCardoso/ibmid-login/api"
	"github.com/MarcoABCardoso/ibmid-login/iam"
	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
)

// TokenService exchanges grants for token pairs.
type TokenService interface {
	CreateToken(ctx context.Context, grant iam.Grant) iam.TokenResult
}

// TokenVerifier checks an access token and returns its identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (iam.Identity, error)
}

// AccountLister lists the accounts reachable with a token, already filtered
// by the account allow-list.
type AccountLister interface {
	ListAccounts(ctx context.Context, token string) (accounts.Page, error)
}

// Operation is a business operation run on behalf of a verified identity.
// req carries a usable access token.
type Operation func(ctx context.Context, req api.Request, identity iam.Identity) api.Response

// Result is the outcome of a login or refresh.
type Result struct {
	Kind    Kind
	Session Session
	// Token is the provider outcome; it is the response body for KindOK and
	// KindUpstreamError.
	Token iam.TokenResult
}

type Options struct {
	// AllowedAccounts is nil when no account gate is configured.
	AllowedAccounts []string
	// AllowedUsers holds email patterns; nil when no user gate is configured.
	AllowedUsers          []string
	RefreshLifetimeFactor int
	Metrics               *metrics.Metrics
}

type Manager struct {
	tokens          TokenService
	verifier        TokenVerifier
	accounts        AccountLister
	allowedAccounts accounts.AllowList
	allowedUsers    []*regexp.Regexp
	refreshFactor   int
	metrics         *metrics.Metrics
}

// New validates the user patterns and builds a manager.
func New(tokens TokenService, verifier TokenVerifier, accountLister AccountLister, opts Options) (*Manager, error) {
	m := &Manager{
		tokens:          tokens,
		verifier:        verifier,
		accounts:        accountLister,
		allowedAccounts: accounts.AllowList(opts.AllowedAccounts),
		refreshFactor:   opts.RefreshLifetimeFactor,
		metrics:         opts.Metrics,
	}
	if m.refreshFactor < 1 {
		m.refreshFactor = DefaultRefreshLifetimeFactor
	}
	if opts.AllowedUsers != nil {
		m.allowedUsers = make([]*regexp.Regexp, 0, len(opts.AllowedUsers))
		for _, pattern := range opts.AllowedUsers {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrInvalidRequest, "allowed user pattern %q: %v", pattern, err)
			}
			m.allowedUsers = append(m.allowedUsers, re)
		}
	}
	return m, nil
}

func (m *Manager) transition(ctx context.Context, from, to State) {
	zerolog.Ctx(ctx).Debug().Stringer("from", from).Stringer("to", to).Msg("Session transition")
	m.metrics.ObserveSession(to.String())
}

// CheckUserAllowed passes when no gate is configured, when the email matches
// an allowed pattern, or when the current account is allowed.
func (m *Manager) CheckUserAllowed(identity iam.Identity) bool {
	if m.allowedUsers == nil && !m.allowedAccounts.Configured() {
		return true
	}
	for _, re := range m.allowedUsers {
		if re.MatchString(identity.Email) {
			return true
		}
	}
	return m.allowedAccounts.Configured() && m.allowedAccounts.Allows(identity.Account.BSS)
}

// AuthCookies renders s with the configured refresh lifetime factor.
func (m *Manager) AuthCookies(s Session) []*http.Cookie {
	return AuthCookies(s, m.refreshFactor)
}

func (m *Manager) cookieHeader(s Session) http.Header {
	return CookieHeader(m.AuthCookies(s))
}

// Response converts a Result into what the caller sees.
func (m *Manager) Response(r Result) api.Response {
	switch r.Kind {
	case KindOK:
		return api.JSON(http.StatusOK, r.Token).WithHeader(m.cookieHeader(r.Session))
	case KindUpstreamError:
		return api.JSON(http.StatusUnauthorized, r.Token)
	default:
		return api.NotLoggedIn()
	}
}

type LoginRequest struct {
	Passcode string
	APIKey   string
}

// Login starts a session from exactly one of a passcode or an API key.
//
// A passcode token is not scoped to an account, so each reachable account is
// tried in turn and the first refresh whose identity passes the allow-lists
// becomes the session. API key tokens are used as issued.
func (m *Manager) Login(ctx context.Context, req LoginRequest) api.Response {
	var grant iam.Grant
	switch {
	case req.Passcode != "" && req.APIKey == "":
		grant = iam.PasscodeGrant{Passcode: req.Passcode}
	case req.APIKey != "" && req.Passcode == "":
		grant = iam.APIKeyGrant{APIKey: req.APIKey}
	default:
		return api.BadRequest(errors.ErrAmbiguousGrant.Error())
	}

	m.transition(ctx, StateUnauthenticated, StateAuthenticating)
	initial := m.tokens.CreateToken(ctx, grant)
	if !initial.Success {
		m.transition(ctx, StateAuthenticating, StateUnauthenticated)
		return m.Response(Result{Kind: KindUpstreamError, Token: initial})
	}

	if _, isAPIKey := grant.(iam.APIKeyGrant); isAPIKey {
		m.transition(ctx, StateAuthenticating, StateAuthenticated)
		return m.Response(Result{Kind: KindOK, Token: initial, Session: sessionFrom(initial, "")})
	}

	result := m.selectAccount(ctx, initial)
	if result.Kind != KindOK {
		m.transition(ctx, StateAuthenticating, StateUnauthenticated)
	} else {
		m.transition(ctx, StateAuthenticating, StateAuthenticated)
	}
	return m.Response(result)
}

func (m *Manager) selectAccount(ctx context.Context, initial iam.TokenResult) Result {
	logger := zerolog.Ctx(ctx)
	page, err := m.accounts.ListAccounts(ctx, initial.Token)
	if err != nil {
		logger.Debug().Err(err).Msg("Listing accounts during login failed")
		return Result{Kind: KindNotLoggedIn}
	}
	if len(page.Resources) == 0 {
		logger.Debug().Msg("No allowed accounts for user")
		return Result{Kind: KindNotLoggedIn}
	}

	for _, account := range page.Resources {
		guid := account.GUID()
		refreshed := m.tokens.CreateToken(ctx, iam.RefreshGrant{RefreshToken: initial.RefreshToken, AccountID: guid})
		if !refreshed.Success {
			logger.Debug().Str("account_id", guid).Str("reason", refreshed.Message).Msg("Account refresh failed, trying next")
			continue
		}
		identity, err := m.verifier.Verify(ctx, refreshed.Token)
		if err != nil {
			logger.Debug().Err(err).Str("account_id", guid).Msg("Refreshed token failed verification")
			continue
		}
		if !m.CheckUserAllowed(identity) {
			logger.Debug().Str("account_id", guid).Msg("Identity not allowed for account")
			continue
		}
		return Result{Kind: KindOK, Token: refreshed, Session: sessionFrom(refreshed, guid)}
	}
	return Result{Kind: KindNotLoggedIn}
}

// Logout expires all three cookies. It needs no session and may be repeated.
func (m *Manager) Logout() api.Response {
	return api.JSON(http.StatusOK, api.SuccessBody{Success: true}).WithHeader(m.cookieHeader(Session{}))
}

// Refresh exchanges refreshToken for a new pair scoped to accountID, which
// must pass the account allow-list.
func (m *Manager) Refresh(ctx context.Context, refreshToken, accountID string) Result {
	if refreshToken == "" {
		return Result{Kind: KindNotLoggedIn}
	}
	if m.allowedAccounts.Configured() && !m.allowedAccounts.Allows(accountID) {
		zerolog.Ctx(ctx).Debug().Str("account_id", accountID).Msg("Refresh to account outside allow-list")
		return Result{Kind: KindNotLoggedIn}
	}
	refreshed := m.tokens.CreateToken(ctx, iam.RefreshGrant{RefreshToken: refreshToken, AccountID: accountID})
	if !refreshed.Success {
		return Result{Kind: KindUpstreamError, Token: refreshed}
	}
	return Result{Kind: KindOK, Token: refreshed, Session: sessionFrom(refreshed, accountID)}
}

// SwitchAccount rescopes the session to req.AccountID.
func (m *Manager) SwitchAccount(ctx context.Context, req api.Request) api.Response {
	return m.Authenticated(ctx, req, func(ctx context.Context, req api.Request, _ iam.Identity) api.Response {
		m.transition(ctx, StateAuthenticated, StateRefreshing)
		result := m.Refresh(ctx, req.RefreshToken, req.AccountID)
		if result.Kind == KindOK {
			m.transition(ctx, StateRefreshing, StateAuthenticated)
		} else {
			m.transition(ctx, StateRefreshing, StateUnauthenticated)
		}
		return m.Response(result)
	})
}

// Authenticated runs op with a verified, allowed identity. A missing or
// unverifiable access token is replaced by refreshing when a refresh token
// is present, and the new cookies are added to op's response unless op set
// session cookies of its own. Every failure
// is the uniform not-logged-in response; with no tokens at all nothing is
// called upstream.
func (m *Manager) Authenticated(ctx context.Context, req api.Request, op Operation) api.Response {
	if req.Token == "" && req.RefreshToken == "" {
		return api.NotLoggedIn()
	}

	var refreshed *Session
	refresh := func() bool {
		m.transition(ctx, StateUnauthenticated, StateRefreshing)
		result := m.Refresh(ctx, req.RefreshToken, req.AccountID)
		if result.Kind != KindOK {
			m.transition(ctx, StateRefreshing, StateUnauthenticated)
			return false
		}
		m.transition(ctx, StateRefreshing, StateAuthenticated)
		req = req.WithToken(result.Session.Token, result.Session.RefreshToken)
		refreshed = &result.Session
		return true
	}

	if req.Token == "" && !refresh() {
		return api.NotLoggedIn()
	}

	identity, err := m.verifier.Verify(ctx, req.Token)
	if err != nil && refreshed == nil && req.RefreshToken != "" {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Access token rejected, refreshing")
		if !refresh() {
			return api.NotLoggedIn()
		}
		identity, err = m.verifier.Verify(ctx, req.Token)
	}
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Access token rejected")
		return api.NotLoggedIn()
	}
	if !m.CheckUserAllowed(identity) {
		zerolog.Ctx(ctx).Debug().Str("account_id", identity.Account.BSS).Msg("Identity not allowed")
		return api.NotLoggedIn()
	}

	resp := op(ctx, req, identity)
	if refreshed != nil && !setsSessionCookies(resp.Header) {
		resp = resp.WithHeader(m.cookieHeader(*refreshed))
	}
	return resp
}

// OwnUser returns the caller's claims together with the accounts they can
// reach and the selected account id. Any failure is reported as not logged in.
func (m *Manager) OwnUser(ctx context.Context, req api.Request) api.Response {
	return m.Authenticated(ctx, req, func(ctx context.Context, req api.Request, identity iam.Identity) api.Response {
		page, err := m.accounts.ListAccounts(ctx, req.Token)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("Listing accounts for user failed")
			return api.NotLoggedIn()
		}
		body := make(map[string]any, len(identity.Claims)+2)
		for k, v := range identity.Claims {
			body[k] = v
		}
		body["accounts"] = page.Resources
		body["account_id"] = req.AccountID
		return api.JSON(http.StatusOK, body)
	})
}

func sessionFrom(t iam.TokenResult, accountID string) Session {
	return Session{
		Token:        t.Token,
		RefreshToken: t.RefreshToken,
		AccountID:    accountID,
		ExpiresIn:    t.ExpiresIn,
	}
}
