// Package iam talks to the identity provider: token exchanges, the discovery
// document and access token verification.
package iam

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const (
	tokenPath     = "/identity/token"
	discoveryPath = "/identity/.well-known/openid-configuration"
	keysPath      = "/identity/keys"
)

// Discovery is the subset of the provider metadata the gateway uses.
type Discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	PasscodeEndpoint      string `json:"passcode_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// Client calls the identity provider.
type Client struct {
	http         *upstream.Client
	baseURL      string
	clientID     string
	clientSecret string
	discovery    *cache.Cache[Discovery]
}

// New builds a client. The discovery cache holds at most one entry.
func New(httpClient *upstream.Client, opts Options, discovery *cache.Cache[Discovery]) *Client {
	return &Client{
		http:         httpClient,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		discovery:    discovery,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateToken exchanges grant for a token pair. It never returns an error:
// every failure is folded into an unsuccessful TokenResult carrying the
// provider's message.
func (c *Client) CreateToken(ctx context.Context, grant Grant) TokenResult {
	if grant == nil {
		return failure("missing grant")
	}
	form := grant.form()
	form.Set("grant_type", grant.GrantType())

	var resp tokenResponse
	err := c.http.JSON(ctx, upstream.Request{
		Method:   http.MethodPost,
		URL:      c.baseURL + tokenPath,
		Username: c.clientID,
		Password: c.clientSecret,
		Form:     form,
	}, &resp)
	if err != nil {
		err = pkgerrors.Wrap(err, "token exchange failed")
		if se, ok := upstream.AsStatusError(err); ok {
			re := retrieveError(se)
			zerolog.Ctx(ctx).Debug().Str("grant_type", grant.GrantType()).Str("error_code", re.ErrorCode).Int("status", se.StatusCode).Msg("Token exchange rejected")
			return failure(re.ErrorDescription)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("grant_type", grant.GrantType()).Msg("Token exchange failed")
		return failure(pkgerrors.Cause(err).Error())
	}

	return TokenResult{
		Success:      true,
		Token:        resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}
}

// retrieveError maps the provider's error body onto the oauth2 error shape.
func retrieveError(se *upstream.StatusError) *oauth2.RetrieveError {
	re := &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: se.StatusCode, Header: se.Header},
		Body:      se.Body,
		ErrorCode: gjson.GetBytes(se.Body, "errorCode").String(),
	}
	if re.ErrorCode == "" {
		re.ErrorCode = gjson.GetBytes(se.Body, "error").String()
	}
	re.ErrorDescription = se.Message()
	if re.ErrorDescription == "" {
		re.ErrorDescription = http.StatusText(se.StatusCode)
	}
	return re
}

// DiscoveryDocument returns the provider metadata, cached for the lifetime of
// the discovery cache.
func (c *Client) DiscoveryDocument(ctx context.Context) (Discovery, error) {
	return c.discovery.GetOrLoad(ctx, c.baseURL, func(ctx context.Context) (Discovery, error) {
		var doc Discovery
		if err := c.http.JSON(ctx, upstream.Request{URL: c.baseURL + discoveryPath}, &doc); err != nil {
			return Discovery{}, pkgerrors.Wrap(err, "fetch discovery document")
		}
		return doc, nil
	})
}

// PasscodeEndpoint is where users obtain a one-time passcode.
func (c *Client) PasscodeEndpoint(ctx context.Context) (string, error) {
	doc, err := c.DiscoveryDocument(ctx)
	if err != nil {
		return "", err
	}
	if doc.PasscodeEndpoint == "" {
		return "", pkgerrors.New("discovery document has no passcode_endpoint")
	}
	return doc.PasscodeEndpoint, nil
}
