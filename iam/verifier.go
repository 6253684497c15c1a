package iam

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
)

// signingAlgs are the RSA algorithms the identity provider may sign with.
var signingAlgs = []string{
	oidc.RS256, oidc.RS384, oidc.RS512,
	oidc.PS256, oidc.PS384, oidc.PS512,
}

// Identity is the verified content of an access token.
type Identity struct {
	Email   string         `json:"email"`
	Account AccountRef     `json:"account"`
	Claims  map[string]any `json:"-"`
}

// AccountRef names the account a token is currently scoped to.
type AccountRef struct {
	BSS string `json:"bss"`
}

// Verifier checks access token signatures against the provider's published
// keys. Keys are fetched on demand and cached by key id.
type Verifier struct {
	client     *Client
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

type VerifierOption func(*Verifier)

func WithVerifierHTTPClient(httpClient *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.httpClient = httpClient
	}
}

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(client *Client, options ...VerifierOption) *Verifier {
	v := &Verifier{
		client:     client,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Verify checks signature, expiry and, when the discovery document names
// one, the issuer. All failures wrap errors.ErrInvalidSignature.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, errors.Wrapf(errors.ErrInvalidSignature, "empty token")
	}
	idTokenVerifier := v.idTokenVerifier(ctx)
	token, err := idTokenVerifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, errors.Wrapf(errors.ErrInvalidSignature, "verify token: %v", err)
	}

	var identity Identity
	if err := token.Claims(&identity); err != nil {
		return Identity{}, errors.Wrapf(errors.ErrInvalidSignature, "decode claims: %v", err)
	}
	if err := token.Claims(&identity.Claims); err != nil {
		return Identity{}, errors.Wrapf(errors.ErrInvalidSignature, "decode claims: %v", err)
	}
	return identity, nil
}

// idTokenVerifier builds the go-oidc verifier from the discovery document.
// If discovery fails the default key location is used without an issuer
// check, and the next call tries discovery again.
func (v *Verifier) idTokenVerifier(ctx context.Context) *oidc.IDTokenVerifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier
	}

	jwksURL := v.client.BaseURL() + keysPath
	issuer := ""
	doc, err := v.client.DiscoveryDocument(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Discovery failed, verifying against default key set")
	} else {
		if doc.JWKSURI != "" {
			jwksURL = doc.JWKSURI
		}
		issuer = doc.Issuer
	}

	// The key set outlives this request, so it must not inherit ctx.
	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), v.httpClient), jwksURL)
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{
		SkipClientIDCheck:    true,
		SkipIssuerCheck:      issuer == "",
		SupportedSigningAlgs: signingAlgs,
		Now:                  v.now,
	})
	if err == nil {
		v.verifier = verifier
	}
	return verifier
}
