package iam

import "net/url"

// Grant types understood by the token endpoint.
const (
	GrantTypePasscode = "urn:ibm:params:oauth:grant-type:passcode"
	GrantTypeAPIKey   = "urn:ibm:params:oauth:grant-type:apikey"
	GrantTypeRefresh  = "refresh_token"
)

// Grant is one way of obtaining a token pair. The set of grants is closed.
type Grant interface {
	GrantType() string
	form() url.Values
}

// PasscodeGrant exchanges a one-time passcode from the interactive login page.
type PasscodeGrant struct {
	Passcode string
}

func (g PasscodeGrant) GrantType() string { return GrantTypePasscode }

func (g PasscodeGrant) form() url.Values {
	return url.Values{"passcode": {g.Passcode}}
}

// APIKeyGrant exchanges a platform API key. The resulting token is not
// scoped to a selected account.
type APIKeyGrant struct {
	APIKey string
}

func (g APIKeyGrant) GrantType() string { return GrantTypeAPIKey }

func (g APIKeyGrant) form() url.Values {
	return url.Values{"apikey": {g.APIKey}}
}

// RefreshGrant exchanges a refresh token, optionally rescoping the new pair
// to AccountID.
type RefreshGrant struct {
	RefreshToken string
	AccountID    string
}

func (g RefreshGrant) GrantType() string { return GrantTypeRefresh }

func (g RefreshGrant) form() url.Values {
	v := url.Values{"refresh_token": {g.RefreshToken}}
	if g.AccountID != "" {
		v.Set("account", g.AccountID)
	}
	return v
}
