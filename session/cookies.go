package session

import (
	"net/http"
)

const (
	CookieToken        = "token"
	CookieRefreshToken = "refresh_token"
	CookieAccountID    = "account_id"
)

// DefaultRefreshLifetimeFactor is how many access token lifetimes the
// refresh token and account cookies live for.
const DefaultRefreshLifetimeFactor = 24

// Session is a token pair scoped to one account. The server keeps no copy;
// it lives only in the caller's cookies.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthCookies renders s as exactly three cookies. A zero ExpiresIn expires
// them immediately, which is how logout clears a session.
func AuthCookies(s Session, refreshFactor int) []*http.Cookie {
	if refreshFactor < 1 {
		refreshFactor = 1
	}
	return []*http.Cookie{
		newCookie(CookieToken, s.Token, s.ExpiresIn),
		newCookie(CookieRefreshToken, s.RefreshToken, s.ExpiresIn*refreshFactor),
		newCookie(CookieAccountID, s.AccountID, s.ExpiresIn*refreshFactor),
	}
}

func newCookie(name, value string, maxAge int) *http.Cookie {
	if maxAge <= 0 {
		// net/http writes Max-Age=0 only for negative values.
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	}
}

// CookieHeader renders the cookies as Set-Cookie header lines.
func CookieHeader(cookies []*http.Cookie) http.Header {
	h := http.Header{}
	for _, c := range cookies {
		if v := c.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
	return h
}

// FromCookies recovers a Session from the cookies AuthCookies produced.
// ExpiresIn comes from the access token cookie's max age.
func FromCookies(cookies []*http.Cookie) Session {
	var s Session
	for _, c := range cookies {
		switch c.Name {
		case CookieToken:
			s.Token = c.Value
			if c.MaxAge > 0 {
				s.ExpiresIn = c.MaxAge
			}
		case CookieRefreshToken:
			s.RefreshToken = c.Value
		case CookieAccountID:
			s.AccountID = c.Value
		}
	}
	return s
}

func setsSessionCookies(h http.Header) bool {
	for _, c := range (&http.Response{Header: h}).Cookies() {
		switch c.Name {
		case CookieToken, CookieRefreshToken, CookieAccountID:
			return true
		}
	}
	return false
}

// FromSetCookie parses Set-Cookie lines, as found on a response, back into a
// Session.
func FromSetCookie(h http.Header) Session {
	return FromCookies((&http.Response{Header: h}).Cookies())
}
