package session_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarcoABCardoso/ibmid-login/session"
)

func TestAuthCookies(t *testing.T) {
	s := session.Session{Token: "at", RefreshToken: "rt", AccountID: "acc-1", ExpiresIn: 1337}

	h := session.CookieHeader(session.AuthCookies(s, 24))
	require.Equal(t, []string{
		"token=at; Path=/; Max-Age=1337; HttpOnly",
		"refresh_token=rt; Path=/; Max-Age=32088; HttpOnly",
		"account_id=acc-1; Path=/; Max-Age=32088; HttpOnly",
	}, h.Values("Set-Cookie"))
}

func TestAuthCookies_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		in     session.Session
		factor int
	}{
		{name: "full session", in: session.Session{Token: "at", RefreshToken: "rt", AccountID: "acc-1", ExpiresIn: 3600}, factor: 24},
		{name: "api key session", in: session.Session{Token: "at", RefreshToken: "rt", ExpiresIn: 60}, factor: 2},
		{name: "logout", in: session.Session{}, factor: 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := session.FromSetCookie(session.CookieHeader(session.AuthCookies(tt.in, tt.factor)))
			require.Equal(t, tt.in, got)
		})
	}
}

func TestAuthCookies_LogoutExpiresImmediately(t *testing.T) {
	cookies := session.AuthCookies(session.Session{}, 24)
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		require.Empty(t, c.Value)
		require.Contains(t, c.String(), "Max-Age=0")
		require.True(t, c.HttpOnly)
		require.Equal(t, "/", c.Path)
	}
}

func TestFromCookies_Request(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: session.CookieToken, Value: "at"})
	r.AddCookie(&http.Cookie{Name: session.CookieRefreshToken, Value: "rt"})
	r.AddCookie(&http.Cookie{Name: session.CookieAccountID, Value: "acc-1"})
	r.AddCookie(&http.Cookie{Name: "unrelated", Value: "x"})

	got := session.FromCookies(r.Cookies())
	require.Equal(t, session.Session{Token: "at", RefreshToken: "rt", AccountID: "acc-1"}, got)
}

func TestStateAndKindNames(t *testing.T) {
	require.Equal(t, "refreshing", session.StateRefreshing.String())
	require.Equal(t, "unauthenticated", session.StateUnauthenticated.String())
	require.Equal(t, "not_logged_in", session.KindNotLoggedIn.String())
	require.Equal(t, "unknown", session.State(99).String())
}
