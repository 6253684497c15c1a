package iam_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/MarcoABCardoso/ibmid-login/cache"
	"github.com/MarcoABCardoso/ibmid-login/iam"
	"github.com/MarcoABCardoso/ibmid-login/internal/errors"
	"github.com/MarcoABCardoso/ibmid-login/internal/fakecloud"
	"github.com/MarcoABCardoso/ibmid-login/upstream"
)

const testEmail = "jane.doe@example.com"

type testFixture struct {
	cloud    *fakecloud.Server
	client   *iam.Client
	verifier *iam.Verifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	cloud := fakecloud.New()
	t.Cleanup(cloud.Close)

	client := iam.New(
		upstream.New("iam"),
		iam.Options{BaseURL: cloud.URL + "/", ClientID: "bx", ClientSecret: "bx"},
		cache.New[iam.Discovery]("discovery", cache.NewMemoryStore(), time.Hour),
	)
	return &testFixture{
		cloud:    cloud,
		client:   client,
		verifier: iam.NewVerifier(client, iam.WithVerifierHTTPClient(cloud.Client())),
	}
}

func TestCreateToken(t *testing.T) {
	f := setupTestFixture(t)
	user := fakecloud.User{Email: testEmail, Accounts: []string{"acc-1", "acc-2"}}
	f.cloud.Passcodes["good-passcode"] = user
	f.cloud.APIKeys["good-key"] = user

	t.Run("passcode", func(t *testing.T) {
		result := f.client.CreateToken(context.Background(), iam.PasscodeGrant{Passcode: "good-passcode"})
		require.True(t, result.Success)
		require.NotEmpty(t, result.Token)
		require.NotEmpty(t, result.RefreshToken)
		require.Equal(t, fakecloud.ExpiresIn, result.ExpiresIn)
		require.Empty(t, result.Message)
	})

	t.Run("bad passcode carries provider message", func(t *testing.T) {
		result := f.client.CreateToken(context.Background(), iam.PasscodeGrant{Passcode: "nope"})
		require.False(t, result.Success)
		require.Empty(t, result.Token)
		require.Equal(t, "Provided passcode is invalid", result.Message)
	})

	t.Run("api key", func(t *testing.T) {
		result := f.client.CreateToken(context.Background(), iam.APIKeyGrant{APIKey: "good-key"})
		require.True(t, result.Success)

		identity, err := f.verifier.Verify(context.Background(), result.Token)
		require.NoError(t, err)
		require.Equal(t, "acc-1", identity.Account.BSS)
	})

	t.Run("refresh scoped to account", func(t *testing.T) {
		rt := f.cloud.IssueRefreshToken(user)
		result := f.client.CreateToken(context.Background(), iam.RefreshGrant{RefreshToken: rt, AccountID: "acc-2"})
		require.True(t, result.Success)
		require.NotEqual(t, rt, result.RefreshToken)

		identity, err := f.verifier.Verify(context.Background(), result.Token)
		require.NoError(t, err)
		require.Equal(t, testEmail, identity.Email)
		require.Equal(t, "acc-2", identity.Account.BSS)
	})

	t.Run("refresh to inaccessible account", func(t *testing.T) {
		rt := f.cloud.IssueRefreshToken(user)
		result := f.client.CreateToken(context.Background(), iam.RefreshGrant{RefreshToken: rt, AccountID: "acc-9"})
		require.False(t, result.Success)
		require.Contains(t, result.Message, "acc-9")
	})

	t.Run("nil grant", func(t *testing.T) {
		require.False(t, f.client.CreateToken(context.Background(), nil).Success)
	})

	t.Run("transport failure", func(t *testing.T) {
		dead := iam.New(upstream.New("iam"), iam.Options{BaseURL: "http://127.0.0.1:1"},
			cache.New[iam.Discovery]("discovery", cache.NewMemoryStore(), time.Hour))
		result := dead.CreateToken(context.Background(), iam.APIKeyGrant{APIKey: "k"})
		require.False(t, result.Success)
		require.NotEmpty(t, result.Message)
	})
}

func TestGrantTypes(t *testing.T) {
	require.Equal(t, "urn:ibm:params:oauth:grant-type:passcode", iam.PasscodeGrant{}.GrantType())
	require.Equal(t, "urn:ibm:params:oauth:grant-type:apikey", iam.APIKeyGrant{}.GrantType())
	require.Equal(t, "refresh_token", iam.RefreshGrant{}.GrantType())
}

func TestDiscoveryDocument_Cached(t *testing.T) {
	f := setupTestFixture(t)

	for i := 0; i < 3; i++ {
		doc, err := f.client.DiscoveryDocument(context.Background())
		require.NoError(t, err)
		require.Equal(t, f.cloud.Issuer(), doc.Issuer)
		require.Equal(t, f.cloud.URL+"/identity/passcode", doc.PasscodeEndpoint)
	}
	require.Equal(t, 1, f.cloud.Calls("/identity/.well-known/openid-configuration"))

	endpoint, err := f.client.PasscodeEndpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.cloud.URL+"/identity/passcode", endpoint)
}

func TestDiscoveryDocument_Failure(t *testing.T) {
	dead := iam.New(upstream.New("iam"), iam.Options{BaseURL: "http://127.0.0.1:1"},
		cache.New[iam.Discovery]("discovery", cache.NewMemoryStore(), time.Hour))

	_, err := dead.DiscoveryDocument(context.Background())
	require.Error(t, err)
	_, err = dead.PasscodeEndpoint(context.Background())
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("valid", func(t *testing.T) {
		identity, err := f.verifier.Verify(context.Background(), f.cloud.AccessToken(testEmail, "acc-1", time.Hour))
		require.NoError(t, err)
		require.Equal(t, testEmail, identity.Email)
		require.Equal(t, "acc-1", identity.Account.BSS)
		require.Equal(t, f.cloud.Issuer(), identity.Claims["iss"])
	})

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "foreign key", token: f.cloud.ForeignToken(testEmail, "acc-1")},
		{name: "expired", token: f.cloud.AccessToken(testEmail, "acc-1", -time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(context.Background(), tt.token)
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrInvalidSignature))
		})
	}

	require.Equal(t, 1, f.cloud.Calls("/identity/.well-known/openid-configuration"))
}

func TestVerify_SigningAlgorithms(t *testing.T) {
	for _, method := range []jwt.SigningMethod{
		jwt.SigningMethodRS256,
		jwt.SigningMethodRS384,
		jwt.SigningMethodRS512,
		jwt.SigningMethodPS256,
	} {
		t.Run(method.Alg(), func(t *testing.T) {
			f := setupTestFixture(t)
			f.cloud.SigningMethod = method

			identity, err := f.verifier.Verify(context.Background(), f.cloud.AccessToken(testEmail, "acc-1", time.Hour))
			require.NoError(t, err)
			require.Equal(t, testEmail, identity.Email)
		})
	}
}

func TestVerify_OtherProvider(t *testing.T) {
	f := setupTestFixture(t)
	other := setupTestFixture(t)

	verifier := iam.NewVerifier(other.client, iam.WithVerifierHTTPClient(http.DefaultClient))
	_, err := verifier.Verify(context.Background(), f.cloud.AccessToken(testEmail, "acc-1", time.Hour))
	require.ErrorIs(t, err, errors.ErrInvalidSignature)
}
