package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoABCardoso/ibmid-login/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ibmid-login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "https://iam.cloud.ibm.com", c.GetIAMURL())
	require.Equal(t, time.Hour, c.GetDiscoveryTTL())
	require.Equal(t, 30*time.Second, c.GetResourcesTTL())
	require.Equal(t, 20*time.Minute, c.GetAPIKeyLoginTTL())
	require.Equal(t, 24, c.GetRefreshLifetimeFactor())
	require.Nil(t, c.GetAllowedAccounts())
	require.Nil(t, c.GetAllowedUsers())
	require.NoError(t, c.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
iam:
  url: https://iam.test.example.com/
allow:
  accounts: ["acc-1", "acc-2"]
  users: [".*@example.com$"]
cache:
  catalog_ttl: 5m
`)
	t.Setenv("IBMID_SERVICE_APIKEY", "svc-key")
	t.Setenv("IBMID_ACCOUNTS_URL", "https://accounts.test.example.com")

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "https://iam.test.example.com", c.GetIAMURL())
	require.Equal(t, "https://accounts.test.example.com", c.GetAccountsURL())
	require.Equal(t, []string{"acc-1", "acc-2"}, c.GetAllowedAccounts())
	require.Equal(t, []string{".*@example.com$"}, c.GetAllowedUsers())
	require.Equal(t, 5*time.Minute, c.GetCatalogTTL())
	require.Equal(t, "svc-key", c.GetServiceAPIKey())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		path := writeConfig(t, "catalog:\n  url: not a url\n")
		_, err := config.Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "must be a valid URL")
	})

	t.Run("invalid user pattern", func(t *testing.T) {
		path := writeConfig(t, "allow:\n  users: [\"(unclosed\"]\n")
		_, err := config.Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "valid regular expression")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestAllowedOrigins(t *testing.T) {
	c := config.New()
	c.Server.AllowedOrigins = []string{"https://app.example.com"}

	origins := c.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://app.example.com"))
	require.False(t, origins.IsAllowedOrigin("https://evil.example.com"))
}
