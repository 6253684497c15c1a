package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "IBMID"
	configFileName = "ibmid-login"
)

// Load reads configuration from configFile (or ibmid-login.yaml in the working
// directory or /etc/ibmid-login when empty), applies IBMID_* environment
// overrides on top of the defaults and validates the result.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = GetEnv(configFileEnvVar, "")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/" + configFileName)
	}

	// IBMID_RESOURCE_CONTROLLER_URL overrides resource_controller.url
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound explicitly.
	_ = v.BindEnv("allow.accounts")
	_ = v.BindEnv("allow.users")
	_ = v.BindEnv("service.apikey")
	_ = v.BindEnv("cache.redis_addr")
	_ = v.BindEnv("server.fallback_url")
	_ = v.BindEnv("server.allowed_origins")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultSettings()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.env", d.Server.Env)
	v.SetDefault("server.app_name", d.Server.AppName)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("iam.url", d.IAM.URL)
	v.SetDefault("iam.client_id", d.IAM.ClientID)
	v.SetDefault("iam.client_secret", d.IAM.ClientSecret)
	v.SetDefault("accounts.url", d.Accounts.URL)
	v.SetDefault("resource_controller.url", d.ResourceController.URL)
	v.SetDefault("catalog.url", d.Catalog.URL)
	v.SetDefault("data_platform.url", d.DataPlatform.URL)
	v.SetDefault("cache.discovery_ttl", d.Cache.DiscoveryTTL)
	v.SetDefault("cache.resources_ttl", d.Cache.ResourcesTTL)
	v.SetDefault("cache.catalog_ttl", d.Cache.CatalogTTL)
	v.SetDefault("cache.apikey_login_ttl", d.Cache.APIKeyLoginTTL)
	v.SetDefault("session.refresh_lifetime_factor", d.Session.RefreshLifetimeFactor)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
}
