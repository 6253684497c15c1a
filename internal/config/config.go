package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	EndpointConfig
	CacheConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetFallbackURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// EndpointConfig locates the upstream services consumed by the gateway.
type EndpointConfig interface {
	GetIAMURL() string
	GetIAMClientID() string
	GetIAMClientSecret() string
	GetAccountsURL() string
	GetResourceControllerURL() string
	GetCatalogURL() string
	GetDataPlatformURL() string
	GetHTTPTimeout() time.Duration
}

type CacheConfig interface {
	GetDiscoveryTTL() time.Duration
	GetResourcesTTL() time.Duration
	GetCatalogTTL() time.Duration
	GetAPIKeyLoginTTL() time.Duration
	GetRedisAddr() string
}

var _ Config = (*Settings)(nil)

// New returns the default configuration without reading files or the environment.
func New() *Settings {
	s := defaultSettings()
	return &s
}
