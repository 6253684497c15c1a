package config

import "time"

// Settings is the decoded configuration tree. Keys mirror the YAML file and,
// upper-cased with an IBMID_ prefix, the environment.
type Settings struct {
	Server             ServerSettings   `mapstructure:"server"`
	IAM                IAMSettings      `mapstructure:"iam"`
	Accounts           EndpointSettings `mapstructure:"accounts"`
	ResourceController EndpointSettings `mapstructure:"resource_controller"`
	Catalog            EndpointSettings `mapstructure:"catalog"`
	DataPlatform       EndpointSettings `mapstructure:"data_platform"`
	Cache              CacheSettings    `mapstructure:"cache"`
	Session            SessionSettings  `mapstructure:"session"`
	Allow              AllowSettings    `mapstructure:"allow"`
	Service            ServiceSettings  `mapstructure:"service"`
	HTTP               HTTPSettings     `mapstructure:"http"`
}

type ServerSettings struct {
	Port           string   `mapstructure:"port" validate:"required"`
	Env            string   `mapstructure:"env"`
	AppName        string   `mapstructure:"app_name"`
	LogLevel       string   `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	FallbackURL    string   `mapstructure:"fallback_url"`
}

type IAMSettings struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
}

type EndpointSettings struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

type CacheSettings struct {
	DiscoveryTTL   time.Duration `mapstructure:"discovery_ttl" validate:"gt=0"`
	ResourcesTTL   time.Duration `mapstructure:"resources_ttl" validate:"gt=0"`
	CatalogTTL     time.Duration `mapstructure:"catalog_ttl" validate:"gt=0"`
	APIKeyLoginTTL time.Duration `mapstructure:"apikey_login_ttl" validate:"gt=0"`
	RedisAddr      string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
}

type SessionSettings struct {
	RefreshLifetimeFactor int `mapstructure:"refresh_lifetime_factor" validate:"gte=1"`
}

// AllowSettings gates who may hold a session. A nil list means the gate is
// not configured; an empty list configures a gate that admits nobody.
type AllowSettings struct {
	Accounts []string `mapstructure:"accounts"`
	Users    []string `mapstructure:"users" validate:"omitempty,dive,regexp"`
}

type ServiceSettings struct {
	APIKey string `mapstructure:"apikey"`
}

type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

func defaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Port:     ":8080",
			Env:      "DEV",
			AppName:  "IBMid Login",
			LogLevel: "info",
		},
		IAM: IAMSettings{
			URL:          "https://iam.cloud.ibm.com",
			ClientID:     "bx",
			ClientSecret: "bx",
		},
		Accounts:           EndpointSettings{URL: "https://accounts.cloud.ibm.com"},
		ResourceController: EndpointSettings{URL: "https://resource-controller.cloud.ibm.com"},
		Catalog:            EndpointSettings{URL: "https://globalcatalog.cloud.ibm.com"},
		DataPlatform:       EndpointSettings{URL: "https://api.dataplatform.cloud.ibm.com"},
		Cache: CacheSettings{
			DiscoveryTTL:   time.Hour,
			ResourcesTTL:   30 * time.Second,
			CatalogTTL:     time.Hour,
			APIKeyLoginTTL: 20 * time.Minute,
		},
		Session: SessionSettings{RefreshLifetimeFactor: 24},
		HTTP:    HTTPSettings{Timeout: 30 * time.Second},
	}
}
