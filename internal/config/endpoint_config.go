package config

import (
	"strings"
	"time"
)

func (s *Settings) GetIAMURL() string {
	return strings.TrimSuffix(s.IAM.URL, "/")
}

func (s *Settings) GetIAMClientID() string {
	return s.IAM.ClientID
}

func (s *Settings) GetIAMClientSecret() string {
	return s.IAM.ClientSecret
}

func (s *Settings) GetAccountsURL() string {
	return strings.TrimSuffix(s.Accounts.URL, "/")
}

func (s *Settings) GetResourceControllerURL() string {
	return strings.TrimSuffix(s.ResourceController.URL, "/")
}

func (s *Settings) GetCatalogURL() string {
	return strings.TrimSuffix(s.Catalog.URL, "/")
}

func (s *Settings) GetDataPlatformURL() string {
	return strings.TrimSuffix(s.DataPlatform.URL, "/")
}

func (s *Settings) GetHTTPTimeout() time.Duration {
	return s.HTTP.Timeout
}
