package config

import "time"

func (s *Settings) GetDiscoveryTTL() time.Duration {
	return s.Cache.DiscoveryTTL
}

func (s *Settings) GetResourcesTTL() time.Duration {
	return s.Cache.ResourcesTTL
}

func (s *Settings) GetCatalogTTL() time.Duration {
	return s.Cache.CatalogTTL
}

func (s *Settings) GetAPIKeyLoginTTL() time.Duration {
	return s.Cache.APIKeyLoginTTL
}

// GetRedisAddr returns the host:port of a shared cache. Empty keeps caches in process.
func (s *Settings) GetRedisAddr() string {
	return s.Cache.RedisAddr
}
