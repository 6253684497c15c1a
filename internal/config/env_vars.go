package config

import (
	"fmt"
	"os"
	"strings"
)

const configFileEnvVar = "IBMID_CONFIG"

func (s *Settings) GetPort() string {
	port := s.Server.Port
	if port != "" && !strings.Contains(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (s *Settings) GetAppName() string {
	return s.Server.AppName
}

func (s *Settings) GetEnv() string {
	if s.Server.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(s.Server.Env)
}

func (s *Settings) GetLogLevel() string {
	return s.Server.LogLevel
}

// GetFallbackURL is where browsers are sent when a protected page is requested
// without a session. Empty disables the redirect.
func (s *Settings) GetFallbackURL() string {
	return s.Server.FallbackURL
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
