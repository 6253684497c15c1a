package config

type SecurityConfig interface {
	GetAllowedAccounts() []string
	GetAllowedUsers() []string
	GetServiceAPIKey() string
	GetRefreshLifetimeFactor() int
}

// GetAllowedAccounts returns nil when no account allow-list is configured.
func (s *Settings) GetAllowedAccounts() []string {
	return s.Allow.Accounts
}

// GetAllowedUsers returns nil when no user allow-list is configured.
func (s *Settings) GetAllowedUsers() []string {
	return s.Allow.Users
}

func (s *Settings) GetServiceAPIKey() string {
	return s.Service.APIKey
}

// GetRefreshLifetimeFactor is how many access-token lifetimes the refresh
// token and account cookies outlive the access token cookie.
func (s *Settings) GetRefreshLifetimeFactor() int {
	if s.Session.RefreshLifetimeFactor < 1 {
		return 1
	}
	return s.Session.RefreshLifetimeFactor
}
