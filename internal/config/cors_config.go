package config

import "strings"

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (s *Settings) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(s.Server.AllowedOrigins))
	for _, o := range s.Server.AllowedOrigins {
		origins[o] = nullValue{}
	}
	return origins
}

func (s *Settings) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (s *Settings) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-Endpoint-Id"
}
