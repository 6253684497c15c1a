package proxy

import "strings"

// Target is where a proxied request goes.
type Target struct {
	BaseURL string
	// Path is appended to BaseURL when forwarding.
	Path string
	// InjectAuth adds the session's bearer token.
	InjectAuth bool
	// DropHeaders forwards none of the caller's headers.
	DropHeaders bool
}

func (t Target) URL() string {
	return t.BaseURL + t.Path
}

const dashboardSegment = "daas"

// isDashboardPath reports whether path addresses a dashboard backend, which
// authenticates through credentials embedded in its URL.
func isDashboardPath(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == dashboardSegment {
			return true
		}
	}
	return false
}

func newTarget(baseURL, path string) Target {
	dashboard := isDashboardPath(path)
	return Target{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Path:        path,
		InjectAuth:  !dashboard,
		DropHeaders: dashboard,
	}
}
