package session

// State is where a session stands in the login and refresh lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Kind tags a Result.
type Kind int

const (
	KindOK Kind = iota
	KindNotLoggedIn
	KindUpstreamError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotLoggedIn:
		return "not_logged_in"
	case KindUpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}
