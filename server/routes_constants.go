package server

// Route path constants
const (
	// Session routes
	RoutePasscode      = "/passcode"
	RouteLogin         = "/login"
	RouteLogout        = "/logout"
	RouteOwnUser       = "/users/me"
	RouteAccounts      = "/accounts"
	RouteSwitchAccount = "/accounts/switch"

	// Resource routes
	RouteResources        = "/resources"
	RouteResource         = "/resources/{resource_id}"
	RouteResourceKeys     = "/resources/{resource_id}/resource_keys"
	RouteResourceSubpaths = "/resources/{resource_id}/{path...}"

	RouteMetrics = "/metrics"
)

const (
	queryAccountID    = "account_id"
	queryResourceType = "resource_type"
	pathResourceID    = "resource_id"
)
