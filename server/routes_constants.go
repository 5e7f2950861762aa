package server

// Route patterns. Portal identity rides in the path so one service serves
// every portal's thin auth layer.
const (
	RouteLogin    = "/{portal}/auth/login"
	RouteLogout   = "/{portal}/auth/logout"
	RouteRefresh  = "/{portal}/auth/refresh"
	RouteValidate = "/{portal}/auth/validate"
	RouteCSRF     = "/{portal}/auth/csrf"
	RouteProfile  = "/{portal}/me"
	RouteHealth   = "/healthz"
)
