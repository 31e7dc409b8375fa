package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteLogin     = "/api/login"
	RouteChallenge = "/api/tokens/cha"
	RouteRefresh   = "/api/tokens/ref"

	// User Routes
	RouteUsers = "/api/users"
	RouteUser  = "/api/users/{id}"

	// Operational Routes
	RouteLivez   = "/livez"
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)

// HeaderChallengeToken carries the challenge token on refresh, separate from
// the Authorization header.
const HeaderChallengeToken = "X-Challenge-Token"
