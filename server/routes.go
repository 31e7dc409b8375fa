package server

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteFunc("POST "+RouteLogin, s.LoginHandler())
	s.RegisterRouteHandler("GET "+RouteChallenge, ChainMiddleware(s.ChallengeHandler(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.RequireIdentity)...))

	// USERS
	// Registration is public; an admin caller may also set the role.
	s.RegisterRouteHandler("POST "+RouteUsers, ChainMiddleware(s.RegisterUserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUsers, ChainMiddleware(s.ListUsersHandler(), s.APIMiddleware(s.RequireAdmin)...))
	s.RegisterRouteHandler("GET "+RouteUser, ChainMiddleware(s.GetUserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteUser, ChainMiddleware(s.UpdateUserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteUser, ChainMiddleware(s.DeleteUserHandler(), s.APIMiddleware(s.RequireAdmin)...))

	// OPS
	s.RegisterRouteFunc("GET "+RouteLivez, s.LivezHandler())
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())

	s.RegisterRouteFunc("/", s.UnknownEndpointHandler())
}
