// Package handlers contains the reusable pieces behind the HTTP server:
// health checking and request middleware.
//
// # Health Checks
//
// A CompositeHealthChecker runs named checks in parallel, each with its own
// timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddCheck("roster_sync", handlers.NewSyncCheck(syncChannel))
//
// Liveness never runs checks. Readiness fails as soon as one check fails.
//
// # Middleware
//
// Middleware here is plain func(http.Handler) http.Handler and carries no
// server state:
//
//	h = handlers.SecurityHeadersMiddleware(h)
//	h = handlers.RequestSizeLimitMiddleware(10 << 20)(h)
//	h = handlers.TimeoutMiddleware(30 * time.Second)(h)
package handlers
