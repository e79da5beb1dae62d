// Package handlers contains reusable HTTP building blocks: health checks,
// admin passcode authentication and middleware.
//
// # Health Checks
//
// Named checks run in parallel and are reported together. A failing
// optional check marks the service degraded but still ready:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("calculator", calcCheck, handlers.Optional())
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("health check failed: %s", status.Message)
//	}
//
// # Authentication
//
// The admin passcode is held only as a bcrypt hash:
//
//	auth, err := handlers.NewPasscodeAuthFromPlain(passcode, 0)
//	token, ok := handlers.BearerToken(r)
//	if !ok || !auth.Verify(token) {
//	    // 401
//	}
package handlers
