package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker reports the state of the service's dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

// Overall health values of HealthStatus.Status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the body of /health. A failing optional check degrades
// the service but leaves it ready; a failing required check makes it
// unhealthy and not ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type namedCheck struct {
	name     string
	fn       HealthCheckFunc
	optional bool
}

// CheckOption tunes a registered check.
type CheckOption func(*namedCheck)

// Optional marks a check whose failure only degrades the service.
func Optional() CheckOption {
	return func(c *namedCheck) { c.optional = true }
}

// CompositeHealthChecker runs its registered checks concurrently, each under
// its own timeout. Register checks before serving traffic; the checker is
// not safe for registration while Check runs.
type CompositeHealthChecker struct {
	checks  []namedCheck
	started time.Time
	version string
	timeout time.Duration
}

// NewCompositeHealthChecker creates a checker with a 5s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		started: time.Now(),
		version: version,
		timeout: 5 * time.Second,
	}
}

// SetTimeout bounds each check.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

// AddCheck registers a check. Reusing a name replaces the earlier check.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc, opts ...CheckOption) {
	nc := namedCheck{name: name, fn: fn}
	for _, opt := range opts {
		opt(&nc)
	}
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i] = nc
			return
		}
	}
	c.checks = append(c.checks, nc)
}

// Check implements HealthChecker.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Healthy:   true,
		Ready:     true,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(c.checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(c.checks))
	var g errgroup.Group
	for i, nc := range c.checks {
		g.Go(func() error {
			results[i] = c.run(ctx, nc)
			return nil
		})
	}
	_ = g.Wait()

	var required, optional []string
	status.Checks = make(map[string]CheckResult, len(results))
	for i, r := range results {
		status.Checks[c.checks[i].name] = r
		switch {
		case r.Healthy:
		case r.Optional:
			optional = append(optional, c.checks[i].name)
		default:
			required = append(required, c.checks[i].name)
		}
	}

	switch {
	case len(required) > 0:
		status.Status = StatusUnhealthy
		status.Healthy = false
		status.Ready = false
		status.Message = "Some checks failed: " + strings.Join(append(required, optional...), ", ")
	case len(optional) > 0:
		status.Status = StatusDegraded
		status.Message = "Degraded: " + strings.Join(optional, ", ")
	default:
		status.Message = "All checks passed"
	}
	return status
}

func (c *CompositeHealthChecker) run(ctx context.Context, nc namedCheck) (res CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res = CheckResult{Optional: nc.optional, Healthy: true, Message: "OK"}
	defer func() {
		if p := recover(); p != nil {
			res.Healthy = false
			res.Message = fmt.Sprintf("check panicked: %v", p)
		}
		res.Duration = time.Since(start).Round(time.Millisecond).String()
	}()

	if err := nc.fn(ctx); err != nil {
		res.Healthy = false
		res.Message = err.Error()
	}
	return res
}

// Pinger is anything that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck adapts a Pinger to a HealthCheckFunc.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}
