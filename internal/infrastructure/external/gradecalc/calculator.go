// Package gradecalc runs an external CGPA calculator as a subprocess.
//
// The process is started as
//
//	<path> [args...] <matric> <base64 of the history JSON>
//
// and must print a single number on stdout. Any failure falls back to the
// in-process calculator, so a broken helper never fails a save.
package gradecalc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the external calculator.
type Config struct {
	// Path is the executable to run.
	Path string

	// Args are placed before the matric and history arguments.
	Args []string

	// Timeout bounds one run.
	Timeout time.Duration

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns sensible defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}
}

// ErrBadOutput is returned when the process output is not a usable number.
var ErrBadOutput = errors.New("calculator output is not a valid gpa")

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Calculator implements academic.Calculator on an external process.
type Calculator struct {
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	breaker  *circuitbreaker.CircuitBreaker
	fallback academic.Calculator
}

var _ academic.Calculator = (*Calculator)(nil)

// New creates a new Calculator.
func New(config Config) *Calculator {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	c := &Calculator{
		config:   config,
		logger:   config.Logger.With("component", "gradecalc"),
		metrics:  config.Metrics,
		fallback: academic.InProcessCalculator{},
	}

	c.breaker = circuitbreaker.New("gradecalc",
		circuitbreaker.WithFailureThreshold(config.FailureThreshold),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(config.OpenTimeout),
		circuitbreaker.WithIsFailure(func(err error) bool {
			// The caller going away says nothing about the helper.
			return !errors.Is(err, context.Canceled)
		}),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			c.metrics.SetCalculatorBreakerState(int(to))
			c.logger.Warn("calculator breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)

	return c
}

// CGPA implements academic.Calculator. It never returns an error: a failed
// or rejected run is answered by the in-process calculator.
func (c *Calculator) CGPA(ctx context.Context, matric string, h academic.History) (string, error) {
	var cgpa string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := c.run(ctx, matric, h)
		if err != nil {
			return err
		}
		cgpa = v
		return nil
	})
	if err == nil {
		return cgpa, nil
	}

	c.metrics.IncCalculatorFallback()
	if !circuitbreaker.IsRejected(err) {
		c.logger.Warn("external calculator failed, using in-process result",
			"matric", matric,
			"error", err,
		)
	}
	return c.fallback.CGPA(ctx, matric, h)
}

// State returns the breaker state.
func (c *Calculator) State() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Calculator) run(ctx context.Context, matric string, h academic.History) (string, error) {
	blob, err := academic.EncodeHistory(h)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	args := make([]string, 0, len(c.config.Args)+2)
	args = append(args, c.config.Args...)
	args = append(args, matric, base64.StdEncoding.EncodeToString([]byte(blob)))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.config.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", fmt.Errorf("run %s: %w: %s", c.config.Path, err, strings.TrimSpace(stderr.String()))
	}

	v, err := ParseOutput(stdout.String())
	if err != nil {
		return "", err
	}

	c.logger.Debug("external calculator finished",
		"matric", matric,
		"cgpa", v,
		"elapsed", time.Since(start),
	)
	return academic.FormatGPA(v), nil
}

// ParseOutput reads the number from the last non-empty line of out.
func ParseOutput(out string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return 0, fmt.Errorf("%w: empty output", ErrBadOutput)
	}

	v, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadOutput, last)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 5 {
		return 0, fmt.Errorf("%w: %v out of range", ErrBadOutput, v)
	}
	return v, nil
}
