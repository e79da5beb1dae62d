// Package logger provides structured logging for the record service on top
// of log/slog. Callers pass typed fields; the output is one JSON object or
// one text line per entry.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal entries are written before the process exits.
	LevelFatal
)

// levelFatal sits above slog.LevelError so handlers keep it distinct.
const levelFatal = slog.LevelError + 4

var levelNames = map[slog.Level]string{
	levelFatal: "FATAL",
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelInfo:
		return slog.LevelInfo
	default:
		if l >= LevelFatal {
			return levelFatal + slog.Level(l-LevelFatal)
		}
		return slog.LevelInfo
	}
}

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelFatal:
		return "FATAL"
	default:
		return l.slog().String()
	}
}

// ParseLevel parses a level name. Unknown names mean info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Format selects the output encoding.
type Format int

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = iota
	// FormatText writes key=value lines for local development.
	FormatText
)

// ParseFormat parses "json" or "text". Anything else is JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "text") {
		return FormatText
	}
	return FormatJSON
}

// ──────────────────────────────────────────────────────────────────────────────
// Fields
// ──────────────────────────────────────────────────────────────────────────────

// Field is one structured attribute.
type Field = slog.Attr

func F(key string, value any) Field              { return slog.Any(key, value) }
func String(key, value string) Field             { return slog.String(key, value) }
func Int(key string, value int) Field            { return slog.Int(key, value) }
func Int64(key string, value int64) Field        { return slog.Int64(key, value) }
func Float64(key string, value float64) Field    { return slog.Float64(key, value) }
func Bool(key string, value bool) Field          { return slog.Bool(key, value) }
func Any(key string, value any) Field            { return slog.Any(key, value) }
func Time(key string, value time.Time) Field     { return slog.Time(key, value) }
func Duration(key string, d time.Duration) Field { return slog.String(key, d.String()) }

// Err records err under "error". A nil error is logged as an empty value.
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Record service fields.
func Matric(m string) Field         { return String("matric", m) }
func Action(a string) Field         { return String("action", a) }
func Backend(name string) Field     { return String("backend", name) }
func Attempt(n int) Field           { return Int("attempt", n) }
func Version(v int64) Field         { return Int64("version", v) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// RequestIDKey is the field carrying the HTTP request id.
const RequestIDKey = "request_id"

// ──────────────────────────────────────────────────────────────────────────────
// Logger
// ──────────────────────────────────────────────────────────────────────────────

// Options configures the logger.
type Options struct {
	Output io.Writer
	Level  Level
	Format Format

	// AddCaller records file:line of the logging call.
	AddCaller bool

	// CallerSkip drops extra frames for wrappers around Logger.
	CallerSkip int
}

// DefaultOptions returns JSON at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     LevelInfo,
		AddCaller: true,
	}
}

// Logger writes leveled, structured entries.
type Logger struct {
	sl         *slog.Logger
	addCaller  bool
	callerSkip int
}

// New creates a Logger writing to opts.Output.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level.slog(),
		AddSource:   opts.AddCaller,
		ReplaceAttr: replaceAttr,
	}

	var h slog.Handler
	if opts.Format == FormatText {
		h = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	return &Logger{sl: slog.New(h), addCaller: opts.AddCaller, callerSkip: opts.CallerSkip}
}

// replaceAttr renames the built-in keys and shortens source paths.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			if name, ok := levelNames[lvl]; ok {
				a.Value = slog.StringValue(name)
			}
		}
	case slog.SourceKey:
		a.Key = "caller"
		if src, ok := a.Value.Any().(*slog.Source); ok {
			file := src.File
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", file, src.Line))
		}
	}
	return a
}

// Default creates a logger with default options.
func Default() *Logger {
	return New(DefaultOptions())
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sl: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelFatal + 1}))}
}

// Slog exposes the underlying slog logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &Logger{sl: l.sl.With(args...), addCaller: l.addCaller, callerSkip: l.callerSkip}
}

// WithRequestID returns a logger with the request id field added.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	ctx := context.Background()
	lvl := level.slog()
	if !l.sl.Enabled(ctx, lvl) {
		return
	}

	var pc uintptr
	if l.addCaller {
		var pcs [1]uintptr
		// runtime.Callers, log, and the exported method.
		runtime.Callers(3+l.callerSkip, pcs[:])
		pc = pcs[0]
	}

	r := slog.NewRecord(time.Now(), lvl, msg, pc)
	r.AddAttrs(fields...)
	_ = l.sl.Handler().Handle(ctx, r)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

// Fatal logs at fatal level and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(LevelFatal, msg, fields...)
	os.Exit(1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Context propagation
// ──────────────────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithContext returns a new context carrying l.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
