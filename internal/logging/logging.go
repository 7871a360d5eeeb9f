// Package logging provides structured logging for the gateway.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the resolved user role.
	RoleKey contextKey = "role"
	// TenantKey is the context key for the active organisation ID.
	TenantKey contextKey = "tenant"
)

// Logger wraps a zerolog.Logger with context-aware field enrichment.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger for the named service. Level is one of
// debug|info|warn|error; format is "json" or "console".
func New(service, level, format string) *Logger {
	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{zl: zl}
}

// NewNop returns a logger that discards all output. Used in tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithContext returns a logger enriched with trace, user, role and tenant
// fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	if v := GetTraceID(ctx); v != "" {
		zc = zc.Str("trace_id", v)
	}
	if v := GetUserID(ctx); v != "" {
		zc = zc.Str("user_id", v)
	}
	if v := GetRole(ctx); v != "" {
		zc = zc.Str("role", v)
	}
	if v := GetTenant(ctx); v != "" {
		zc = zc.Str("tenant", v)
	}
	return &Logger{zl: zc.Logger()}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithFields returns a logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithField returns a logger with a single field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).zl.Info().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration).
		Msg("http request")
}

// LogSecurityEvent logs a security-relevant event (denied access, rate
// limiting, admin actions).
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).zl.Warn().
		Str("event", event).
		Fields(fields).
		Msg("security event")
}

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores the trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// WithRole stores the resolved role in the context.
func WithRole(ctx context.Context, role string) context.Context {
	if role == "" {
		return ctx
	}
	return context.WithValue(ctx, RoleKey, role)
}

// GetRole extracts the resolved role from the context.
func GetRole(ctx context.Context) string {
	return stringValue(ctx, RoleKey)
}

// WithTenant stores the active organisation ID in the context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	if tenant == "" {
		return ctx
	}
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetTenant extracts the active organisation ID from the context.
func GetTenant(ctx context.Context) string {
	return stringValue(ctx, TenantKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
