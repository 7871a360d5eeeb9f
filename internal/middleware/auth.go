// Package middleware provides HTTP middleware for the gateway.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/httputil"
	"github.com/appmaster-cloud/gateway/internal/logging"
	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

type contextKey string

const (
	// IdentityContextKey holds the *Identity of the authenticated caller.
	IdentityContextKey contextKey = "identity"
	// TokenContextKey holds the raw bearer token for downstream RLS reads.
	TokenContextKey contextKey = "token"
)

// Identity is the verified principal attached to a request.
type Identity struct {
	UserID string
	Email  string
	// GoTrueRole is the Supabase role claim (authenticated, service_role),
	// not the application role.
	GoTrueRole string
}

// AuthMiddleware validates Supabase access tokens. Verification is local
// (HMAC with the project JWT secret) when the secret is configured, with the
// GoTrue REST endpoint as fallback.
type AuthMiddleware struct {
	jwtSecret string
	auth      *supa.AuthClient
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the auth middleware. auth may be nil in tests
// when a JWT secret is supplied.
func NewAuthMiddleware(jwtSecret string, auth *supa.AuthClient, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		auth:      auth,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler attaches the verified identity to the request context. Requests
// without an Authorization header pass through unauthenticated; guards decide
// what anonymous callers may reach.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			httputil.WriteError(w, errors.Unauthorized("invalid authorization header format"))
			return
		}
		token := parts[1]

		identity, err := m.verify(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token verification failed")
			httputil.WriteError(w, errors.InvalidToken(err))
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		ctx = context.WithValue(ctx, TokenContextKey, token)
		ctx = logging.WithUserID(ctx, identity.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) verify(ctx context.Context, token string) (*Identity, error) {
	if m.jwtSecret != "" {
		if identity, err := m.verifyLocal(token); err == nil {
			return identity, nil
		}
	}
	return m.verifyRemote(ctx, token)
}

// verifyLocal checks the token signature against the project JWT secret.
func (m *AuthMiddleware) verifyLocal(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.InvalidToken(nil)
	}

	identity := &Identity{
		UserID:     stringClaim(claims, "sub"),
		Email:      stringClaim(claims, "email"),
		GoTrueRole: stringClaim(claims, "role"),
	}
	if identity.UserID == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing sub claim")
	}
	return identity, nil
}

// verifyRemote asks GoTrue to introspect the token.
func (m *AuthMiddleware) verifyRemote(ctx context.Context, token string) (*Identity, error) {
	if m.auth == nil {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "no verifier configured")
	}
	user, err := m.auth.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: user.ID, Email: user.Email, GoTrueRole: user.Role}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetIdentity returns the authenticated identity from ctx, nil when the
// request is anonymous.
func GetIdentity(ctx context.Context) *Identity {
	identity, ok := ctx.Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// GetToken returns the raw bearer token from ctx.
func GetToken(ctx context.Context) string {
	token, ok := ctx.Value(TokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}

// RequireIdentity rejects anonymous requests before they reach the handler.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			httputil.WriteErrorRedirect(w, errors.Unauthorized(""), "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}
