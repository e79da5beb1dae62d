package handlers

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// PASSCODE AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// PasscodeAuth checks the shared admin passcode against a bcrypt hash. The
// plain passcode is never kept in memory after construction.
type PasscodeAuth struct {
	mu   sync.RWMutex
	hash []byte
}

// NewPasscodeAuth creates an authenticator from a bcrypt hash.
func NewPasscodeAuth(hash []byte) (*PasscodeAuth, error) {
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, err
	}
	return &PasscodeAuth{hash: hash}, nil
}

// NewPasscodeAuthFromPlain hashes plain with cost and creates an
// authenticator. A cost of 0 uses bcrypt.DefaultCost.
func NewPasscodeAuthFromPlain(plain string, cost int) (*PasscodeAuth, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return nil, err
	}
	return &PasscodeAuth{hash: hash}, nil
}

// Rotate replaces the accepted hash.
func (a *PasscodeAuth) Rotate(hash []byte) error {
	if _, err := bcrypt.Cost(hash); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hash = hash
	return nil
}

// Verify reports whether candidate is the admin passcode.
func (a *PasscodeAuth) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	a.mu.RLock()
	hash := a.hash
	a.mu.RUnlock()
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}

// BearerToken extracts the credential of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// securityHeaders are set on every response. The API only serves JSON, so
// the content security policy denies everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
}

func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// NoCacheMiddleware keeps proxies and browsers from storing student data.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware caps request bodies at maxBytes. Oversized
// bodies fail when read, which the handlers report as malformed input.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

type MiddlewareFunc func(http.Handler) http.Handler

// Chain composes mws so the first one listed sees the request first.
func Chain(mws ...MiddlewareFunc) MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		for _, mw := range slices.Backward(mws) {
			h = mw(h)
		}
		return h
	}
}
