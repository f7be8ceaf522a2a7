package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yukinko0825/recipe-site/pkg/api"
	"github.com/yukinko0825/recipe-site/pkg/identity"
)

// JWTValidator validates session tokens and extracts claims.
type JWTValidator struct {
	// KeySet provides the keys for validation.
	KeySet identity.KeySet
}

// NewJWTValidator creates a validator with the given KeySet.
func NewJWTValidator(ks identity.KeySet) *JWTValidator {
	if ks == nil {
		return nil
	}
	return &JWTValidator{KeySet: ks}
}

// Validate parses and validates a JWT token string.
func (v *JWTValidator) Validate(tokenStr string) (*SessionClaims, error) {
	if v.KeySet == nil {
		return nil, fmt.Errorf("validator uninitialized")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.KeySet.KeyFunc(),
		jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths accept mutations without a session.
var publicPaths = []string{
	"/api/auth/login",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// NewMiddleware creates session auth middleware. Browsing is anonymous;
// any other method needs a valid Bearer token. If validator is nil, all
// mutations are rejected (fail closed).
func NewMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			// 1. Anonymous reads and public endpoints
			if authHeader == "" && (isReadOnly(r.Method) || isPublicPath(r.URL.Path)) {
				next.ServeHTTP(w, r)
				return
			}
			if authHeader == "" {
				api.WriteUnauthorized(w, "Missing Authorization header")
				return
			}

			// 2. Parse header
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				api.WriteUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			// 3. Fail closed if no validator configured
			if validator == nil {
				api.WriteUnauthorized(w, "Authentication not configured")
				return
			}

			// 4. Validate JWT
			claims, err := validator.Validate(parts[1])
			if err != nil {
				api.WriteUnauthorized(w, "Invalid or expired token")
				return
			}
			if claims.Subject == "" {
				api.WriteUnauthorized(w, "Token subject is required")
				return
			}

			// 5. Inject principal
			principal := &BasePrincipal{ID: claims.Subject, Capabilities: claims.Capabilities}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
