package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luizclaudiolc/ozmap/shared/auth"
)

type claimsKey struct{}

// Authenticator verifies bearer tokens.
type Authenticator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
}

// NewJWTMiddleware requires a valid bearer token on every request whose
// method is not listed in exemptMethods. Verified claims are stored in the
// request context.
func NewJWTMiddleware(jwtAuth Authenticator, exemptMethods []string) func(http.Handler) http.Handler {
	exemptMap := make(map[string]bool)
	for _, method := range exemptMethods {
		exemptMap[strings.ToUpper(method)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptMap[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := extractAndValidateJWT(r, jwtAuth)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="geo-service"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

func extractAndValidateJWT(r *http.Request, jwtAuth Authenticator) (jwt.MapClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	claims, err := jwtAuth.ValidateToken(parts[1])
	if err != nil {
		return nil, auth.ErrInvalidToken
	}

	return claims, nil
}
