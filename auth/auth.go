/*
Package auth authenticates requests with bearer JWTs and exposes the
decoded principal to handlers.

The engine does not manage users; an external identity system issues the
tokens. A token carries the user id, role names, the held position id,
and the superuser flag. The API layer resolves the position id against
the store to build the acting principal.

Middleware rejects missing or invalid tokens with 401 before any handler
runs. Row-level authorization happens later, in the tracker services.
*/
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload the engine understands.
type Claims struct {
	UserID     uuid.UUID  `json:"user_id"`
	Roles      []string   `json:"roles"`
	PositionID *uuid.UUID `json:"position_id,omitempty"`
	Superuser  bool       `json:"superuser"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsContextKey contextKey = "claims"

// Middleware validates the Authorization bearer token and stores the
// claims in the request context.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				unauthorized(w, "Invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				unauthorized(w, "Invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the authenticated claims, or nil outside the
// middleware.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// SignToken issues an HS256 token for the given claims, valid for ttl.
// Used by the demo login endpoint and tests; production deployments get
// tokens from the identity system instead.
func SignToken(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
