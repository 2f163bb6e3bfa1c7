package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

// OwnerHeader carries the owner id when token verification is disabled.
const OwnerHeader = "X-Owner-ID"

type ownerKey struct{}

// OwnerFromContext returns the owner id set by OwnerMiddleware.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// OwnerMiddleware resolves the requesting owner. With a secret configured the
// owner is the "sub" claim of an HS256 bearer token; otherwise it is taken
// from the X-Owner-ID header. Requests without an owner are rejected.
func OwnerMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var owner string
			if secret == "" {
				owner = strings.TrimSpace(r.Header.Get(OwnerHeader))
			} else {
				var err error
				owner, err = ownerFromToken(r.Header.Get("Authorization"), []byte(secret))
				if err != nil {
					logger.Log.WithError(err).Warn("Rejected bearer token")
				}
			}

			if owner == "" {
				respondWithError(w, http.StatusUnauthorized, "missing or invalid owner identity", "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
		})
	}
}

func ownerFromToken(header string, secret []byte) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", jwt.ErrTokenMalformed
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
