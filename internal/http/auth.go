package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

type principalKey struct{}

// Claims are the bearer token claims the API understands.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and resolves its principal. A missing
// role claim means an ordinary user.
func ParseToken(raw string, secret []byte) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Principal{}, errors.Wrap(err, "parse token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Principal{}, errors.Wrap(err, "token subject")
	}
	role := domain.Role(claims.Role)
	switch role {
	case "":
		role = domain.RoleUser
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return domain.Principal{}, errors.Newf("unknown role %q", claims.Role)
	}
	return domain.Principal{UserID: userID, Role: role}, nil
}

// SignToken issues an HS256 token for p. Used by tooling and tests.
func SignToken(p domain.Principal, secret []byte) (string, error) {
	claims := Claims{
		Role:             string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{Subject: p.UserID.String()},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// principal in the request context.
func AuthMiddleware(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeUnauthenticated(w, "missing bearer token")
				return
			}
			p, err := ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				loggerFrom(r.Context()).WithError(err).Debug("rejected token")
				writeUnauthenticated(w, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers without role with a forbidden error.
func RequireRole(role domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := principalFrom(r.Context())
			if p.Role != role {
				writeError(w, r, domain.Forbiddenf("%s required", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}
