package jwt

import (
	"context"
	"net/http"
	"strings"

	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/resp"
)

// Define Context Key for storing the Claims struct, preventing key collisions with other packages.
type contextKey string

const (
	// ContextAuthClaimsKey is the key used to store the parsed *Claims (user identity) in the request Context.
	ContextAuthClaimsKey contextKey = "auth_claims"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// It returns an empty string when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// RequireIdentity validates the bearer token of every request and injects the Claims
// into the Context. Requests without a valid token are rejected with ErrUnauthorized.
func RequireIdentity(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := BearerToken(r)
			if tokenString == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			claims, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided", "error", err.Error(), "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrTokenInvalid))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextAuthClaimsKey, claims)
}

// ClaimsFromContext safely extracts the authenticated Claims from the request Context.
// A nil return means the request did not pass through RequireIdentity.
func ClaimsFromContext(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ContextAuthClaimsKey).(*Claims)

	if !ok {
		return nil
	}

	return claims
}
