package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// IdentityContextKey is the context key for the calling account
	IdentityContextKey ContextKey = "identity"

	// AccountHeader names the caller when authentication is disabled.
	AccountHeader = "X-Account-ID"
)

// Identity is the authenticated caller.
type Identity struct {
	Account snowflake.ID
	Admin   bool
}

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware resolves the calling account. With a verifier it requires a
// bearer token whose subject is the account; without one it trusts the
// X-Account-ID header and grants admin rights, which is only meant for
// local development.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  Identity
				msg string
			)

			if verifier == nil {
				id, msg = identityFromHeader(r)
			} else {
				id, msg = identityFromToken(r, verifier)
			}

			if msg != "" {
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("account_id", id.Account.String())
			})

			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromHeader(r *http.Request) (Identity, string) {
	raw := r.Header.Get(AccountHeader)
	if raw == "" {
		return Identity{}, "missing " + AccountHeader + " header"
	}

	account, err := domain.ParseAccountID(raw)
	if err != nil {
		return Identity{}, "invalid " + AccountHeader + " header"
	}

	return Identity{Account: account, Admin: true}, ""
}

func identityFromToken(r *http.Request, verifier TokenVerifier) (Identity, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, "missing authorization header"
	}

	// Parse Bearer token
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Identity{}, "invalid authorization header format"
	}

	claims, err := verifier.Verify(parts[1])
	if err != nil {
		return Identity{}, "invalid or expired token"
	}

	account, err := claims.Account()
	if err != nil {
		return Identity{}, "invalid or expired token"
	}

	return Identity{Account: account, Admin: claims.Admin}, ""
}

// RequireAdmin rejects callers without the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if !id.Admin {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// IdentityFromContext extracts the caller from ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
