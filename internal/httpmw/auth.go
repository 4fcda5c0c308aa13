// Package httpmw implements the Auth Middleware (component F): it extracts
// the bearer secret, looks up its hash, and attaches the resolved policy to
// the request context for downstream handlers.
//
// Grounded on the teacher's cookie-based Auth middleware
// (backend/internal/middleware/auth.go) — same context-key-and-closure
// shape — generalized from a cookie+JWT check to an Authorization header
// bearer-token hash lookup, since Postgate has no session/JWT layer (token
// auth is opaque, not a JWT).
package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
	"github.com/postgate/postgate/internal/token"
)

type ctxKey int

const authKey ctxKey = 0

// TokenFinder is the subset of the Metadata Store the middleware needs.
type TokenFinder interface {
	FindTokenByHash(ctx context.Context, hash string) (domain.Token, domain.Tenant, bool, error)
}

// requestAuth is what a successfully authenticated request carries forward:
// the caller's resolved policy plus the token id the Executor later touches.
type requestAuth struct {
	Policy  domain.Policy
	TokenID uuid.UUID
}

// RequireToken validates the Authorization header and attaches the
// resolved policy and token id to the request context. A missing header, a
// malformed secret, and an unknown (but well-formed) secret are all reported
// identically as UNAUTHORIZED — the spec deliberately gives an attacker no
// signal about which case failed.
func RequireToken(finder TokenFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret, ok := bearerSecret(r)
			if !ok || !token.ValidShape(secret) {
				writeUnauthorized(w)
				return
			}

			tok, tenant, found, err := finder.FindTokenByHash(r.Context(), token.Hash(secret))
			if err != nil {
				WriteError(w, apperr.InternalError(err.Error()))
				return
			}
			if !found {
				writeUnauthorized(w)
				return
			}

			policy := domain.Policy{
				TenantID:   tenant.ID,
				AllowedOps: tok.Permissions,
				Backend:    tenant.Backend,
				RowCap:     tenant.RowCap,
			}

			ctx := context.WithValue(r.Context(), authKey, requestAuth{Policy: policy, TokenID: tok.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PolicyFromContext returns the policy and token id attached by
// RequireToken. It panics if called outside that middleware's scope, since
// that is a programming error, not a runtime condition.
func PolicyFromContext(r *http.Request) (domain.Policy, uuid.UUID) {
	v := r.Context().Value(authKey).(requestAuth)
	return v.Policy, v.TokenID
}

func bearerSecret(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	secret := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if secret == "" {
		return "", false
	}
	return secret, true
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteError(w, apperr.Unauthorized("missing or invalid credentials"))
}
