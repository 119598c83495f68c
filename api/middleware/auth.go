package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/api/responses"
	"github.com/threshingfloor/roastery-backend/internal/access"
	pkgAuth "github.com/threshingfloor/roastery-backend/pkg/auth"
	"github.com/threshingfloor/roastery-backend/pkg/auth/session"
	"github.com/threshingfloor/roastery-backend/pkg/config"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

// Identifier loads the current user behind a token and resolves admin status.
type Identifier interface {
	Identify(ctx context.Context, userID uuid.UUID) (*access.Identity, error)
}

// Auth validates the bearer token, checks the session is still live in redis
// and seeds the request context with the caller's Identity.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, identifier Identifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			id, err := identifier.Identify(r.Context(), claims.UserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := access.WithIdentity(r.Context(), *id)
			ctx = WithAccessID(ctx, claims.ID)
			if logg != nil {
				ctx = logg.WithFields(logg.WithUserID(ctx, id.UserID.String()), map[string]any{
					"is_admin": id.IsAdmin,
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers that the policy does not recognise as the
// admin. Services check again on their own.
func RequireAdmin(policy *access.Policy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := access.FromContext(r.Context())
			if err := policy.RequireAdmin(id); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}
	return strings.TrimSpace(raw)
}
