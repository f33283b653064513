package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/platecost-backend/api/responses"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
)

// ActorHeader carries the authenticated user id set by the upstream gateway.
const ActorHeader = "X-Actor-Id"

// OrgScope resolves the {orgId} path parameter and the optional actor header.
// Authentication happens upstream; this only scopes the request.
func OrgScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			orgID, err := uuid.Parse(chi.URLParam(r, "orgId"))
			if err != nil || orgID == uuid.Nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid organization id"))
				return
			}
			ctx = WithOrgID(ctx, orgID)
			if logg != nil {
				ctx = logg.WithOrgID(ctx, orgID.String())
			}

			if raw := strings.TrimSpace(r.Header.Get(ActorHeader)); raw != "" {
				actorID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor id header"))
					return
				}
				ctx = WithActorID(ctx, actorID)
				if logg != nil {
					ctx = logg.WithActorID(ctx, actorID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects writes that do not identify who performed them.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorIDFromContext(r.Context()) == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, ActorHeader+" header is required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
