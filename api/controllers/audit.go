package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/api/responses"
	"github.com/angelmondragon/platecost-backend/api/validators"
	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	"github.com/angelmondragon/platecost-backend/pkg/pagination"
)

type auditEntryView struct {
	ID         uuid.UUID             `json:"id"`
	ActorID    uuid.UUID             `json:"actor_id"`
	EntityType enums.AuditEntityType `json:"entity_type"`
	EntityID   uuid.UUID             `json:"entity_id"`
	Action     enums.AuditAction     `json:"action"`
	Before     json.RawMessage       `json:"before"`
	After      json.RawMessage       `json:"after"`
	CreatedAt  time.Time             `json:"created_at"`
}

// AuditTrail lists audit entries for ?entity_type=&entity_id=, oldest first,
// paged by ?limit= and ?cursor=.
func AuditTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		entityType, err := enums.ParseAuditEntityType(strings.TrimSpace(r.URL.Query().Get("entity_type")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_type").
				WithDetails(map[string]any{"field": "entity_type"}))
			return
		}
		entityID, err := validators.ParseQueryUUID(r, "entity_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}

		page, err := svc.ListForEntity(ctx, middleware.OrgIDFromContext(ctx), entityType, entityID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]auditEntryView, 0, len(page.Entries))
		for _, entry := range page.Entries {
			views = append(views, auditEntryView{
				ID:         entry.ID,
				ActorID:    entry.ActorID,
				EntityType: entry.EntityType,
				EntityID:   entry.EntityID,
				Action:     entry.Action,
				Before:     entry.Before,
				After:      entry.After,
				CreatedAt:  entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"entries": views, "next_cursor": page.NextCursor})
	}
}
