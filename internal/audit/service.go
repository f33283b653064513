package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is a before/after pair emitted by a costing state change.
type Entry struct {
	OrgID      uuid.UUID
	ActorID    uuid.UUID
	EntityType enums.AuditEntityType
	EntityID   uuid.UUID
	Action     enums.AuditAction
	Before     any
	After      any
}

// Service records audit entries, usually inside the caller's transaction.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entries ...Entry) error
	ListForEntity(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID, params pagination.Params) (*Page, error)
}

// Page is one cursor page of an entity's audit trail.
type Page struct {
	Entries    []models.AuditEntry
	NextCursor string
}

type service struct {
	repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entries ...Entry) error {
	rows := make([]models.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		row, err := toModel(entry)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return s.repo.WithTx(tx).Create(ctx, rows)
}

func (s *service) ListForEntity(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID, params pagination.Params) (*Page, error) {
	if orgID == uuid.Nil || entityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id and entity id are required")
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, err := s.repo.ListPage(ctx, orgID, entityType, entityID, after, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	entries, next := pagination.Trim(entries, params.Limit, func(e models.AuditEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return &Page{Entries: entries, NextCursor: next}, nil
}

func toModel(entry Entry) (models.AuditEntry, error) {
	if entry.OrgID == uuid.Nil {
		return models.AuditEntry{}, fmt.Errorf("org id is required")
	}
	if entry.ActorID == uuid.Nil {
		return models.AuditEntry{}, fmt.Errorf("actor id is required")
	}
	if entry.EntityID == uuid.Nil {
		return models.AuditEntry{}, fmt.Errorf("entity id is required")
	}
	if !entry.Action.IsValid() {
		return models.AuditEntry{}, fmt.Errorf("invalid audit action %q", entry.Action)
	}
	before, err := marshalState(entry.Before)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("marshal before state: %w", err)
	}
	after, err := marshalState(entry.After)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("marshal after state: %w", err)
	}
	return models.AuditEntry{
		OrgID:      entry.OrgID,
		ActorID:    entry.ActorID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Before:     before,
		After:      after,
	}, nil
}

func marshalState(state any) (json.RawMessage, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
