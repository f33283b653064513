package dishcost

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service computes dish costs for the API and for menu aggregation.
type Service interface {
	DishCost(ctx context.Context, orgID, dishID uuid.UUID) (*Result, error)
	SummariesFor(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) (map[uuid.UUID]Summary, error)
}

type service struct {
	repo Repository
}

// NewService wires a dish cost service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dish cost repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) DishCost(ctx context.Context, orgID, dishID uuid.UUID) (*Result, error) {
	if orgID == uuid.Nil || dishID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id and dish id are required")
	}
	results, err := Load(ctx, s.repo, orgID, []uuid.UUID{dishID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute dish cost")
	}
	result, ok := results[dishID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dish not found")
	}
	return result, nil
}

func (s *service) SummariesFor(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) (map[uuid.UUID]Summary, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id is required")
	}
	results, err := Load(ctx, s.repo, orgID, dishIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute dish summaries")
	}
	out := make(map[uuid.UUID]Summary, len(results))
	for id, result := range results {
		out[id] = result.Summary
	}
	return out, nil
}
