package billing

import (
	"context"
	"fmt"

	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

// PricingService exposes the purchasable promotion catalog.
type PricingService struct {
	repo Repository
}

func NewPricingService(repo Repository) (*PricingService, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	return &PricingService{repo: repo}, nil
}

// ListActivePlans returns active plans, cheapest first.
func (s *PricingService) ListActivePlans(ctx context.Context) ([]PlanDTO, error) {
	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pricing plans")
	}
	out := make([]PlanDTO, 0, len(plans))
	for _, plan := range plans {
		out = append(out, toPlanDTO(plan))
	}
	return out, nil
}
