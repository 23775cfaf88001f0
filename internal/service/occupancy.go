package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/occupancy"
)

// OccupancyView is the occupancy of one apartment with the workflow steps it allows
type OccupancyView struct {
	ApartmentID   uuid.UUID
	ReferenceDate time.Time
	Result        occupancy.Result
	Actions       []occupancy.Action
}

// OccupancyService resolves apartment occupancy from stored tenancy facts
type OccupancyService struct {
	store    TenancyStore
	resolver *occupancy.Resolver
	now      func() time.Time
}

// NewOccupancyService creates a new occupancy service
func NewOccupancyService(store TenancyStore, resolver *occupancy.Resolver) *OccupancyService {
	return &OccupancyService{
		store:    store,
		resolver: resolver,
		now:      time.Now,
	}
}

// Resolve returns the occupancy of the apartment as of today.
func (s *OccupancyService) Resolve(ctx context.Context, apartmentID uuid.UUID) (*OccupancyView, error) {
	return s.ResolveAt(ctx, apartmentID, s.now())
}

// ResolveAt returns the occupancy of the apartment on the day of ref.
func (s *OccupancyService) ResolveAt(ctx context.Context, apartmentID uuid.UUID, ref time.Time) (*OccupancyView, error) {
	tenancy, err := s.store.GetTenancy(ctx, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenancy: %w", err)
	}

	result := s.resolver.Resolve(tenancy.OccupancyInput(ref))
	return &OccupancyView{
		ApartmentID:   apartmentID,
		ReferenceDate: ref,
		Result:        result,
		Actions:       occupancy.Actions(result.State),
	}, nil
}
