package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/db"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/occupancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupancyService_Resolve(t *testing.T) {
	store := newMemoryStore()
	apt := uuid.New()
	store.tenancies[apt] = db.TenancyRow{
		ApartmentID:    apt,
		TenantName:     "Maija Virtanen",
		LeaseStart:     lo.ToPtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		MoveOutPlanned: lo.ToPtr(time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)),
		MoveOutStatus:  lo.ToPtr("confirmed"),
	}

	svc := NewOccupancyService(store, occupancy.NewResolver(""))
	svc.now = func() time.Time { return fixedNow }

	view, err := svc.Resolve(context.Background(), apt)
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateNoticeGiven, view.Result.State)
	assert.Equal(t, "Notice given", view.Result.Label)
	assert.Contains(t, view.Actions, occupancy.ActionMoveOutChecklist)

	view, err = svc.ResolveAt(context.Background(), apt, time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateMovedOutPending, view.Result.State)
}

func TestOccupancyService_EmptyTenancyIsVacant(t *testing.T) {
	store := newMemoryStore()
	apt := uuid.New()
	store.tenancies[apt] = db.TenancyRow{ApartmentID: apt}

	svc := NewOccupancyService(store, occupancy.NewResolver(""))

	view, err := svc.Resolve(context.Background(), apt)
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateVacant, view.Result.State)
}

func TestOccupancyService_UnknownApartment(t *testing.T) {
	svc := NewOccupancyService(newMemoryStore(), occupancy.NewResolver(""))

	_, err := svc.Resolve(context.Background(), uuid.New())
	assert.True(t, ierr.Is(err, ierr.ErrNotFound))
}
