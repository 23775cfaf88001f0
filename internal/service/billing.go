package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/allocation"
	"github.com/septivank/rental-billing-worker/internal/config"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const maxConcurrentReadingLookups = 8

// Statement is the cost breakdown of one apartment for one period
type Statement struct {
	ApartmentID uuid.UUID
	AddressID   uuid.UUID
	Period      string
	Weighted    bool
	Summary     allocation.Summary
}

// BillingService assembles apartment statements
type BillingService struct {
	store     BillingStore
	registry  *meter.Registry
	allocator *allocation.Allocator
	money     *format.Money
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewBillingService creates a new billing service
func NewBillingService(
	store BillingStore,
	registry *meter.Registry,
	allocator *allocation.Allocator,
	money *format.Money,
	cfg *config.Config,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		store:     store,
		registry:  registry,
		allocator: allocator,
		money:     money,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Money returns the formatter used for statement amounts.
func (s *BillingService) Money() *format.Money {
	return s.money
}

// ApartmentCosts allocates every canonical meter of the apartment against
// its authoritative reading for period. An empty period means the current one.
func (s *BillingService) ApartmentCosts(ctx context.Context, apartmentID uuid.UUID, period string) (*Statement, error) {
	if period == "" {
		period = reading.PeriodOf(s.now())
	}
	if _, err := time.Parse(reading.PeriodLayout, period); err != nil {
		return nil, ierr.NewError(fmt.Sprintf("invalid period %q", period)).
			WithHint("Period must look like 2025-03").
			Mark(ierr.ErrValidation)
	}

	apt, err := s.store.GetApartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	allocCtx, err := apt.AllocationContext()
	if err != nil {
		return nil, fmt.Errorf("failed to build allocation context: %w", err)
	}

	addressMeters, err := s.store.ListAddressMeters(ctx, apt.AddressID)
	if err != nil {
		return nil, fmt.Errorf("failed to list address meters: %w", err)
	}
	customMeters, err := s.store.ListApartmentMeters(ctx, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list apartment meters: %w", err)
	}
	meters := s.registry.Resolve(apt.AddressID, addressMeters, customMeters)

	readings, err := s.authoritativeReadings(ctx, meters, apartmentID, period)
	if err != nil {
		return nil, err
	}

	weighted := s.cfg.Billing.AuthoritativeShares
	summary := s.allocator.Bill(meters, readings, allocCtx, s.money, weighted)
	if len(summary.Warnings) > 0 {
		s.logger.Warn("statement computed with data quality warnings",
			zap.String("apartment_id", apartmentID.String()),
			zap.Strings("warnings", summary.Warnings),
		)
	}

	return &Statement{
		ApartmentID: apartmentID,
		AddressID:   apt.AddressID,
		Period:      period,
		Weighted:    weighted,
		Summary:     summary,
	}, nil
}

// authoritativeReadings looks up the latest approved reading of every read
// meter concurrently. Building meter readings are shared by all apartments.
func (s *BillingService) authoritativeReadings(ctx context.Context, meters []meter.Meter, apartmentID uuid.UUID, period string) (map[uuid.UUID]*reading.Reading, error) {
	var mu sync.Mutex
	readings := make(map[uuid.UUID]*reading.Reading, len(meters))

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(maxConcurrentReadingLookups)

	for _, m := range meters {
		if !m.RequiresReading() {
			continue
		}
		p.Go(func(ctx context.Context) error {
			r, err := s.store.LatestApprovedReading(ctx, m.ID, reading.FiledUnder(m, apartmentID), period)
			if err != nil {
				return fmt.Errorf("failed to load reading for meter %s: %w", m.ID, err)
			}
			mu.Lock()
			readings[m.ID] = r
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return readings, nil
}
