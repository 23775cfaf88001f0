package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/db"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/septivank/rental-billing-worker/internal/repository"
	"github.com/shopspring/decimal"
)

// The store interfaces below are satisfied by *repository.Repository.

// ReadingStore persists readings and their review decisions
type ReadingStore interface {
	GetMeter(ctx context.Context, id uuid.UUID) (meter.Meter, error)
	RecentConsumptions(ctx context.Context, meterID, apartmentID uuid.UUID, limit int) ([]decimal.Decimal, error)
	RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error
	LockReadingPeriodTx(ctx context.Context, tx repository.Tx, meterID, apartmentID uuid.UUID, period string) error
	LatestReadingTx(ctx context.Context, tx repository.Tx, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error)
	InsertReadingTx(ctx context.Context, tx repository.Tx, rd *reading.Reading) error
	GetReadingForUpdateTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (reading.Reading, error)
	UpdateReadingStatusTx(ctx context.Context, tx repository.Tx, id uuid.UUID, status reading.ApprovalStatus, reason string) error
}

// MeterStore reads address meters and replaces their apartment mirrors
type MeterStore interface {
	ListAddressMeters(ctx context.Context, addressID uuid.UUID) ([]meter.Meter, error)
	ListApartmentIDs(ctx context.Context, addressID uuid.UUID) ([]uuid.UUID, error)
	RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error
	ReplaceDerivedMetersTx(ctx context.Context, tx repository.Tx, addressID uuid.UUID, meters []meter.Meter) (int64, error)
}

// BillingStore reads what an apartment statement needs
type BillingStore interface {
	GetApartment(ctx context.Context, apartmentID uuid.UUID) (db.ApartmentRow, error)
	ListAddressMeters(ctx context.Context, addressID uuid.UUID) ([]meter.Meter, error)
	ListApartmentMeters(ctx context.Context, apartmentID uuid.UUID) ([]meter.Meter, error)
	LatestApprovedReading(ctx context.Context, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error)
}

// TenancyStore reads the tenancy facts of an apartment
type TenancyStore interface {
	GetTenancy(ctx context.Context, apartmentID uuid.UUID) (db.TenancyRow, error)
}

// EventPublisher publishes committed state changes
type EventPublisher interface {
	PublishEvent(ctx context.Context, event mq.Event) error
}

var (
	_ ReadingStore   = (*repository.Repository)(nil)
	_ MeterStore     = (*repository.Repository)(nil)
	_ BillingStore   = (*repository.Repository)(nil)
	_ TenancyStore   = (*repository.Repository)(nil)
	_ EventPublisher = (*mq.Publisher)(nil)
)
