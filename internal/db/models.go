package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/allocation"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/occupancy"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/shopspring/decimal"
)

// MeterRow represents a meter definition in the database. Numeric columns
// are selected as text so they reach decimal unchanged.
type MeterRow struct {
	ID                 uuid.UUID
	AddressID          uuid.UUID
	ApartmentID        *uuid.UUID
	Name               string
	Scope              string
	Unit               string
	DistributionMethod string
	PricePerUnit       string
	FixedPrice         string
	CollectionMode     string
	RequiresPhoto      bool
	IsCustom           bool
}

// ToMeter converts a row into a meter. An unknown distribution method is
// kept as stored and left to the allocator's default branch.
func (r MeterRow) ToMeter() (meter.Meter, error) {
	scope, err := meter.ParseScope(r.Scope)
	if err != nil {
		return meter.Meter{}, fmt.Errorf("meter %s: %w", r.ID, err)
	}
	unit, err := meter.ParseUnit(r.Unit)
	if err != nil {
		unit = meter.UnitOther
	}
	mode, err := meter.ParseCollectionMode(r.CollectionMode)
	if err != nil {
		mode = meter.LandlordOnly
	}
	price, err := parseDecimal(r.PricePerUnit)
	if err != nil {
		return meter.Meter{}, fmt.Errorf("meter %s price_per_unit: %w", r.ID, err)
	}
	fixed, err := parseDecimal(r.FixedPrice)
	if err != nil {
		return meter.Meter{}, fmt.Errorf("meter %s fixed_price: %w", r.ID, err)
	}

	return meter.Meter{
		ID:                 r.ID,
		AddressID:          r.AddressID,
		ApartmentID:        r.ApartmentID,
		Name:               r.Name,
		Scope:              scope,
		Unit:               unit,
		DistributionMethod: meter.DistributionMethod(r.DistributionMethod),
		PricePerUnit:       price,
		FixedPrice:         fixed,
		CollectionMode:     mode,
		RequiresPhoto:      r.RequiresPhoto,
		IsCustom:           r.IsCustom,
	}, nil
}

// MeterRowFrom converts a meter for insertion.
func MeterRowFrom(m meter.Meter) MeterRow {
	return MeterRow{
		ID:                 m.ID,
		AddressID:          m.AddressID,
		ApartmentID:        m.ApartmentID,
		Name:               m.Name,
		Scope:              string(m.Scope),
		Unit:               string(m.Unit),
		DistributionMethod: string(m.DistributionMethod),
		PricePerUnit:       m.PricePerUnit.String(),
		FixedPrice:         m.FixedPrice.String(),
		CollectionMode:     string(m.CollectionMode),
		RequiresPhoto:      m.RequiresPhoto,
		IsCustom:           m.IsCustom,
	}
}

// ReadingRow represents a meter reading in the database
type ReadingRow struct {
	ID            uuid.UUID
	MeterID       uuid.UUID
	ApartmentID   *uuid.UUID
	Period        string
	CurrentValue  string
	PreviousValue string
	SubmittedBy   string
	Status        string
	PhotoURL      *string
	ReadingDate   time.Time
	ReviewFlag    *string
	CreatedAt     time.Time
}

// ToReading converts a row into a reading.
func (r ReadingRow) ToReading() (reading.Reading, error) {
	status, err := reading.ParseStatus(r.Status)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("reading %s: %w", r.ID, err)
	}
	submitter, err := reading.ParseSubmitter(r.SubmittedBy)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("reading %s: %w", r.ID, err)
	}
	current, err := parseDecimal(r.CurrentValue)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("reading %s current_value: %w", r.ID, err)
	}
	previous, err := parseDecimal(r.PreviousValue)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("reading %s previous_value: %w", r.ID, err)
	}

	return reading.Reading{
		ID:            r.ID,
		MeterID:       r.MeterID,
		ApartmentID:   lo.FromPtr(r.ApartmentID),
		Period:        r.Period,
		CurrentValue:  current,
		PreviousValue: previous,
		SubmittedBy:   submitter,
		Status:        status,
		PhotoURL:      lo.FromPtr(r.PhotoURL),
		Date:          r.ReadingDate,
		ReviewFlag:    lo.FromPtr(r.ReviewFlag),
	}, nil
}

// ReadingRowFrom converts a reading for insertion.
func ReadingRowFrom(r reading.Reading) ReadingRow {
	return ReadingRow{
		ID:            r.ID,
		MeterID:       r.MeterID,
		ApartmentID:   lo.EmptyableToPtr(r.ApartmentID),
		Period:        r.Period,
		CurrentValue:  r.CurrentValue.String(),
		PreviousValue: r.PreviousValue.String(),
		SubmittedBy:   string(r.SubmittedBy),
		Status:        string(r.Status),
		PhotoURL:      lo.EmptyableToPtr(r.PhotoURL),
		ReadingDate:   r.Date,
		ReviewFlag:    lo.EmptyableToPtr(r.ReviewFlag),
	}
}

// ApartmentRow holds the allocation facts of one apartment and its building.
type ApartmentRow struct {
	ID             uuid.UUID
	AddressID      uuid.UUID
	Persons        *int
	Area           *string
	ApartmentCount int
	TotalPersons   *int
	TotalArea      *string
}

// TenancyRow represents the current tenancy of an apartment
type TenancyRow struct {
	ApartmentID    uuid.UUID
	TenantName     string
	TenantStatus   string
	LeaseStart     *time.Time
	LeaseEnd       *time.Time
	MonthlyRent    *string
	Deposit        *string
	MoveOutPlanned *time.Time
	MoveOutStatus  *string
	NoticeDate     *time.Time
}

// OccupancyInput converts the tenancy into resolver input for ref.
func (t TenancyRow) OccupancyInput(ref time.Time) occupancy.Input {
	return occupancy.Input{
		TenantName:     t.TenantName,
		TenantStatus:   t.TenantStatus,
		LeaseStart:     t.LeaseStart,
		LeaseEnd:       t.LeaseEnd,
		MoveOutPlanned: t.MoveOutPlanned,
		MoveOutStatus:  lo.FromPtr(t.MoveOutStatus),
		ReferenceDate:  ref,
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ParseOptionalDecimal parses a nullable numeric column.
func ParseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AllocationContext converts the apartment facts into allocator input.
func (a ApartmentRow) AllocationContext() (allocation.Context, error) {
	area, err := ParseOptionalDecimal(a.Area)
	if err != nil {
		return allocation.Context{}, fmt.Errorf("apartment %s area: %w", a.ID, err)
	}
	totalArea, err := ParseOptionalDecimal(a.TotalArea)
	if err != nil {
		return allocation.Context{}, fmt.Errorf("apartment %s total area: %w", a.ID, err)
	}
	return allocation.Context{
		ApartmentCount: a.ApartmentCount,
		PersonCount:    a.Persons,
		Area:           area,
		TotalPersons:   a.TotalPersons,
		TotalArea:      totalArea,
	}, nil
}
