package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/db"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles database operations
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// RunInTx runs fn in one transaction, committing when it returns nil.
func (r *Repository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ierr.WithError(fmt.Errorf("failed to begin transaction: %w", err)).Mark(ierr.ErrDatabase)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ierr.WithError(fmt.Errorf("failed to commit transaction: %w", err)).Mark(ierr.ErrDatabase)
	}
	return nil
}

const meterColumns = `
	id, address_id, apartment_id, name, scope, unit, distribution_method,
	price_per_unit::text, fixed_price::text, collection_mode, requires_photo, is_custom
`

func scanMeterRow(row pgx.Row) (db.MeterRow, error) {
	var m db.MeterRow
	err := row.Scan(
		&m.ID,
		&m.AddressID,
		&m.ApartmentID,
		&m.Name,
		&m.Scope,
		&m.Unit,
		&m.DistributionMethod,
		&m.PricePerUnit,
		&m.FixedPrice,
		&m.CollectionMode,
		&m.RequiresPhoto,
		&m.IsCustom,
	)
	return m, err
}

func (r *Repository) toMeter(row db.MeterRow) (meter.Meter, error) {
	m, err := row.ToMeter()
	if err != nil {
		return meter.Meter{}, err
	}
	if !m.DistributionMethod.Valid() {
		r.logger.Warn("meter has unknown distribution method",
			zap.String("meter_id", m.ID.String()),
			zap.String("distribution_method", string(m.DistributionMethod)),
		)
	}
	return m, nil
}

// GetMeter loads one meter definition
func (r *Repository) GetMeter(ctx context.Context, id uuid.UUID) (meter.Meter, error) {
	query := `SELECT ` + meterColumns + ` FROM meters WHERE id = $1`

	row, err := scanMeterRow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return meter.Meter{}, ierr.NewError(fmt.Sprintf("meter %s not found", id)).
			WithHint("Meter does not exist").
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return meter.Meter{}, ierr.WithError(fmt.Errorf("failed to query meter: %w", err)).Mark(ierr.ErrDatabase)
	}
	return r.toMeter(row)
}

func (r *Repository) queryMeters(ctx context.Context, query string, args ...interface{}) ([]meter.Meter, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(fmt.Errorf("failed to query meters: %w", err)).Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var meters []meter.Meter
	for rows.Next() {
		row, err := scanMeterRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		m, err := r.toMeter(row)
		if err != nil {
			return nil, err
		}
		meters = append(meters, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return meters, nil
}

// ListAddressMeters returns the address-level meter definitions in display order
func (r *Repository) ListAddressMeters(ctx context.Context, addressID uuid.UUID) ([]meter.Meter, error) {
	query := `SELECT ` + meterColumns + `
		FROM meters
		WHERE address_id = $1 AND apartment_id IS NULL
		ORDER BY sort_order, name
	`
	return r.queryMeters(ctx, query, addressID)
}

// ListApartmentMeters returns the custom meters of one apartment
func (r *Repository) ListApartmentMeters(ctx context.Context, apartmentID uuid.UUID) ([]meter.Meter, error) {
	query := `SELECT ` + meterColumns + `
		FROM meters
		WHERE apartment_id = $1 AND is_custom
		ORDER BY sort_order, name
	`
	return r.queryMeters(ctx, query, apartmentID)
}

// ListApartmentIDs returns the apartments of an address
func (r *Repository) ListApartmentIDs(ctx context.Context, addressID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM apartments WHERE address_id = $1 ORDER BY id`, addressID)
	if err != nil {
		return nil, ierr.WithError(fmt.Errorf("failed to query apartments: %w", err)).Mark(ierr.ErrDatabase)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect apartment ids: %w", err)
	}
	return ids, nil
}

// ReplaceDerivedMetersTx swaps the non-custom apartment meters of an address
// for the given set. Custom overrides are left untouched.
func (r *Repository) ReplaceDerivedMetersTx(ctx context.Context, tx Tx, addressID uuid.UUID, meters []meter.Meter) (int64, error) {
	deleteQuery := `
		DELETE FROM meters
		WHERE address_id = $1 AND apartment_id IS NOT NULL AND NOT is_custom
	`
	tag, err := tx.Exec(ctx, deleteQuery, addressID)
	if err != nil {
		return 0, ierr.WithError(fmt.Errorf("failed to delete derived meters: %w", err)).Mark(ierr.ErrDatabase)
	}

	insertQuery := `
		INSERT INTO meters (
			id, address_id, apartment_id, name, scope, unit, distribution_method,
			price_per_unit, fixed_price, collection_mode, requires_photo, is_custom
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12)
	`

	batch := &pgx.Batch{}
	for _, m := range meters {
		row := db.MeterRowFrom(m)
		batch.Queue(insertQuery,
			row.ID,
			row.AddressID,
			row.ApartmentID,
			row.Name,
			row.Scope,
			row.Unit,
			row.DistributionMethod,
			row.PricePerUnit,
			row.FixedPrice,
			row.CollectionMode,
			row.RequiresPhoto,
			row.IsCustom,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, ierr.WithError(fmt.Errorf("failed to insert derived meters: %w", err)).Mark(ierr.ErrDatabase)
	}

	return tag.RowsAffected(), nil
}

const readingColumns = `
	id, meter_id, apartment_id, period, current_value::text, previous_value::text,
	submitted_by, status, photo_url, reading_date, review_flag, created_at
`

func scanReading(row pgx.Row) (reading.Reading, error) {
	var rr db.ReadingRow
	err := row.Scan(
		&rr.ID,
		&rr.MeterID,
		&rr.ApartmentID,
		&rr.Period,
		&rr.CurrentValue,
		&rr.PreviousValue,
		&rr.SubmittedBy,
		&rr.Status,
		&rr.PhotoURL,
		&rr.ReadingDate,
		&rr.ReviewFlag,
		&rr.CreatedAt,
	)
	if err != nil {
		return reading.Reading{}, err
	}
	return rr.ToReading()
}

func queryOneReading(q pgx.Row) (*reading.Reading, error) {
	rd, err := scanReading(q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.WithError(fmt.Errorf("failed to query reading: %w", err)).Mark(ierr.ErrDatabase)
	}
	return &rd, nil
}

// LockReadingPeriodTx serializes submissions for one meter, apartment and
// period until tx ends. Readings of building meters use uuid.Nil.
func (r *Repository) LockReadingPeriodTx(ctx context.Context, tx Tx, meterID, apartmentID uuid.UUID, period string) error {
	key := fmt.Sprintf("reading:%s:%s:%s", meterID, apartmentID, period)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return ierr.WithError(fmt.Errorf("failed to lock reading period: %w", err)).Mark(ierr.ErrDatabase)
	}
	return nil
}

// LatestReadingTx returns the most recent reading of a meter for one
// apartment and period, whatever its status, or nil.
func (r *Repository) LatestReadingTx(ctx context.Context, tx Tx, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		WHERE meter_id = $1 AND apartment_id IS NOT DISTINCT FROM $2 AND period = $3
		ORDER BY reading_date DESC, created_at DESC
		LIMIT 1
	`
	return queryOneReading(tx.QueryRow(ctx, query, meterID, lo.EmptyableToPtr(apartmentID), period))
}

// LatestApprovedReading returns the authoritative reading for billing, or nil.
func (r *Repository) LatestApprovedReading(ctx context.Context, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		WHERE meter_id = $1 AND apartment_id IS NOT DISTINCT FROM $2 AND period = $3 AND status = 'approved'
		ORDER BY reading_date DESC, created_at DESC
		LIMIT 1
	`
	return queryOneReading(r.pool.QueryRow(ctx, query, meterID, lo.EmptyableToPtr(apartmentID), period))
}

// GetReadingForUpdateTx loads and locks one reading within a transaction
func (r *Repository) GetReadingForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (reading.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1 FOR UPDATE`

	rd, err := queryOneReading(tx.QueryRow(ctx, query, id))
	if err != nil {
		return reading.Reading{}, err
	}
	if rd == nil {
		return reading.Reading{}, ierr.NewError(fmt.Sprintf("reading %s not found", id)).
			WithHint("Reading does not exist").
			Mark(ierr.ErrNotFound)
	}
	return *rd, nil
}

// RecentConsumptions returns the consumption of the latest approved readings,
// newest first, for anomaly detection.
func (r *Repository) RecentConsumptions(ctx context.Context, meterID, apartmentID uuid.UUID, limit int) ([]decimal.Decimal, error) {
	query := `
		SELECT GREATEST(current_value - previous_value, 0)::text
		FROM readings
		WHERE meter_id = $1 AND apartment_id IS NOT DISTINCT FROM $2 AND status = 'approved'
		ORDER BY reading_date DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, meterID, lo.EmptyableToPtr(apartmentID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	var values []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse consumption %q: %w", raw, err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return values, nil
}

// InsertReadingTx inserts a reading within a transaction and sets its id
func (r *Repository) InsertReadingTx(ctx context.Context, tx Tx, rd *reading.Reading) error {
	query := `
		INSERT INTO readings (
			meter_id, apartment_id, period, current_value, previous_value,
			submitted_by, status, photo_url, reading_date, review_flag
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10)
		RETURNING id
	`

	row := db.ReadingRowFrom(*rd)
	err := tx.QueryRow(ctx, query,
		row.MeterID,
		row.ApartmentID,
		row.Period,
		row.CurrentValue,
		row.PreviousValue,
		row.SubmittedBy,
		row.Status,
		row.PhotoURL,
		row.ReadingDate,
		row.ReviewFlag,
	).Scan(&rd.ID)
	if err != nil {
		return ierr.WithError(fmt.Errorf("failed to insert reading: %w", err)).Mark(ierr.ErrDatabase)
	}

	return nil
}

// UpdateReadingStatusTx stores a review decision within a transaction
func (r *Repository) UpdateReadingStatusTx(ctx context.Context, tx Tx, id uuid.UUID, status reading.ApprovalStatus, reason string) error {
	query := `
		UPDATE readings
		SET status = $1, review_reason = NULLIF($2, ''), reviewed_at = now()
		WHERE id = $3
	`

	tag, err := tx.Exec(ctx, query, string(status), reason, id)
	if err != nil {
		return ierr.WithError(fmt.Errorf("failed to update reading status: %w", err)).Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError(fmt.Sprintf("reading %s not found", id)).Mark(ierr.ErrNotFound)
	}

	return nil
}

// GetApartment loads the allocation facts of an apartment, counting the
// apartments, persons and area of its building.
func (r *Repository) GetApartment(ctx context.Context, apartmentID uuid.UUID) (db.ApartmentRow, error) {
	query := `
		SELECT a.id, a.address_id, a.persons, a.area::text,
			b.apartment_count, b.total_persons, b.total_area::text
		FROM apartments a
		JOIN LATERAL (
			SELECT COUNT(*)::int AS apartment_count,
				SUM(persons)::int AS total_persons,
				SUM(area) AS total_area
			FROM apartments
			WHERE address_id = a.address_id
		) b ON true
		WHERE a.id = $1
	`

	var a db.ApartmentRow
	err := r.pool.QueryRow(ctx, query, apartmentID).Scan(
		&a.ID,
		&a.AddressID,
		&a.Persons,
		&a.Area,
		&a.ApartmentCount,
		&a.TotalPersons,
		&a.TotalArea,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ApartmentRow{}, ierr.NewError(fmt.Sprintf("apartment %s not found", apartmentID)).
			WithHint("Apartment does not exist").
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return db.ApartmentRow{}, ierr.WithError(fmt.Errorf("failed to query apartment: %w", err)).Mark(ierr.ErrDatabase)
	}

	return a, nil
}

// GetTenancy loads the current tenancy and move-out record of an apartment.
// An apartment without a tenancy row yields an empty tenancy.
func (r *Repository) GetTenancy(ctx context.Context, apartmentID uuid.UUID) (db.TenancyRow, error) {
	query := `
		SELECT a.id, COALESCE(t.tenant_name, ''), COALESCE(t.tenant_status, ''),
			t.lease_start, t.lease_end, t.monthly_rent::text, t.deposit::text,
			mo.planned_date, mo.status, mo.notice_date
		FROM apartments a
		LEFT JOIN tenancies t ON t.apartment_id = a.id AND t.is_current
		LEFT JOIN move_outs mo ON mo.tenancy_id = t.id
		WHERE a.id = $1
	`

	var t db.TenancyRow
	err := r.pool.QueryRow(ctx, query, apartmentID).Scan(
		&t.ApartmentID,
		&t.TenantName,
		&t.TenantStatus,
		&t.LeaseStart,
		&t.LeaseEnd,
		&t.MonthlyRent,
		&t.Deposit,
		&t.MoveOutPlanned,
		&t.MoveOutStatus,
		&t.NoticeDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.TenancyRow{}, ierr.NewError(fmt.Sprintf("apartment %s not found", apartmentID)).
			WithHint("Apartment does not exist").
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return db.TenancyRow{}, ierr.WithError(fmt.Errorf("failed to query tenancy: %w", err)).Mark(ierr.ErrDatabase)
	}

	return t, nil
}
