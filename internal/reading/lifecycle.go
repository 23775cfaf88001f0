package reading

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/shopspring/decimal"
)

var (
	ErrPhotoRequired = ierr.NewError("photo required").
		WithHint("This meter requires a photo of the meter display").
		Mark(ierr.ErrValidation)
	ErrNegativeValue = ierr.NewError("negative reading value").
		WithHint("Meter readings cannot be negative").
		Mark(ierr.ErrValidation)
	ErrNoReadingRequired = ierr.NewError("meter takes no readings").
		WithHint("Fixed fees are not read").
		Mark(ierr.ErrValidation)
	ErrTenantNotAllowed = ierr.NewError("tenant submissions not accepted").
		WithHint("Readings for this meter are entered by the landlord").
		Mark(ierr.ErrValidation)
	ErrApartmentRequired = ierr.NewError("apartment required").
		WithHint("Readings of an apartment meter need an apartment_id").
		Mark(ierr.ErrValidation)
)

// FiledUnder returns the apartment a reading of m is stored under. A
// building meter is read once for the whole address, so its readings
// belong to no apartment (uuid.Nil) and count for every apartment.
func FiledUnder(m meter.Meter, apartmentID uuid.UUID) uuid.UUID {
	if m.Scope == meter.ScopeBuilding {
		return uuid.Nil
	}
	return apartmentID
}

// transitions lists the allowed moves per state. Approved and rejected are
// terminal for the period; a new period starts again from not_submitted.
var transitions = map[ApprovalStatus][]ApprovalStatus{
	StatusNotSubmitted:    {StatusPendingApproval, StatusApproved},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {},
	StatusRejected:        {},
}

// ValidateTransition returns nil if moving from current to target is allowed.
func ValidateTransition(current, target ApprovalStatus) error {
	allowed, ok := transitions[current]
	if !ok {
		return ierr.NewError(fmt.Sprintf("unknown reading state: %s", current)).
			Mark(ierr.ErrInvalidTransition)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return ierr.NewError(fmt.Sprintf("transition from %q to %q is not allowed", current, target)).
		WithHintf("Reading is already %s", strings.ReplaceAll(string(current), "_", " ")).
		Mark(ierr.ErrInvalidTransition)
}

// Submission is a value entered by a landlord or a tenant.
type Submission struct {
	MeterID       uuid.UUID
	ApartmentID   uuid.UUID
	CurrentValue  decimal.Decimal
	PreviousValue decimal.Decimal
	SubmittedBy   Submitter
	PhotoURL      string
	Date          time.Time
}

// Submit turns a submission into a reading for the period of its date.
//
// Landlord values are authoritative immediately. Tenant values on a
// tenant_photo meter wait for approval and are refused outright when a
// required photo is missing.
func Submit(m meter.Meter, s Submission) (Reading, error) {
	if !m.RequiresReading() {
		return Reading{}, ErrNoReadingRequired
	}
	if s.SubmittedBy != ByLandlord && s.SubmittedBy != ByTenant {
		return Reading{}, ierr.NewError(fmt.Sprintf("unknown submitter %q", s.SubmittedBy)).
			WithHint("Submitter must be landlord or tenant").
			Mark(ierr.ErrValidation)
	}
	if s.CurrentValue.IsNegative() || s.PreviousValue.IsNegative() {
		return Reading{}, ErrNegativeValue
	}
	apartmentID := FiledUnder(m, s.ApartmentID)
	if m.Scope == meter.ScopeApartment && apartmentID == uuid.Nil {
		return Reading{}, ErrApartmentRequired
	}

	r := Reading{
		MeterID:       s.MeterID,
		ApartmentID:   apartmentID,
		Period:        PeriodOf(s.Date),
		CurrentValue:  s.CurrentValue,
		PreviousValue: s.PreviousValue,
		SubmittedBy:   s.SubmittedBy,
		PhotoURL:      strings.TrimSpace(s.PhotoURL),
		Date:          s.Date,
		Status:        StatusNotSubmitted,
	}

	target := StatusApproved
	if s.SubmittedBy == ByTenant {
		if m.CollectionMode != meter.TenantPhoto {
			return Reading{}, ErrTenantNotAllowed
		}
		if m.NeedsPhoto() && r.PhotoURL == "" {
			return Reading{}, ErrPhotoRequired
		}
		target = StatusPendingApproval
	}

	if err := ValidateTransition(r.Status, target); err != nil {
		return Reading{}, err
	}
	r.Status = target
	return r, nil
}

// Decision is the landlord's verdict on a pending reading.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Review applies a landlord decision to a pending reading.
func Review(r Reading, d Decision) (Reading, error) {
	var target ApprovalStatus
	switch d {
	case Approve:
		target = StatusApproved
	case Reject:
		target = StatusRejected
	default:
		return r, ierr.NewError(fmt.Sprintf("unknown review decision %q", d)).
			WithHint("Decision must be approve or reject").
			Mark(ierr.ErrValidation)
	}
	if err := ValidateTransition(r.Status, target); err != nil {
		return r, err
	}
	r.Status = target
	return r, nil
}

// Authoritative returns the most recent approved reading, or nil.
// Rejected and pending readings never replace an approved one.
func Authoritative(readings []Reading) *Reading {
	var latest *Reading
	for i := range readings {
		r := &readings[i]
		if !r.Counts() {
			continue
		}
		if latest == nil || !r.Date.Before(latest.Date) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}

// StatusFor returns the state of a period: the status of its latest
// reading, or not_submitted when the period has none.
func StatusFor(period string, readings []Reading) ApprovalStatus {
	var latest *Reading
	for i := range readings {
		r := &readings[i]
		if r.Period != period {
			continue
		}
		if latest == nil || !r.Date.Before(latest.Date) {
			latest = r
		}
	}
	if latest == nil {
		return StatusNotSubmitted
	}
	return latest.Status
}

// ErrAwaitingApproval is returned for a submission while another one of the
// same period still waits for review.
var ErrAwaitingApproval = ierr.NewError("reading awaiting approval").
	WithHint("A reading for this period is already waiting for the landlord").
	Mark(ierr.ErrInvalidTransition)

// ErrPeriodClosed is returned for a tenant submission after the period
// already has an approved reading.
var ErrPeriodClosed = ierr.NewError("period already approved").
	WithHint("The landlord has already approved a reading for this period").
	Mark(ierr.ErrInvalidTransition)

// CanSubmit reports whether a new value may be entered for a period whose
// current status is periodStatus. A rejected period is open again and the
// landlord may always correct an approved one.
func CanSubmit(periodStatus ApprovalStatus, by Submitter) error {
	switch periodStatus {
	case StatusPendingApproval:
		return ErrAwaitingApproval
	case StatusApproved:
		if by != ByLandlord {
			return ErrPeriodClosed
		}
	}
	return nil
}
