// Package reading implements the collection lifecycle of meter readings:
// who may submit a value, when a photo is required and how a landlord
// approves or rejects a tenant submission.
package reading

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/shopspring/decimal"
)

// ApprovalStatus is the state of a reading within one billing period.
type ApprovalStatus string

const (
	StatusNotSubmitted    ApprovalStatus = "not_submitted"
	StatusPendingApproval ApprovalStatus = "pending_approval"
	StatusApproved        ApprovalStatus = "approved"
	StatusRejected        ApprovalStatus = "rejected"
)

// Submitter identifies who entered the value.
type Submitter string

const (
	ByLandlord Submitter = "landlord"
	ByTenant   Submitter = "tenant"
)

// ParseStatus converts a stored status string.
func ParseStatus(raw string) (ApprovalStatus, error) {
	switch s := ApprovalStatus(raw); s {
	case StatusNotSubmitted, StatusPendingApproval, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", ierr.NewError(fmt.Sprintf("unknown approval status %q", raw)).
		Mark(ierr.ErrValidation)
}

// ParseSubmitter converts a stored or submitted submitter string.
func ParseSubmitter(raw string) (Submitter, error) {
	switch s := Submitter(raw); s {
	case ByLandlord, ByTenant:
		return s, nil
	}
	return "", ierr.NewError(fmt.Sprintf("unknown submitter %q", raw)).
		WithHint("Submitter must be landlord or tenant").
		Mark(ierr.ErrValidation)
}

// PeriodLayout formats billing periods as calendar months.
const PeriodLayout = "2006-01"

// Reading is one meter reading for one apartment and billing period.
type Reading struct {
	ID            uuid.UUID
	MeterID       uuid.UUID
	ApartmentID   uuid.UUID
	Period        string
	CurrentValue  decimal.Decimal
	PreviousValue decimal.Decimal
	SubmittedBy   Submitter
	Status        ApprovalStatus
	PhotoURL      string
	Date          time.Time
	// ReviewFlag carries an anomaly reason for manual review; it never changes the amount.
	ReviewFlag string
}

// Consumption is the non-negative difference between two readings.
// A meter rollback or replacement yields zero.
func Consumption(current, previous decimal.Decimal) decimal.Decimal {
	diff := current.Sub(previous)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

// Consumption returns the consumption of this reading.
func (r Reading) Consumption() decimal.Decimal {
	return Consumption(r.CurrentValue, r.PreviousValue)
}

// Counts reports whether the reading is authoritative for billing.
func (r Reading) Counts() bool {
	return r.Status == StatusApproved
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) string {
	return t.Format(PeriodLayout)
}
