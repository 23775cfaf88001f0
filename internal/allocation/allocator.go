// Package allocation computes what one apartment owes for one meter in one
// billing period. Everything here is a pure function of its inputs.
package allocation

import (
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/shopspring/decimal"
)

// Basis says how an amount was derived.
type Basis string

const (
	BasisFixed       Basis = "fixed"
	BasisConsumption Basis = "consumption"
	BasisEqualSplit  Basis = "equal-split"
	BasisWeighted    Basis = "weighted"
	BasisPending     Basis = "pending"
)

// WarningNoApartments is set when a shared cost could not be divided.
const WarningNoApartments = "apartment count missing; full amount charged to this apartment"

// Context carries the building facts a split needs. The totals are optional
// and only used by AllocateWeighted.
type Context struct {
	ApartmentCount int
	PersonCount    *int
	Area           *decimal.Decimal
	TotalPersons   *int
	TotalArea      *decimal.Decimal
}

// Result is the amount owed for one meter.
type Result struct {
	Amount   decimal.Decimal
	Currency string
	Basis    Basis
	// Estimate marks the local equal-split approximation of per_person and per_area costs.
	Estimate bool
	Warning  string
}

// Allocator divides meter costs between apartments.
type Allocator struct {
	currency string
}

// NewAllocator creates an allocator that labels results with currency.
func NewAllocator(currency string) *Allocator {
	if currency == "" {
		currency = "EUR"
	}
	return &Allocator{currency: currency}
}

// Allocate returns what the apartment owes for m given its latest reading.
// A nil reading, or one that is not approved, contributes zero.
func (a *Allocator) Allocate(m meter.Meter, r *reading.Reading, c Context) Result {
	if m.Scope == meter.ScopeNone {
		return a.result(m.FixedPrice, BasisFixed)
	}
	if r == nil || !r.Counts() {
		return a.result(decimal.Zero, BasisPending)
	}

	total := r.Consumption().Mul(m.PricePerUnit)

	// An apartment meter is never divided across other apartments.
	if m.Scope == meter.ScopeApartment && m.DistributionMethod != meter.FixedSplit {
		return a.result(total, BasisConsumption)
	}

	switch m.DistributionMethod {
	case meter.PerConsumption:
		return a.result(total, BasisConsumption)
	case meter.PerApartment:
		return a.split(total, c.ApartmentCount)
	case meter.PerPerson, meter.PerArea:
		res := a.split(total, c.ApartmentCount)
		res.Estimate = true
		return res
	case meter.FixedSplit:
		return a.result(m.FixedPrice, BasisFixed)
	default:
		return a.split(total, c.ApartmentCount)
	}
}

// AllocateWeighted is Allocate with true per_person and per_area shares when
// the building totals are known. Without totals it falls back to Allocate.
func (a *Allocator) AllocateWeighted(m meter.Meter, r *reading.Reading, c Context) Result {
	res := a.Allocate(m, r, c)
	if !res.Estimate {
		return res
	}

	total := r.Consumption().Mul(m.PricePerUnit)
	switch m.DistributionMethod {
	case meter.PerPerson:
		if c.PersonCount != nil && c.TotalPersons != nil && *c.TotalPersons > 0 {
			share := decimal.NewFromInt(int64(*c.PersonCount)).Div(decimal.NewFromInt(int64(*c.TotalPersons)))
			return a.result(total.Mul(share), BasisWeighted)
		}
	case meter.PerArea:
		if c.Area != nil && c.TotalArea != nil && c.TotalArea.IsPositive() {
			return a.result(total.Mul(*c.Area).Div(*c.TotalArea), BasisWeighted)
		}
	}
	return res
}

func (a *Allocator) split(total decimal.Decimal, apartments int) Result {
	if apartments <= 0 {
		res := a.result(total, BasisConsumption)
		res.Warning = WarningNoApartments
		return res
	}
	return a.result(total.Div(decimal.NewFromInt(int64(apartments))), BasisEqualSplit)
}

func (a *Allocator) result(amount decimal.Decimal, basis Basis) Result {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Result{
		Amount:   amount.Round(2),
		Currency: a.currency,
		Basis:    basis,
	}
}

// Status is the one-line display of a meter's cost: "fixed fee" for flat
// fees, "pending submission" while no approved reading exists, otherwise the
// formatted amount of res.
func Status(m meter.Meter, r *reading.Reading, res Result, money *format.Money) string {
	if m.Scope == meter.ScopeNone {
		return "fixed fee"
	}
	if r == nil || !r.Counts() {
		return "pending submission"
	}
	s := money.Format(res.Amount)
	if res.Estimate {
		s += " (estimate)"
	}
	return s
}
