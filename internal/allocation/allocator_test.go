package allocation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sharedMeter(method meter.DistributionMethod, price float64) meter.Meter {
	return meter.Meter{
		ID:                 uuid.New(),
		AddressID:          uuid.New(),
		Name:               "Water",
		Scope:              meter.ScopeBuilding,
		Unit:               meter.UnitCubicMetre,
		DistributionMethod: method,
		PricePerUnit:       decimal.NewFromFloat(price),
		CollectionMode:     meter.LandlordOnly,
	}
}

func approved(previous, current int64) *reading.Reading {
	return &reading.Reading{
		CurrentValue:  decimal.NewFromInt(current),
		PreviousValue: decimal.NewFromInt(previous),
		SubmittedBy:   reading.ByLandlord,
		Status:        reading.StatusApproved,
	}
}

func assertAmount(t *testing.T, expected string, res Result) {
	t.Helper()
	assert.Equal(t, expected, res.Amount.StringFixed(2))
}

func TestAllocate_FixedFeeIgnoresReadingsAndApartments(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.FixedSplit, 0)
	m.Scope = meter.ScopeNone
	m.FixedPrice = decimal.RequireFromString("19.90")

	for _, c := range []Context{{ApartmentCount: 0}, {ApartmentCount: 1}, {ApartmentCount: 12}} {
		for _, r := range []*reading.Reading{nil, approved(0, 1000)} {
			res := a.Allocate(m, r, c)
			assertAmount(t, "19.90", res)
			assert.Equal(t, BasisFixed, res.Basis)
		}
	}
}

func TestAllocate_PerApartmentSplitsEqually(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerApartment, 2.00)

	res := a.Allocate(m, approved(100, 200), Context{ApartmentCount: 4})

	assertAmount(t, "50.00", res)
	assert.Equal(t, BasisEqualSplit, res.Basis)
	assert.Equal(t, "EUR", res.Currency)
	assert.False(t, res.Estimate)
}

func TestAllocate_PerConsumptionIgnoresApartmentCount(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerConsumption, 1.5)

	for _, n := range []int{0, 1, 7} {
		res := a.Allocate(m, approved(10, 30), Context{ApartmentCount: n})
		assertAmount(t, "30.00", res)
		assert.Equal(t, BasisConsumption, res.Basis)
	}
}

func TestAllocate_ZeroApartmentsReturnsUndividedTotal(t *testing.T) {
	a := NewAllocator("EUR")
	methods := []meter.DistributionMethod{meter.PerApartment, meter.PerPerson, meter.PerArea, meter.DistributionMethod("per_room")}

	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			res := a.Allocate(sharedMeter(method, 2), approved(0, 100), Context{ApartmentCount: 0})
			assertAmount(t, "200.00", res)
			assert.Equal(t, WarningNoApartments, res.Warning)
		})
	}
}

func TestAllocate_PersonAndAreaAreEstimates(t *testing.T) {
	a := NewAllocator("EUR")

	for _, method := range []meter.DistributionMethod{meter.PerPerson, meter.PerArea} {
		res := a.Allocate(sharedMeter(method, 3), approved(0, 100), Context{ApartmentCount: 3})
		assertAmount(t, "100.00", res)
		assert.True(t, res.Estimate)
		assert.Equal(t, BasisEqualSplit, res.Basis)
	}
}

func TestAllocate_RollbackChargesNothing(t *testing.T) {
	a := NewAllocator("EUR")

	res := a.Allocate(sharedMeter(meter.PerConsumption, 2), approved(10, 5), Context{ApartmentCount: 2})

	assert.True(t, res.Amount.IsZero())
	assert.False(t, res.Amount.IsNegative())
}

func TestAllocate_PendingReadingsContributeZero(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerConsumption, 2)

	pending := approved(0, 50)
	pending.Status = reading.StatusPendingApproval
	rejected := approved(0, 50)
	rejected.Status = reading.StatusRejected

	for _, r := range []*reading.Reading{nil, pending, rejected} {
		res := a.Allocate(m, r, Context{ApartmentCount: 2})
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, BasisPending, res.Basis)
	}
}

func TestAllocate_ApartmentScopeNeverDivided(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerApartment, 2)
	m.Scope = meter.ScopeApartment

	res := a.Allocate(m, approved(0, 100), Context{ApartmentCount: 4})

	assertAmount(t, "200.00", res)
	assert.Equal(t, BasisConsumption, res.Basis)
}

func TestAllocate_UnknownMethodOnBuildingSplits(t *testing.T) {
	a := NewAllocator("EUR")

	res := a.Allocate(sharedMeter(meter.DistributionMethod("per_room"), 2), approved(0, 100), Context{ApartmentCount: 4})

	assertAmount(t, "50.00", res)
}

func TestAllocate_Idempotent(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerApartment, 1.37)
	r := approved(12, 345)
	c := Context{ApartmentCount: 3}

	first := a.Allocate(m, r, c)
	second := a.Allocate(m, r, c)

	assert.Equal(t, first, second)
	assert.Equal(t, "12", r.PreviousValue.String())
}

func TestAllocateWeighted_UsesBuildingTotals(t *testing.T) {
	a := NewAllocator("EUR")

	res := a.AllocateWeighted(sharedMeter(meter.PerPerson, 4), approved(0, 100), Context{
		ApartmentCount: 4,
		PersonCount:    lo.ToPtr(2),
		TotalPersons:   lo.ToPtr(8),
	})
	assertAmount(t, "100.00", res)
	assert.Equal(t, BasisWeighted, res.Basis)
	assert.False(t, res.Estimate)

	res = a.AllocateWeighted(sharedMeter(meter.PerArea, 4), approved(0, 100), Context{
		ApartmentCount: 4,
		Area:           lo.ToPtr(decimal.NewFromInt(60)),
		TotalArea:      lo.ToPtr(decimal.NewFromInt(240)),
	})
	assertAmount(t, "100.00", res)
}

func TestAllocateWeighted_FallsBackWithoutTotals(t *testing.T) {
	a := NewAllocator("EUR")

	res := a.AllocateWeighted(sharedMeter(meter.PerPerson, 4), approved(0, 100), Context{
		ApartmentCount: 4,
		PersonCount:    lo.ToPtr(2),
		TotalPersons:   lo.ToPtr(0),
	})

	assertAmount(t, "100.00", res)
	assert.True(t, res.Estimate)
}

func TestStatus_Precedence(t *testing.T) {
	a := NewAllocator("EUR")
	money, err := format.NewMoney("en", "EUR")
	require.NoError(t, err)
	c := Context{ApartmentCount: 4}

	fixed := sharedMeter(meter.FixedSplit, 0)
	fixed.Scope = meter.ScopeNone
	assert.Equal(t, "fixed fee", Status(fixed, nil, a.Allocate(fixed, nil, c), money))

	m := sharedMeter(meter.PerApartment, 2)
	assert.Equal(t, "pending submission", Status(m, nil, a.Allocate(m, nil, c), money))

	r := approved(0, 1000)
	assert.Equal(t, "€500.00", Status(m, r, a.Allocate(m, r, c), money))

	p := sharedMeter(meter.PerPerson, 2)
	assert.Equal(t, "€500.00 (estimate)", Status(p, r, a.Allocate(p, r, c), money))
}

func TestBill_TotalsAndCounts(t *testing.T) {
	a := NewAllocator("EUR")
	money, err := format.NewMoney("en", "EUR")
	require.NoError(t, err)

	fixed := sharedMeter(meter.FixedSplit, 0)
	fixed.Scope = meter.ScopeNone
	fixed.FixedPrice = decimal.NewFromInt(20)
	water := sharedMeter(meter.PerApartment, 2)
	heat := sharedMeter(meter.PerArea, 1)
	unread := sharedMeter(meter.PerConsumption, 1)

	readings := map[uuid.UUID]*reading.Reading{
		water.ID: approved(0, 100),
		heat.ID:  approved(0, 40),
	}

	s := a.Bill([]meter.Meter{fixed, water, heat, unread}, readings, Context{ApartmentCount: 4}, money, false)

	require.Len(t, s.Items, 4)
	assert.Equal(t, "80.00", s.Total.StringFixed(2))
	assert.Equal(t, 1, s.Pending)
	assert.True(t, s.Estimated)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, "pending submission", s.Items[3].Status)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, "EUR")

	assert.True(t, s.Total.IsZero())
	assert.Equal(t, 0, s.Pending)
	assert.False(t, s.Estimated)
	assert.Equal(t, "EUR", s.Currency)
}

func TestSummarize_CollectsWarnings(t *testing.T) {
	a := NewAllocator("EUR")
	m := sharedMeter(meter.PerApartment, 1)

	s := Summarize([]LineItem{{Meter: m, Result: a.Allocate(m, approved(0, 10), Context{})}}, "EUR")

	assert.Equal(t, []string{"Water: " + WarningNoApartments}, s.Warnings)
	assert.Equal(t, "10.00", s.Total.StringFixed(2))
}
