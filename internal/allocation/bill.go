package allocation

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/shopspring/decimal"
)

// LineItem is one meter on an apartment statement.
type LineItem struct {
	Meter   meter.Meter
	Reading *reading.Reading
	Result  Result
	Status  string
}

// Summary totals the line items of one apartment and period.
type Summary struct {
	Items     []LineItem
	Total     decimal.Decimal
	Currency  string
	Pending   int
	Estimated bool
	Warnings  []string
}

// Bill allocates every meter against its reading (keyed by meter id) and
// totals the result. weighted selects AllocateWeighted.
func (a *Allocator) Bill(meters []meter.Meter, readings map[uuid.UUID]*reading.Reading, c Context, money *format.Money, weighted bool) Summary {
	items := make([]LineItem, 0, len(meters))
	for _, m := range meters {
		r := readings[m.ID]
		var res Result
		if weighted {
			res = a.AllocateWeighted(m, r, c)
		} else {
			res = a.Allocate(m, r, c)
		}
		items = append(items, LineItem{
			Meter:   m,
			Reading: r,
			Result:  res,
			Status:  Status(m, r, res, money),
		})
	}
	return Summarize(items, a.currency)
}

// Summarize totals line items and collects their warnings.
func Summarize(items []LineItem, currency string) Summary {
	s := Summary{
		Items:    items,
		Total:    decimal.Zero,
		Currency: currency,
	}
	for _, li := range items {
		s.Total = s.Total.Add(li.Result.Amount)
		if li.Result.Warning != "" {
			s.Warnings = append(s.Warnings, li.Meter.Name+": "+li.Result.Warning)
		}
	}
	s.Pending = lo.CountBy(items, func(li LineItem) bool { return li.Result.Basis == BasisPending })
	s.Estimated = lo.SomeBy(items, func(li LineItem) bool { return li.Result.Estimate })
	return s
}
