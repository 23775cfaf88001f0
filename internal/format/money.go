// Package format renders amounts and meter attributes for display.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var symbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
}

// Money formats amounts with two fixed decimals and the separators of a locale.
type Money struct {
	group    string
	point    string
	code     string
	symbol   string
	prefixed bool
}

// NewMoney creates a formatter for the given BCP 47 locale and ISO 4217 currency.
func NewMoney(locale, currencyCode string) (*Money, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse currency %q: %w", currencyCode, err)
	}

	code := unit.String()
	symbol, ok := symbols[code]
	if !ok {
		symbol = code
	}
	base, _ := tag.Base()
	group, point := separators(message.NewPrinter(tag))

	return &Money{
		group:    group,
		point:    point,
		code:     code,
		symbol:   symbol,
		prefixed: base.String() == "en",
	}, nil
}

// Currency returns the ISO code of the formatter.
func (m *Money) Currency() string {
	return m.code
}

// Format renders amount rounded to two places, e.g. "1.234,50 €" or "€1,234.50".
// Digits come from the decimal itself, so large amounts stay exact.
func (m *Money) Format(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	n := sign + groupDigits(whole, m.group) + m.point + frac
	if m.prefixed {
		return m.symbol + n
	}
	return n + " " + m.symbol
}

// separators reads the grouping and decimal separators of a locale from a
// formatted sample. Locales with non-Latin digits fall back to "." and no grouping.
func separators(p *message.Printer) (group, point string) {
	sample := p.Sprint(number.Decimal(1234567.5, number.MinFractionDigits(1), number.MaxFractionDigits(1)))
	rest, ok := strings.CutPrefix(sample, "1")
	i := strings.Index(rest, "234")
	if !ok || i < 0 {
		return "", "."
	}
	group, rest = rest[:i], rest[i+3:]
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, group), "567")
	point = strings.TrimSuffix(rest, "5")
	if point == "" {
		point = "."
	}
	return group, point
}

func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
