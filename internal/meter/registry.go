package meter

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultHeatingPattern matches heating meters by name in the languages the
// product ships with.
const DefaultHeatingPattern = `(?i)heat|lämmi|warm|heiz`

// Registry produces canonical meters for an apartment.
type Registry struct {
	heating *regexp.Regexp
}

// NewRegistry creates a registry that treats names matching heatingPattern as heating meters
func NewRegistry(heatingPattern string) (*Registry, error) {
	if heatingPattern == "" {
		heatingPattern = DefaultHeatingPattern
	}
	re, err := regexp.Compile(heatingPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile heating pattern: %w", err)
	}
	return &Registry{heating: re}, nil
}

// Normalize applies the registry policies to a single meter.
//
// A fixed fee is always a fixed split. Heating split per area or per
// apartment is a building meter even when it was entered as an individual one.
func (r *Registry) Normalize(m Meter) Meter {
	if m.Scope == ScopeNone {
		m.DistributionMethod = FixedSplit
	}
	if r.IsHeating(m) && (m.DistributionMethod == PerArea || m.DistributionMethod == PerApartment) {
		m.Scope = ScopeBuilding
	}
	return m
}

// IsHeating reports whether the meter name matches the heating pattern.
func (r *Registry) IsHeating(m Meter) bool {
	return r.heating.MatchString(m.Name)
}

// Resolve returns the canonical meters for one apartment of the address.
// Address meters pass through; apartment meters flagged IsCustom replace the
// address meter with the same name, and custom meters without a counterpart
// are appended in input order. Non-custom apartment rows are mirrors and are
// ignored. An address without an identifier has no meters.
func (r *Registry) Resolve(addressID uuid.UUID, addressMeters, apartmentMeters []Meter) []Meter {
	if addressID == uuid.Nil {
		return []Meter{}
	}

	customs := lo.Filter(apartmentMeters, func(m Meter, _ int) bool { return m.IsCustom })
	byKey := lo.KeyBy(customs, func(m Meter) string { return m.key() })
	used := make(map[string]bool, len(customs))

	out := make([]Meter, 0, len(addressMeters)+len(customs))
	for _, m := range addressMeters {
		if custom, ok := byKey[m.key()]; ok && !used[m.key()] {
			used[m.key()] = true
			out = append(out, r.Normalize(custom))
			continue
		}
		out = append(out, r.Normalize(m))
	}
	for _, m := range customs {
		if used[m.key()] {
			continue
		}
		used[m.key()] = true
		out = append(out, r.Normalize(m))
	}
	return out
}

// Derive builds the non-custom apartment mirrors of every address meter.
// Mirror ids are derived from the address meter and apartment ids, so the
// same input always yields the same set.
func (r *Registry) Derive(addressMeters []Meter, apartmentIDs []uuid.UUID) []Meter {
	out := make([]Meter, 0, len(addressMeters)*len(apartmentIDs))
	for _, aptID := range apartmentIDs {
		for _, m := range addressMeters {
			mirror := r.Normalize(m)
			mirror.ID = uuid.NewSHA1(m.ID, aptID[:])
			mirror.ApartmentID = lo.ToPtr(aptID)
			mirror.IsCustom = false
			out = append(out, mirror)
		}
	}
	return out
}
