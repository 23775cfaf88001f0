package format

import "github.com/septivank/rental-billing-worker/internal/meter"

var unitLabels = map[meter.Unit]string{
	meter.UnitCubicMetre: "m³",
	meter.UnitKWh:        "kWh",
	meter.UnitGJ:         "GJ",
	meter.UnitOther:      "",
}

var scopeLabels = map[meter.Scope]string{
	meter.ScopeNone:      "Fixed fee",
	meter.ScopeBuilding:  "Shared meter",
	meter.ScopeApartment: "Apartment meter",
}

var distributionLabels = map[meter.DistributionMethod]string{
	meter.PerApartment:   "Split per apartment",
	meter.PerPerson:      "Split per person",
	meter.PerArea:        "Split per area",
	meter.PerConsumption: "By consumption",
	meter.FixedSplit:     "Fixed monthly fee",
}

// UnitLabel returns the display symbol of a unit.
func UnitLabel(u meter.Unit) string {
	return unitLabels[u]
}

// ScopeLabel returns the display name of a scope.
func ScopeLabel(s meter.Scope) string {
	if l, ok := scopeLabels[s]; ok {
		return l
	}
	return string(s)
}

// DistributionLabel returns the display name of a distribution method.
func DistributionLabel(d meter.DistributionMethod) string {
	if l, ok := distributionLabels[d]; ok {
		return l
	}
	return string(d)
}
