// Package meter defines the canonical utility meter record and the registry
// that resolves address-level definitions against apartment overrides.
package meter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/shopspring/decimal"
)

// Scope says whether a meter is a flat fee, shared by a building or billed to one apartment.
type Scope string

const (
	ScopeNone      Scope = "none"
	ScopeBuilding  Scope = "building"
	ScopeApartment Scope = "apartment"
)

var scopes = []Scope{ScopeNone, ScopeBuilding, ScopeApartment}

// Unit is the physical unit a meter counts in.
type Unit string

const (
	UnitCubicMetre Unit = "m3"
	UnitKWh        Unit = "kWh"
	UnitGJ         Unit = "GJ"
	UnitOther      Unit = "other"
)

var units = []Unit{UnitCubicMetre, UnitKWh, UnitGJ, UnitOther}

// DistributionMethod is the formula used to divide a shared cost.
type DistributionMethod string

const (
	PerApartment   DistributionMethod = "per_apartment"
	PerPerson      DistributionMethod = "per_person"
	PerArea        DistributionMethod = "per_area"
	PerConsumption DistributionMethod = "per_consumption"
	FixedSplit     DistributionMethod = "fixed_split"
)

var distributionMethods = []DistributionMethod{PerApartment, PerPerson, PerArea, PerConsumption, FixedSplit}

// CollectionMode says who supplies the reading.
type CollectionMode string

const (
	LandlordOnly CollectionMode = "landlord_only"
	TenantPhoto  CollectionMode = "tenant_photo"
)

var collectionModes = []CollectionMode{LandlordOnly, TenantPhoto}

func (s Scope) Valid() bool              { return lo.Contains(scopes, s) }
func (u Unit) Valid() bool               { return lo.Contains(units, u) }
func (d DistributionMethod) Valid() bool { return lo.Contains(distributionMethods, d) }
func (c CollectionMode) Valid() bool     { return lo.Contains(collectionModes, c) }

func ParseScope(raw string) (Scope, error) { return parseEnum("scope", raw, scopes) }
func ParseUnit(raw string) (Unit, error)   { return parseEnum("unit", raw, units) }
func ParseDistributionMethod(raw string) (DistributionMethod, error) {
	return parseEnum("distribution method", raw, distributionMethods)
}
func ParseCollectionMode(raw string) (CollectionMode, error) {
	return parseEnum("collection mode", raw, collectionModes)
}

func parseEnum[T ~string](kind, raw string, valid []T) (T, error) {
	v := T(strings.TrimSpace(raw))
	if !lo.Contains(valid, v) {
		var zero T
		return zero, ierr.NewError(fmt.Sprintf("unknown %s %q", kind, raw)).
			WithHintf("%s must be one of %v", kind, valid).
			Mark(ierr.ErrValidation)
	}
	return v, nil
}

// Meter is the canonical meter record after registry normalization.
// ApartmentID is nil for address-level definitions.
type Meter struct {
	ID                 uuid.UUID
	AddressID          uuid.UUID
	ApartmentID        *uuid.UUID
	Name               string
	Scope              Scope
	Unit               Unit
	DistributionMethod DistributionMethod
	PricePerUnit       decimal.Decimal
	FixedPrice         decimal.Decimal
	CollectionMode     CollectionMode
	RequiresPhoto      bool
	IsCustom           bool
}

// RequiresReading reports whether the meter is billed from readings at all.
func (m Meter) RequiresReading() bool {
	return m.Scope != ScopeNone
}

// NeedsPhoto reports whether a tenant submission must carry a photo.
func (m Meter) NeedsPhoto() bool {
	return m.CollectionMode == TenantPhoto && m.RequiresPhoto
}

// Validate checks the stored enumerations and price signs.
func (m Meter) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ierr.NewError("meter name is empty").
			WithHint("Meter name is required").
			Mark(ierr.ErrValidation)
	}
	if !m.Scope.Valid() || !m.Unit.Valid() || !m.DistributionMethod.Valid() || !m.CollectionMode.Valid() {
		return ierr.NewError(fmt.Sprintf("meter %q has an unknown enumeration value", m.Name)).
			WithHint("Check scope, unit, distribution method and collection mode").
			Mark(ierr.ErrValidation)
	}
	if m.PricePerUnit.IsNegative() || m.FixedPrice.IsNegative() {
		return ierr.NewError(fmt.Sprintf("meter %q has a negative price", m.Name)).
			WithHint("Prices must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// key identifies the logical meter an override replaces.
func (m Meter) key() string {
	return strings.ToLower(strings.TrimSpace(m.Name))
}
