// Package snapshot loads an offline billing snapshot from TOML so that an
// apartment statement can be computed without the database.
//
//	currency = "EUR"
//	locale   = "fi"
//
//	[context]
//	apartment_count = 4
//
//	[[meters]]
//	name = "Water"
//	scope = "building"
//	unit = "m3"
//	distribution_method = "per_apartment"
//	price_per_unit = "4.20"
//
//	[[readings]]
//	meter = "Water"
//	current = "140"
//	previous = "120"
package snapshot

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/allocation"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/septivank/rental-billing-worker/tools/timeparser"
	"github.com/shopspring/decimal"
)

// File is the TOML document layout.
type File struct {
	Currency       string        `toml:"currency"`
	Locale         string        `toml:"locale"`
	HeatingPattern string        `toml:"heating_pattern"`
	Weighted       bool          `toml:"weighted"`
	Context        ContextSpec   `toml:"context"`
	Meters         []MeterSpec   `toml:"meters"`
	Readings       []ReadingSpec `toml:"readings"`
}

type ContextSpec struct {
	ApartmentCount int    `toml:"apartment_count"`
	Persons        *int   `toml:"persons"`
	Area           string `toml:"area"`
	TotalPersons   *int   `toml:"total_persons"`
	TotalArea      string `toml:"total_area"`
}

type MeterSpec struct {
	ID                 string `toml:"id"`
	Name               string `toml:"name"`
	Scope              string `toml:"scope"`
	Unit               string `toml:"unit"`
	DistributionMethod string `toml:"distribution_method"`
	PricePerUnit       string `toml:"price_per_unit"`
	FixedPrice         string `toml:"fixed_price"`
	CollectionMode     string `toml:"collection_mode"`
	RequiresPhoto      bool   `toml:"requires_photo"`
	// Custom marks an apartment override of the address meter with the same name.
	Custom bool `toml:"custom"`
}

// ReadingSpec is one reading of a meter. A meter may list several; the
// latest approved one is billed.
type ReadingSpec struct {
	Meter       string `toml:"meter"`
	Date        string `toml:"date"`
	Current     string `toml:"current"`
	Previous    string `toml:"previous"`
	Status      string `toml:"status"`
	SubmittedBy string `toml:"submitted_by"`
}

// Snapshot is a loaded and validated File.
type Snapshot struct {
	Currency        string
	Locale          string
	HeatingPattern  string
	Weighted        bool
	Context         allocation.Context
	AddressMeters   []meter.Meter
	ApartmentMeters []meter.Meter
	// Readings holds the authoritative reading per meter id.
	Readings map[uuid.UUID]*reading.Reading
}

var snapshotAddress = uuid.NewSHA1(uuid.NameSpaceOID, []byte("snapshot"))

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a snapshot. Unknown keys are rejected.
func Load(r io.Reader) (*Snapshot, error) {
	var file File
	md, err := toml.NewDecoder(r).Decode(&file)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Snapshot is not valid TOML").
			Mark(ierr.ErrValidation)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := lo.Map(undecoded, func(k toml.Key, _ int) string { return k.String() })
		return nil, ierr.NewError("unknown snapshot keys: " + strings.Join(keys, ", ")).
			WithHintf("Remove or rename %s", strings.Join(keys, ", ")).
			Mark(ierr.ErrValidation)
	}
	return file.build()
}

func (f File) build() (*Snapshot, error) {
	s := &Snapshot{
		Currency:       lo.Ternary(f.Currency == "", "EUR", f.Currency),
		Locale:         lo.Ternary(f.Locale == "", "en", f.Locale),
		HeatingPattern: f.HeatingPattern,
		Weighted:       f.Weighted,
		Readings:       make(map[uuid.UUID]*reading.Reading, len(f.Readings)),
	}

	ctx, err := f.Context.toContext()
	if err != nil {
		return nil, err
	}
	s.Context = ctx

	byName := make(map[string]meter.Meter, len(f.Meters))
	for i, spec := range f.Meters {
		m, err := spec.toMeter()
		if err != nil {
			return nil, fmt.Errorf("meters[%d]: %w", i, err)
		}
		if spec.Custom {
			s.ApartmentMeters = append(s.ApartmentMeters, m)
		} else {
			s.AddressMeters = append(s.AddressMeters, m)
		}
		// a custom meter overrides the address meter of the same name
		if _, seen := byName[m.Name]; !seen || spec.Custom {
			byName[m.Name] = m
		}
	}

	history := make(map[uuid.UUID][]reading.Reading)
	for i, spec := range f.Readings {
		m, ok := byName[spec.Meter]
		if !ok {
			return nil, ierr.NewError(fmt.Sprintf("readings[%d]: unknown meter %q", i, spec.Meter)).
				WithHint("Reading meter must name a meter of the snapshot").
				Mark(ierr.ErrValidation)
		}
		r, err := spec.toReading(m, i)
		if err != nil {
			return nil, fmt.Errorf("readings[%d]: %w", i, err)
		}
		history[m.ID] = append(history[m.ID], r)
	}
	for meterID, readings := range history {
		s.Readings[meterID] = reading.Authoritative(readings)
	}
	return s, nil
}

func (c ContextSpec) toContext() (allocation.Context, error) {
	if c.ApartmentCount < 0 {
		return allocation.Context{}, ierr.NewError("apartment_count is negative").
			WithHint("apartment_count must be zero or more").
			Mark(ierr.ErrValidation)
	}
	area, err := optionalDecimal("context.area", c.Area)
	if err != nil {
		return allocation.Context{}, err
	}
	totalArea, err := optionalDecimal("context.total_area", c.TotalArea)
	if err != nil {
		return allocation.Context{}, err
	}
	return allocation.Context{
		ApartmentCount: c.ApartmentCount,
		PersonCount:    c.Persons,
		Area:           area,
		TotalPersons:   c.TotalPersons,
		TotalArea:      totalArea,
	}, nil
}

func (spec MeterSpec) toMeter() (meter.Meter, error) {
	scope, err := meter.ParseScope(spec.Scope)
	if err != nil {
		return meter.Meter{}, err
	}
	unit, err := meter.ParseUnit(lo.Ternary(spec.Unit == "", string(meter.UnitOther), spec.Unit))
	if err != nil {
		return meter.Meter{}, err
	}
	method := meter.DistributionMethod(spec.DistributionMethod)
	if scope == meter.ScopeNone && method == "" {
		method = meter.FixedSplit
	}
	mode, err := meter.ParseCollectionMode(lo.Ternary(spec.CollectionMode == "", string(meter.LandlordOnly), spec.CollectionMode))
	if err != nil {
		return meter.Meter{}, err
	}
	price, err := decimalOrZero("price_per_unit", spec.PricePerUnit)
	if err != nil {
		return meter.Meter{}, err
	}
	fixed, err := decimalOrZero("fixed_price", spec.FixedPrice)
	if err != nil {
		return meter.Meter{}, err
	}

	m := meter.Meter{
		AddressID:          snapshotAddress,
		Name:               spec.Name,
		Scope:              scope,
		Unit:               unit,
		DistributionMethod: method,
		PricePerUnit:       price,
		FixedPrice:         fixed,
		CollectionMode:     mode,
		RequiresPhoto:      spec.RequiresPhoto,
		IsCustom:           spec.Custom,
	}
	switch {
	case spec.ID != "":
		if m.ID, err = uuid.Parse(spec.ID); err != nil {
			return meter.Meter{}, ierr.WithError(err).
				WithHintf("Meter id %q is not a UUID", spec.ID).
				Mark(ierr.ErrValidation)
		}
	case spec.Custom:
		m.ID = uuid.NewSHA1(snapshotAddress, []byte("custom/"+spec.Name))
	default:
		m.ID = uuid.NewSHA1(snapshotAddress, []byte(spec.Name))
	}

	// unknown distribution methods are billed as an equal split, so only
	// the remaining fields are checked strictly
	check := m
	if !check.DistributionMethod.Valid() {
		check.DistributionMethod = meter.PerApartment
	}
	if err := check.Validate(); err != nil {
		return meter.Meter{}, err
	}
	return m, nil
}

func (spec ReadingSpec) toReading(m meter.Meter, index int) (reading.Reading, error) {
	current, err := decimalOrZero("current", spec.Current)
	if err != nil {
		return reading.Reading{}, err
	}
	previous, err := decimalOrZero("previous", spec.Previous)
	if err != nil {
		return reading.Reading{}, err
	}
	if current.IsNegative() || previous.IsNegative() {
		return reading.Reading{}, ierr.NewError("negative reading value").
			WithHint("Readings must not be negative").
			Mark(ierr.ErrValidation)
	}
	status, err := reading.ParseStatus(lo.Ternary(spec.Status == "", string(reading.StatusApproved), spec.Status))
	if err != nil {
		return reading.Reading{}, err
	}
	by, err := reading.ParseSubmitter(lo.Ternary(spec.SubmittedBy == "", string(reading.ByLandlord), spec.SubmittedBy))
	if err != nil {
		return reading.Reading{}, err
	}

	var date time.Time
	if spec.Date != "" {
		if date, err = timeparser.ParseReadingDate(spec.Date); err != nil {
			return reading.Reading{}, ierr.WithError(err).
				WithHintf("Reading date %q is not a known date format", spec.Date).
				Mark(ierr.ErrValidation)
		}
	}

	return reading.Reading{
		ID:            uuid.NewSHA1(m.ID, []byte(fmt.Sprintf("reading/%d", index))),
		MeterID:       m.ID,
		Period:        lo.Ternary(date.IsZero(), "", reading.PeriodOf(date)),
		CurrentValue:  current,
		PreviousValue: previous,
		SubmittedBy:   by,
		Status:        status,
		Date:          date,
	}, nil
}

// Bill resolves the snapshot meters and allocates them.
func (s *Snapshot) Bill() (allocation.Summary, *format.Money, error) {
	registry, err := meter.NewRegistry(s.HeatingPattern)
	if err != nil {
		return allocation.Summary{}, nil, err
	}
	money, err := format.NewMoney(s.Locale, s.Currency)
	if err != nil {
		return allocation.Summary{}, nil, err
	}

	meters := registry.Resolve(snapshotAddress, s.AddressMeters, s.ApartmentMeters)
	summary := allocation.NewAllocator(s.Currency).Bill(meters, s.Readings, s.Context, money, s.Weighted)
	return summary, money, nil
}

func decimalOrZero(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("%s must be a decimal number", field).
			Mark(ierr.ErrValidation)
	}
	return d, nil
}

func optionalDecimal(field, raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := decimalOrZero(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
