// Package occupancy derives the tenancy phase of an apartment from its lease
// and move-out facts. Nothing is stored: the state is recomputed on every call.
package occupancy

import (
	"strings"
	"time"

	"github.com/septivank/rental-billing-worker/tools/timeparser"
)

// State is the derived occupancy phase.
type State string

const (
	StateVacant          State = "vacant"
	StateReserved        State = "reserved"
	StateOccupied        State = "occupied"
	StateNoticeGiven     State = "notice_given"
	StateMovedOutPending State = "moved_out_pending"
)

// DefaultVacantSentinel is the tenant name stored for apartments without a tenant.
const DefaultVacantSentinel = "vacant"

// Input holds the tenancy facts of one apartment.
type Input struct {
	TenantName     string
	TenantStatus   string
	LeaseStart     *time.Time
	LeaseEnd       *time.Time
	MoveOutPlanned *time.Time
	MoveOutStatus  string
	ReferenceDate  time.Time
}

// Result is a state with its display attributes.
type Result struct {
	State State  `json:"state"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Resolver evaluates the occupancy rules.
type Resolver struct {
	vacantSentinel string
}

// NewResolver creates a resolver that treats vacantSentinel as "no tenant".
func NewResolver(vacantSentinel string) *Resolver {
	if vacantSentinel == "" {
		vacantSentinel = DefaultVacantSentinel
	}
	return &Resolver{vacantSentinel: strings.ToLower(vacantSentinel)}
}

// Resolve returns the occupancy of in. Dates are compared as calendar days,
// each read in its own location; the first matching rule wins.
func (r *Resolver) Resolve(in Input) Result {
	return Describe(r.State(in))
}

// State applies the rules in order:
//  1. no tenant → vacant
//  2. lease starts after the reference day → reserved
//  3. move-out planned before the reference day with a live move-out record → moved_out_pending
//  4. move-out planned on or after the reference day → notice_given
//  5. lease ended before the reference day → moved_out_pending
//  6. otherwise occupied
func (r *Resolver) State(in Input) State {
	ref := timeparser.CalendarDay(in.ReferenceDate)
	day := func(t *time.Time) time.Time { return timeparser.CalendarDay(*t) }

	name := strings.ToLower(strings.TrimSpace(in.TenantName))
	if name == "" || name == r.vacantSentinel || strings.EqualFold(strings.TrimSpace(in.TenantStatus), string(StateVacant)) {
		return StateVacant
	}
	if in.LeaseStart != nil && day(in.LeaseStart).After(ref) {
		return StateReserved
	}
	if in.MoveOutPlanned != nil && day(in.MoveOutPlanned).Before(ref) && meaningful(in.MoveOutStatus) {
		return StateMovedOutPending
	}
	if in.MoveOutPlanned != nil && !day(in.MoveOutPlanned).Before(ref) {
		return StateNoticeGiven
	}
	if in.LeaseEnd != nil && day(in.LeaseEnd).Before(ref) {
		return StateMovedOutPending
	}
	return StateOccupied
}

// meaningful reports whether a move-out status marks an active record.
func meaningful(status string) bool {
	s := strings.TrimSpace(status)
	return s != "" && !strings.EqualFold(s, "none")
}
