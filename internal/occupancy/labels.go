package occupancy

var display = map[State]Result{
	StateVacant:          {State: StateVacant, Label: "Vacant", Color: "gray"},
	StateReserved:        {State: StateReserved, Label: "Reserved", Color: "blue"},
	StateOccupied:        {State: StateOccupied, Label: "Occupied", Color: "green"},
	StateNoticeGiven:     {State: StateNoticeGiven, Label: "Notice given", Color: "amber"},
	StateMovedOutPending: {State: StateMovedOutPending, Label: "Move-out pending", Color: "red"},
}

// Describe returns the label and color of s.
func Describe(s State) Result {
	return display[s]
}

// Action is a workflow step offered for an apartment.
type Action string

const (
	ActionRecordMoveIn     Action = "record_move_in"
	ActionEditLease        Action = "edit_lease"
	ActionRegisterNotice   Action = "register_notice"
	ActionMoveOutChecklist Action = "move_out_checklist"
	ActionCloseTenancy     Action = "close_tenancy"
	ActionRequestReadings  Action = "request_readings"
)

var actions = map[State][]Action{
	StateVacant:          {ActionRecordMoveIn},
	StateReserved:        {ActionRecordMoveIn, ActionEditLease},
	StateOccupied:        {ActionEditLease, ActionRegisterNotice, ActionRequestReadings},
	StateNoticeGiven:     {ActionMoveOutChecklist, ActionRequestReadings},
	StateMovedOutPending: {ActionMoveOutChecklist, ActionCloseTenancy, ActionRequestReadings},
}

// Actions returns the workflow steps valid in s.
func Actions(s State) []Action {
	return append([]Action(nil), actions[s]...)
}

