package mq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Intake message types. Producers set the type on the envelope; the routing
// key is used when it is missing.
const (
	TypeReadingSubmitted = "reading.submitted"
	TypeReadingReviewed  = "reading.reviewed"
	TypeMeterUpdated     = "meter.updated"
)

// Outbound event types, published as routing keys on the events exchange.
const (
	EventReadingPending            = "reading.pending_approval"
	EventReadingApproved           = "reading.approved"
	EventReadingRejected           = "reading.rejected"
	EventReadingSubmissionRejected = "reading.submission_rejected"
	EventReadingFlagged            = "reading.flagged"
	EventMetersSynced              = "meter.synced"
)

// Envelope wraps every intake message
type Envelope struct {
	RequestID  string          `json:"request_id"`
	Type       string          `json:"type"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Event is published after a state change has been committed
type Event struct {
	ID         string      `json:"event_id"`
	Type       string      `json:"type"`
	RequestID  string      `json:"request_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// NewEvent stamps a payload with an id and time.
func NewEvent(eventType, requestID string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		RequestID:  requestID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// ReadingEvent describes a reading after a lifecycle transition
type ReadingEvent struct {
	ReadingID   string `json:"reading_id"`
	MeterID     string `json:"meter_id"`
	ApartmentID string `json:"apartment_id"`
	Period      string `json:"period"`
	Status      string `json:"status"`
	SubmittedBy string `json:"submitted_by"`
	Consumption string `json:"consumption"`
	ReviewFlag  string `json:"review_flag,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// SubmissionRejectedEvent reports a submission refused before it was stored
type SubmissionRejectedEvent struct {
	MeterID     string `json:"meter_id,omitempty"`
	ApartmentID string `json:"apartment_id,omitempty"`
	Reason      string `json:"reason"`
	Hint        string `json:"hint,omitempty"`
}

// MetersSyncedEvent reports a completed derived-meter synchronization
type MetersSyncedEvent struct {
	AddressID  string `json:"address_id"`
	Apartments int    `json:"apartments"`
	Meters     int    `json:"meters"`
	Replaced   int64  `json:"replaced"`
}
