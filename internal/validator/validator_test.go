package validator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestampToleranceMinutes = 10080

var receivedAt = time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

func validPayload() SubmissionPayload {
	return SubmissionPayload{
		MeterID:       uuid.NewString(),
		ApartmentID:   uuid.NewString(),
		CurrentValue:  "1245.5",
		PreviousValue: "1200",
		SubmittedBy:   "tenant",
		PhotoURL:      "https://photos.example.com/meter/1.jpg",
		Date:          "29.12.2025",
	}
}

func TestValidateSubmission_ValidData(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	p := validPayload()

	sub, result := v.ValidateSubmission(p, receivedAt)

	require.True(t, result.IsValid, result.AnomalyReason)
	assert.Equal(t, "1245.5", sub.CurrentValue.String())
	assert.Equal(t, "1200", sub.PreviousValue.String())
	assert.Equal(t, reading.ByTenant, sub.SubmittedBy)
	assert.Equal(t, p.MeterID, sub.MeterID.String())
	assert.True(t, sub.Date.Equal(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)))
}

func TestValidateSubmission_ApartmentOptional(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	p := validPayload()
	p.ApartmentID = ""

	sub, result := v.ValidateSubmission(p, receivedAt)

	require.True(t, result.IsValid, result.AnomalyReason)
	assert.Equal(t, uuid.Nil, sub.ApartmentID)

	p.ApartmentID = "flat-3"
	_, result = v.ValidateSubmission(p, receivedAt)
	assert.False(t, result.IsValid)
}

func TestValidateSubmission_MissingPreviousIsZero(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	p := validPayload()
	p.PreviousValue = ""

	sub, result := v.ValidateSubmission(p, receivedAt)

	require.True(t, result.IsValid, result.AnomalyReason)
	assert.True(t, sub.PreviousValue.IsZero())
}

func TestValidateSubmission_NegativeValue(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	p := validPayload()
	p.CurrentValue = "-10.5"

	_, result := v.ValidateSubmission(p, receivedAt)

	assert.False(t, result.IsValid)
	assert.Equal(t, "negative value detected", result.AnomalyReason)
}

func TestValidateSubmission_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *SubmissionPayload)
		field  string
	}{
		{"bad meter id", func(p *SubmissionPayload) { p.MeterID = "meter-1" }, "meter_id"},
		{"non numeric value", func(p *SubmissionPayload) { p.CurrentValue = "not-a-number" }, "current_value"},
		{"unknown submitter", func(p *SubmissionPayload) { p.SubmittedBy = "janitor" }, "submitted_by"},
		{"bad photo url", func(p *SubmissionPayload) { p.PhotoURL = "not a url" }, "photo_url"},
		{"missing date", func(p *SubmissionPayload) { p.Date = "" }, "date"},
	}

	v := NewValidator(testTimestampToleranceMinutes)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)

			_, result := v.ValidateSubmission(p, receivedAt)

			assert.False(t, result.IsValid)
			assert.Contains(t, result.AnomalyReason, tt.field)
		})
	}
}

func TestValidateSubmission_InvalidDate(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	p := validPayload()
	p.Date = "last tuesday"

	_, result := v.ValidateSubmission(p, receivedAt)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.AnomalyReason, "invalid date format")
}

func TestValidateSubmission_OutsideTolerance(t *testing.T) {
	v := NewValidator(5)
	p := validPayload()
	p.Date = "29/12/2025 10:00:00"

	// Received 32 minutes later (outside ±5 minute tolerance)
	_, result := v.ValidateSubmission(p, receivedAt)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.AnomalyReason, "outside tolerance")
}

func TestValidateReview(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)
	id := uuid.New()

	gotID, decision, err := v.ValidateReview(ReviewPayload{ReadingID: id.String(), Decision: "reject", Reason: "blurry photo"})
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, reading.Reject, decision)

	_, _, err = v.ValidateReview(ReviewPayload{ReadingID: id.String(), Decision: "maybe"})
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrValidation))
	assert.Contains(t, ierr.Hint(err), "decision")
}

func TestValidateMeterUpdated(t *testing.T) {
	v := NewValidator(testTimestampToleranceMinutes)

	_, err := v.ValidateMeterUpdated(MeterUpdatedPayload{})
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrValidation))

	id := uuid.New()
	got, err := v.ValidateMeterUpdated(MeterUpdatedPayload{AddressID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
