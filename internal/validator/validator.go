package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/septivank/rental-billing-worker/tools/timeparser"
	"github.com/shopspring/decimal"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid       bool
	AnomalyReason string
}

// SubmissionPayload is a reading entered by a landlord or a tenant.
// Values travel as strings so they reach decimal without float rounding.
type SubmissionPayload struct {
	MeterID       string `json:"meter_id" validate:"required,uuid"`
	ApartmentID   string `json:"apartment_id,omitempty" validate:"omitempty,uuid"`
	CurrentValue  string `json:"current_value" validate:"required,numeric"`
	PreviousValue string `json:"previous_value,omitempty" validate:"omitempty,numeric"`
	SubmittedBy   string `json:"submitted_by" validate:"required,oneof=landlord tenant"`
	PhotoURL      string `json:"photo_url,omitempty" validate:"omitempty,url"`
	Date          string `json:"date" validate:"required"`
}

// ReviewPayload is a landlord decision on a pending reading.
type ReviewPayload struct {
	ReadingID string `json:"reading_id" validate:"required,uuid"`
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
	Reason    string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// MeterUpdatedPayload announces a change of the address-level meters.
type MeterUpdatedPayload struct {
	AddressID string `json:"address_id" validate:"required,uuid"`
}

// Validator handles payload validation with configurable parameters
type Validator struct {
	validate                  *validator.Validate
	timestampToleranceMinutes int
}

// NewValidator creates a new validator with the specified tolerance
func NewValidator(timestampToleranceMinutes int) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate:                  v,
		timestampToleranceMinutes: timestampToleranceMinutes,
	}
}

// ValidateRequest runs the struct tags of req and returns an error marked
// ErrValidation listing every failing field.
func (v *Validator) ValidateRequest(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !ierr.As(err, &fieldErrs) {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}

	fields := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		if fe.Param() != "" {
			return fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
	})
	return ierr.NewError("invalid fields: " + strings.Join(fields, ", ")).
		WithHintf("Check %s", strings.Join(lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string { return fe.Field() }), ", ")).
		Mark(ierr.ErrValidation)
}

// ValidateSubmission checks a submission payload and converts it into a
// reading submission. A missing previous value means zero.
func (v *Validator) ValidateSubmission(p SubmissionPayload, receivedAt time.Time) (reading.Submission, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if err := v.ValidateRequest(p); err != nil {
		result.IsValid = false
		result.AnomalyReason = err.Error()
		return reading.Submission{}, result
	}

	current, err := decimal.NewFromString(p.CurrentValue)
	if err != nil {
		result.IsValid = false
		result.AnomalyReason = fmt.Sprintf("invalid current value: %v", err)
		return reading.Submission{}, result
	}

	previous := decimal.Zero
	if p.PreviousValue != "" {
		previous, err = decimal.NewFromString(p.PreviousValue)
		if err != nil {
			result.IsValid = false
			result.AnomalyReason = fmt.Sprintf("invalid previous value: %v", err)
			return reading.Submission{}, result
		}
	}

	if current.IsNegative() || previous.IsNegative() {
		result.IsValid = false
		result.AnomalyReason = "negative value detected"
		return reading.Submission{}, result
	}

	// Parse reading date
	readingTime, err := timeparser.ParseReadingDate(p.Date)
	if err != nil {
		result.IsValid = false
		result.AnomalyReason = fmt.Sprintf("invalid date format: %v", err)
		return reading.Submission{}, result
	}

	// Validate date tolerance
	if !timeparser.IsWithinTolerance(readingTime, receivedAt, v.timestampToleranceMinutes) {
		result.IsValid = false
		result.AnomalyReason = fmt.Sprintf("reading date outside tolerance window (±%d minutes)", v.timestampToleranceMinutes)
		return reading.Submission{}, result
	}

	return reading.Submission{
		MeterID:       uuid.MustParse(p.MeterID),
		ApartmentID:   optionalUUID(p.ApartmentID),
		CurrentValue:  current,
		PreviousValue: previous,
		SubmittedBy:   reading.Submitter(p.SubmittedBy),
		PhotoURL:      p.PhotoURL,
		Date:          readingTime,
	}, result
}

// optionalUUID parses an already validated id; empty means uuid.Nil.
func optionalUUID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	return uuid.MustParse(raw)
}

// ValidateReview checks a review payload.
func (v *Validator) ValidateReview(p ReviewPayload) (uuid.UUID, reading.Decision, error) {
	if err := v.ValidateRequest(p); err != nil {
		return uuid.Nil, "", err
	}
	return uuid.MustParse(p.ReadingID), reading.Decision(p.Decision), nil
}

// ValidateMeterUpdated checks a meter update payload.
func (v *Validator) ValidateMeterUpdated(p MeterUpdatedPayload) (uuid.UUID, error) {
	if err := v.ValidateRequest(p); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(p.AddressID), nil
}
