package main

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSubmission_PassesValidation(t *testing.T) {
	meterID, aptID := uuid.NewString(), uuid.NewString()

	env, err := sampleSubmission(2, meterID, aptID, "tenant", 1000)
	require.NoError(t, err)
	assert.Equal(t, mq.TypeReadingSubmitted, env.Type)

	var p validator.SubmissionPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "1025.00", p.PreviousValue)
	assert.Equal(t, "1037.50", p.CurrentValue)

	v := validator.NewValidator(10080)
	require.NoError(t, v.ValidateRequest(p))
	_, res := v.ValidateSubmission(p, env.ReceivedAt)
	assert.True(t, res.IsValid, res.AnomalyReason)
}
