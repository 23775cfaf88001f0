package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/anomaly"
	"github.com/septivank/rental-billing-worker/internal/config"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/logging"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/septivank/rental-billing-worker/internal/repository"
	"github.com/septivank/rental-billing-worker/internal/validator"
	"go.uber.org/zap"
)

// ReadingService handles the intake messages of the reading lifecycle
type ReadingService struct {
	store     ReadingStore
	publisher EventPublisher
	detector  *anomaly.Detector
	validator *validator.Validator
	meterSync *MeterSyncService
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewReadingService creates a new reading service
func NewReadingService(
	store ReadingStore,
	publisher EventPublisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	meterSync *MeterSyncService,
	cfg *config.Config,
	logger *zap.Logger,
) *ReadingService {
	return &ReadingService{
		store:     store,
		publisher: publisher,
		detector:  detector,
		validator: validator,
		meterSync: meterSync,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessMessage dispatches one intake message on its type. Submissions
// refused by validation or the lifecycle rules are acknowledged and
// announced as submission_rejected events; malformed messages and storage
// failures return an error so the message is dead-lettered.
func (s *ReadingService) ProcessMessage(ctx context.Context, msg mq.Message) error {
	var env mq.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if env.Type == "" {
		env.Type = msg.RoutingKey
	}
	if env.RequestID == "" {
		env.RequestID = msg.ID
	}
	if env.ReceivedAt.IsZero() {
		env.ReceivedAt = s.now()
	}

	reqLogger := logging.WithRequestID(s.logger, env.RequestID)
	reqLogger.Info("processing message", zap.String("type", env.Type))

	switch env.Type {
	case mq.TypeReadingSubmitted:
		return s.handleSubmission(ctx, env, reqLogger)
	case mq.TypeReadingReviewed:
		return s.handleReview(ctx, env, reqLogger)
	case mq.TypeMeterUpdated:
		return s.handleMeterUpdated(ctx, env, reqLogger)
	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
}

func (s *ReadingService) handleSubmission(ctx context.Context, env mq.Envelope, logger *zap.Logger) error {
	var payload validator.SubmissionPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal submission: %w", err)
	}

	sub, result := s.validator.ValidateSubmission(payload, env.ReceivedAt)
	if !result.IsValid {
		return s.rejectSubmission(ctx, env, payload.MeterID, payload.ApartmentID, result.AnomalyReason, "", logger)
	}

	logger = logging.WithMeterID(logger, sub.MeterID, sub.ApartmentID)

	m, err := s.store.GetMeter(ctx, sub.MeterID)
	if ierr.Is(err, ierr.ErrNotFound) {
		return s.rejectSubmission(ctx, env, payload.MeterID, payload.ApartmentID, err.Error(), ierr.Hint(err), logger)
	}
	if err != nil {
		return fmt.Errorf("failed to load meter: %w", err)
	}

	// Heating split by area or apartment is read once for the building.
	m = s.meterSync.registry.Normalize(m)

	rd, err := reading.Submit(m, sub)
	if err != nil {
		return s.rejectSubmission(ctx, env, payload.MeterID, payload.ApartmentID, err.Error(), ierr.Hint(err), logger)
	}

	// Anomaly flags are advisory; a failed history lookup never blocks intake.
	history, err := s.store.RecentConsumptions(ctx, rd.MeterID, rd.ApartmentID, s.cfg.Anomaly.HistorySize)
	if err != nil {
		logger.Warn("failed to get consumption history for anomaly detection", zap.Error(err))
	} else if reason := s.detector.Check(rd.CurrentValue, rd.PreviousValue, history); reason != "" {
		rd.ReviewFlag = reason
		logger.Info("reading flagged for review", zap.String("reason", reason))
	}

	// The period status is read under the period lock so two submissions
	// for the same slot cannot both pass the check.
	var refused error
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := s.store.LockReadingPeriodTx(ctx, tx, rd.MeterID, rd.ApartmentID, rd.Period); err != nil {
			return err
		}
		latest, err := s.store.LatestReadingTx(ctx, tx, rd.MeterID, rd.ApartmentID, rd.Period)
		if err != nil {
			return fmt.Errorf("failed to load period status: %w", err)
		}
		var periodReadings []reading.Reading
		if latest != nil {
			periodReadings = append(periodReadings, *latest)
		}
		if refused = reading.CanSubmit(reading.StatusFor(rd.Period, periodReadings), rd.SubmittedBy); refused != nil {
			return nil
		}
		return s.store.InsertReadingTx(ctx, tx, &rd)
	})
	if err != nil {
		logger.Error("failed to store reading", zap.Error(err))
		return fmt.Errorf("failed to store reading: %w", err)
	}
	if refused != nil {
		return s.rejectSubmission(ctx, env, payload.MeterID, payload.ApartmentID, refused.Error(), ierr.Hint(refused), logger)
	}

	// Publish events after successful commit
	eventType := mq.EventReadingApproved
	if rd.Status == reading.StatusPendingApproval {
		eventType = mq.EventReadingPending
	}
	s.publish(ctx, mq.NewEvent(eventType, env.RequestID, readingEvent(rd, "")), logger)
	if rd.ReviewFlag != "" {
		s.publish(ctx, mq.NewEvent(mq.EventReadingFlagged, env.RequestID, readingEvent(rd, "")), logger)
	}

	logger.Info("reading stored",
		zap.String("reading_id", rd.ID.String()),
		zap.String("status", string(rd.Status)),
		zap.String("period", rd.Period),
	)
	return nil
}

func (s *ReadingService) rejectSubmission(ctx context.Context, env mq.Envelope, meterID, apartmentID, reason, hint string, logger *zap.Logger) error {
	logger.Info("submission rejected", zap.String("reason", reason))
	s.publish(ctx, mq.NewEvent(mq.EventReadingSubmissionRejected, env.RequestID, mq.SubmissionRejectedEvent{
		MeterID:     meterID,
		ApartmentID: apartmentID,
		Reason:      reason,
		Hint:        hint,
	}), logger)
	return nil
}

func (s *ReadingService) handleReview(ctx context.Context, env mq.Envelope, logger *zap.Logger) error {
	var payload validator.ReviewPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal review: %w", err)
	}

	id, decision, err := s.validator.ValidateReview(payload)
	if err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}

	var reviewed reading.Reading
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		current, err := s.store.GetReadingForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		reviewed, err = reading.Review(current, decision)
		if err != nil {
			return err
		}
		return s.store.UpdateReadingStatusTx(ctx, tx, id, reviewed.Status, payload.Reason)
	})

	// Redelivered or stale reviews are acknowledged without effect.
	if ierr.Is(err, ierr.ErrInvalidTransition) || ierr.Is(err, ierr.ErrNotFound) {
		logger.Warn("review ignored", zap.String("reading_id", id.String()), zap.Error(err))
		return nil
	}
	if err != nil {
		logger.Error("failed to store review", zap.Error(err))
		return fmt.Errorf("failed to store review: %w", err)
	}

	eventType := mq.EventReadingApproved
	if reviewed.Status == reading.StatusRejected {
		eventType = mq.EventReadingRejected
	}
	s.publish(ctx, mq.NewEvent(eventType, env.RequestID, readingEvent(reviewed, payload.Reason)), logger)

	logger.Info("review stored",
		zap.String("reading_id", id.String()),
		zap.String("status", string(reviewed.Status)),
	)
	return nil
}

func (s *ReadingService) handleMeterUpdated(ctx context.Context, env mq.Envelope, logger *zap.Logger) error {
	var payload validator.MeterUpdatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal meter update: %w", err)
	}

	addressID, err := s.validator.ValidateMeterUpdated(payload)
	if err != nil {
		return fmt.Errorf("invalid meter update: %w", err)
	}

	if _, err := s.meterSync.SyncAddress(ctx, addressID, env.RequestID); err != nil {
		logger.Error("failed to sync meters", zap.String("address_id", addressID.String()), zap.Error(err))
		return err
	}
	return nil
}

// publish logs but does not fail on publish errors; the state change is
// already committed.
func (s *ReadingService) publish(ctx context.Context, event mq.Event, logger *zap.Logger) {
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("type", event.Type),
		)
	}
}

func readingEvent(rd reading.Reading, reason string) mq.ReadingEvent {
	return mq.ReadingEvent{
		ReadingID:   idString(rd.ID),
		MeterID:     rd.MeterID.String(),
		ApartmentID: idString(rd.ApartmentID),
		Period:      rd.Period,
		Status:      string(rd.Status),
		SubmittedBy: string(rd.SubmittedBy),
		Consumption: rd.Consumption().String(),
		ReviewFlag:  rd.ReviewFlag,
		Reason:      reason,
	}
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
