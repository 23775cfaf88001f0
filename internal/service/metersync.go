package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/repository"
	"go.uber.org/zap"
)

// SyncResult summarizes one derived-meter synchronization
type SyncResult struct {
	AddressID  uuid.UUID `json:"address_id"`
	Apartments int       `json:"apartments"`
	Meters     int       `json:"meters"`
	Replaced   int64     `json:"replaced"`
}

// MeterSyncService propagates address meter definitions to the apartments
// of the address
type MeterSyncService struct {
	store     MeterStore
	registry  *meter.Registry
	publisher EventPublisher
	logger    *zap.Logger
}

// NewMeterSyncService creates a new meter sync service
func NewMeterSyncService(store MeterStore, registry *meter.Registry, publisher EventPublisher, logger *zap.Logger) *MeterSyncService {
	return &MeterSyncService{
		store:     store,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// SyncAddress replaces every non-custom apartment meter of the address with
// a fresh mirror of the address meters, in one transaction. Running it again
// with unchanged definitions produces the same rows. An address without
// meters or apartments syncs to an empty result.
func (s *MeterSyncService) SyncAddress(ctx context.Context, addressID uuid.UUID, requestID string) (SyncResult, error) {
	logger := s.logger.With(zap.String("address_id", addressID.String()))

	addressMeters, err := s.store.ListAddressMeters(ctx, addressID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to list address meters: %w", err)
	}
	for _, m := range addressMeters {
		if err := m.Validate(); err != nil {
			return SyncResult{}, err
		}
	}

	apartmentIDs, err := s.store.ListApartmentIDs(ctx, addressID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to list apartments: %w", err)
	}

	derived := s.registry.Derive(addressMeters, apartmentIDs)

	var replaced int64
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		replaced, err = s.store.ReplaceDerivedMetersTx(ctx, tx, addressID, derived)
		return err
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to replace derived meters: %w", err)
	}

	result := SyncResult{
		AddressID:  addressID,
		Apartments: len(apartmentIDs),
		Meters:     len(derived),
		Replaced:   replaced,
	}

	event := mq.NewEvent(mq.EventMetersSynced, requestID, mq.MetersSyncedEvent{
		AddressID:  addressID.String(),
		Apartments: result.Apartments,
		Meters:     result.Meters,
		Replaced:   result.Replaced,
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		logger.Error("failed to publish event", zap.Error(err), zap.String("type", event.Type))
	}

	logger.Info("derived meters synchronized",
		zap.Int("apartments", result.Apartments),
		zap.Int("meters", result.Meters),
		zap.Int64("replaced", result.Replaced),
	)
	return result, nil
}
