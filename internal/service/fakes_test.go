package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/septivank/rental-billing-worker/internal/db"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/meter"
	"github.com/septivank/rental-billing-worker/internal/mq"
	"github.com/septivank/rental-billing-worker/internal/reading"
	"github.com/septivank/rental-billing-worker/internal/repository"
	"github.com/shopspring/decimal"
)

// memoryStore is an in-memory stand-in for the repository. Transactions are
// simulated by staging writes and applying them only when fn succeeds; they
// run one at a time, like submissions holding the same period lock.
type memoryStore struct {
	txMu       sync.Mutex
	mu         sync.Mutex
	meters     map[uuid.UUID]meter.Meter
	readings   []reading.Reading
	apartments map[uuid.UUID]db.ApartmentRow
	tenancies  map[uuid.UUID]db.TenancyRow
	history    []decimal.Decimal
	failInsert error
	staged     []func()
	locks      []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		meters:     map[uuid.UUID]meter.Meter{},
		apartments: map[uuid.UUID]db.ApartmentRow{},
		tenancies:  map[uuid.UUID]db.TenancyRow{},
	}
}

func (s *memoryStore) addMeter(m meter.Meter) meter.Meter {
	s.meters[m.ID] = m
	return m
}

func (s *memoryStore) GetMeter(_ context.Context, id uuid.UUID) (meter.Meter, error) {
	m, ok := s.meters[id]
	if !ok {
		return meter.Meter{}, ierr.NewError("meter not found").WithHint("Meter does not exist").Mark(ierr.ErrNotFound)
	}
	return m, nil
}

func (s *memoryStore) latest(meterID, apartmentID uuid.UUID, period string, approvedOnly bool) *reading.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []reading.Reading
	for _, r := range s.readings {
		if r.MeterID == meterID && r.ApartmentID == apartmentID && r.Period == period {
			if approvedOnly && r.Status != reading.StatusApproved {
				continue
			}
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Date.Before(candidates[j].Date) })
	out := candidates[len(candidates)-1]
	return &out
}

func (s *memoryStore) LockReadingPeriodTx(_ context.Context, _ repository.Tx, meterID, apartmentID uuid.UUID, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, meterID.String()+"/"+apartmentID.String()+"/"+period)
	return nil
}

func (s *memoryStore) LatestReadingTx(_ context.Context, _ repository.Tx, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error) {
	return s.latest(meterID, apartmentID, period, false), nil
}

func (s *memoryStore) storedReadings() []reading.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reading.Reading(nil), s.readings...)
}

func (s *memoryStore) LatestApprovedReading(_ context.Context, meterID, apartmentID uuid.UUID, period string) (*reading.Reading, error) {
	return s.latest(meterID, apartmentID, period, true), nil
}

func (s *memoryStore) RecentConsumptions(context.Context, uuid.UUID, uuid.UUID, int) ([]decimal.Decimal, error) {
	return s.history, nil
}

func (s *memoryStore) RunInTx(_ context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.staged = nil
	if err := fn(nil); err != nil {
		s.staged = nil
		return err
	}
	s.mu.Lock()
	for _, apply := range s.staged {
		apply()
	}
	s.mu.Unlock()
	s.staged = nil
	return nil
}

func (s *memoryStore) InsertReadingTx(_ context.Context, _ repository.Tx, rd *reading.Reading) error {
	if s.failInsert != nil {
		return s.failInsert
	}
	rd.ID = uuid.New()
	stored := *rd
	s.staged = append(s.staged, func() { s.readings = append(s.readings, stored) })
	return nil
}

func (s *memoryStore) GetReadingForUpdateTx(_ context.Context, _ repository.Tx, id uuid.UUID) (reading.Reading, error) {
	for _, r := range s.readings {
		if r.ID == id {
			return r, nil
		}
	}
	return reading.Reading{}, ierr.NewError("reading not found").Mark(ierr.ErrNotFound)
}

func (s *memoryStore) UpdateReadingStatusTx(_ context.Context, _ repository.Tx, id uuid.UUID, status reading.ApprovalStatus, _ string) error {
	s.staged = append(s.staged, func() {
		for i := range s.readings {
			if s.readings[i].ID == id {
				s.readings[i].Status = status
			}
		}
	})
	return nil
}

func (s *memoryStore) GetApartment(_ context.Context, id uuid.UUID) (db.ApartmentRow, error) {
	a, ok := s.apartments[id]
	if !ok {
		return db.ApartmentRow{}, ierr.NewError("apartment not found").Mark(ierr.ErrNotFound)
	}
	return a, nil
}

func (s *memoryStore) ListAddressMeters(_ context.Context, addressID uuid.UUID) ([]meter.Meter, error) {
	var out []meter.Meter
	for _, m := range s.sortedMeters() {
		if m.AddressID == addressID && m.ApartmentID == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) ListApartmentMeters(_ context.Context, apartmentID uuid.UUID) ([]meter.Meter, error) {
	var out []meter.Meter
	for _, m := range s.sortedMeters() {
		if m.ApartmentID != nil && *m.ApartmentID == apartmentID && m.IsCustom {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) ListApartmentIDs(_ context.Context, addressID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, a := range s.apartments {
		if a.AddressID == addressID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *memoryStore) ReplaceDerivedMetersTx(_ context.Context, _ repository.Tx, addressID uuid.UUID, meters []meter.Meter) (int64, error) {
	var removed int64
	for id, m := range s.meters {
		if m.AddressID == addressID && m.ApartmentID != nil && !m.IsCustom {
			removed++
			id := id
			s.staged = append(s.staged, func() { delete(s.meters, id) })
		}
	}
	for _, m := range meters {
		m := m
		s.staged = append(s.staged, func() { s.meters[m.ID] = m })
	}
	return removed, nil
}

func (s *memoryStore) GetTenancy(_ context.Context, apartmentID uuid.UUID) (db.TenancyRow, error) {
	t, ok := s.tenancies[apartmentID]
	if !ok {
		return db.TenancyRow{}, ierr.NewError("apartment not found").Mark(ierr.ErrNotFound)
	}
	return t, nil
}

func (s *memoryStore) sortedMeters() []meter.Meter {
	out := make([]meter.Meter, 0, len(s.meters))
	for _, m := range s.meters {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event mq.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
