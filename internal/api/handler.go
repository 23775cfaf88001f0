// Package api serves apartment statements, occupancy and meter
// synchronization over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/rental-billing-worker/internal/allocation"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/occupancy"
	"github.com/septivank/rental-billing-worker/internal/service"
	"github.com/septivank/rental-billing-worker/tools/timeparser"
	"go.uber.org/zap"
)

// CostService builds apartment statements
type CostService interface {
	ApartmentCosts(ctx context.Context, apartmentID uuid.UUID, period string) (*service.Statement, error)
}

// OccupancyService resolves apartment occupancy
type OccupancyService interface {
	Resolve(ctx context.Context, apartmentID uuid.UUID) (*service.OccupancyView, error)
	ResolveAt(ctx context.Context, apartmentID uuid.UUID, ref time.Time) (*service.OccupancyView, error)
}

// MeterSyncService propagates address meters to apartments
type MeterSyncService interface {
	SyncAddress(ctx context.Context, addressID uuid.UUID, requestID string) (service.SyncResult, error)
}

// Handler serves the HTTP endpoints
type Handler struct {
	costs     CostService
	occupancy OccupancyService
	meterSync MeterSyncService
	money     *format.Money
	logger    *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(costs CostService, occ OccupancyService, meterSync MeterSyncService, money *format.Money, logger *zap.Logger) *Handler {
	return &Handler{
		costs:     costs,
		occupancy: occ,
		meterSync: meterSync,
		money:     money,
		logger:    logger,
	}
}

type costLine struct {
	MeterID            string `json:"meter_id"`
	Name               string `json:"name"`
	Scope              string `json:"scope"`
	Unit               string `json:"unit"`
	DistributionMethod string `json:"distribution_method"`
	Consumption        string `json:"consumption,omitempty"`
	ReadingStatus      string `json:"reading_status,omitempty"`
	Amount             string `json:"amount"`
	Basis              string `json:"basis"`
	Estimate           bool   `json:"estimate"`
	Status             string `json:"status"`
	Warning            string `json:"warning,omitempty"`
}

type costsResponse struct {
	ApartmentID    string     `json:"apartment_id"`
	Period         string     `json:"period"`
	Currency       string     `json:"currency"`
	Total          string     `json:"total"`
	TotalFormatted string     `json:"total_formatted"`
	Pending        int        `json:"pending"`
	Estimated      bool       `json:"estimated"`
	Weighted       bool       `json:"weighted"`
	Warnings       []string   `json:"warnings"`
	Items          []costLine `json:"items"`
}

// GetCosts handles GET /v1/apartments/{id}/costs?period=YYYY-MM
func (h *Handler) GetCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, r, "id")
	if !ok {
		return
	}

	st, err := h.costs.ApartmentCosts(r.Context(), id, r.URL.Query().Get("period"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, costsResponse{
		ApartmentID:    st.ApartmentID.String(),
		Period:         st.Period,
		Currency:       st.Summary.Currency,
		Total:          st.Summary.Total.StringFixed(2),
		TotalFormatted: h.money.Format(st.Summary.Total),
		Pending:        st.Summary.Pending,
		Estimated:      st.Summary.Estimated,
		Weighted:       st.Weighted,
		Warnings:       lo.Ternary(st.Summary.Warnings == nil, []string{}, st.Summary.Warnings),
		Items:          lo.Map(st.Summary.Items, func(li allocation.LineItem, _ int) costLine { return toCostLine(li) }),
	})
}

func toCostLine(li allocation.LineItem) costLine {
	line := costLine{
		MeterID:            li.Meter.ID.String(),
		Name:               li.Meter.Name,
		Scope:              format.ScopeLabel(li.Meter.Scope),
		Unit:               format.UnitLabel(li.Meter.Unit),
		DistributionMethod: format.DistributionLabel(li.Meter.DistributionMethod),
		Amount:             li.Result.Amount.StringFixed(2),
		Basis:              string(li.Result.Basis),
		Estimate:           li.Result.Estimate,
		Status:             li.Status,
		Warning:            li.Result.Warning,
	}
	if li.Reading != nil {
		line.Consumption = li.Reading.Consumption().String()
		line.ReadingStatus = string(li.Reading.Status)
	}
	return line
}

type occupancyResponse struct {
	ApartmentID   string             `json:"apartment_id"`
	ReferenceDate string             `json:"reference_date"`
	State         occupancy.State    `json:"state"`
	Label         string             `json:"label"`
	Color         string             `json:"color"`
	Actions       []occupancy.Action `json:"actions"`
}

// GetOccupancy handles GET /v1/apartments/{id}/occupancy?date=YYYY-MM-DD
func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, r, "id")
	if !ok {
		return
	}

	var (
		view *service.OccupancyView
		err  error
	)
	if raw := r.URL.Query().Get("date"); raw != "" {
		ref, parseErr := timeparser.ParseReadingDate(raw)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_DATE", "invalid date: "+raw)
			return
		}
		view, err = h.occupancy.ResolveAt(r.Context(), id, ref)
	} else {
		view, err = h.occupancy.Resolve(r.Context(), id)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, occupancyResponse{
		ApartmentID:   view.ApartmentID.String(),
		ReferenceDate: view.ReferenceDate.Format("2006-01-02"),
		State:         view.Result.State,
		Label:         view.Result.Label,
		Color:         view.Result.Color,
		Actions:       view.Actions,
	})
}

// SyncMeters handles POST /v1/addresses/{id}/meters/sync
func (h *Handler) SyncMeters(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.meterSync.SyncAddress(r.Context(), id, requestID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}
