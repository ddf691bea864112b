package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	mongoadapter "github.com/tablewise/seatcore/internal/adapters/mongo"
	"github.com/tablewise/seatcore/internal/adapters/postgres"
	redisadapter "github.com/tablewise/seatcore/internal/adapters/redis"
	"github.com/tablewise/seatcore/internal/admin"
	"github.com/tablewise/seatcore/internal/booking"
	"github.com/tablewise/seatcore/internal/config"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/hold"
	"github.com/tablewise/seatcore/internal/idempotency"
	"github.com/tablewise/seatcore/internal/observability"
	"github.com/tablewise/seatcore/internal/reservation"
)

type Handlers struct {
	cfg         *config.Config
	logger      observability.Logger
	coordinator *reservation.Coordinator
	holds       *hold.Service
	finalizer   *booking.Finalizer
	admin       *admin.Service
	store       *postgres.Store
	cache       *redisadapter.Cache
	floorplans  *mongoadapter.FloorPlanRepository
	idemp       *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, logger observability.Logger, coordinator *reservation.Coordinator, holds *hold.Service, finalizer *booking.Finalizer, adminSvc *admin.Service, store *postgres.Store, cache *redisadapter.Cache, floorplans *mongoadapter.FloorPlanRepository, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:         cfg,
		logger:      logger,
		coordinator: coordinator,
		holds:       holds,
		finalizer:   finalizer,
		admin:       adminSvc,
		store:       store,
		cache:       cache,
		floorplans:  floorplans,
		idemp:       idemp,
	}
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.replay(w, r, key) {
		return
	}

	var req struct {
		TableID      uuid.UUID `json:"table_id"`
		SeatNumbers  []int     `json:"seat_numbers"`
		OwnerSession string    `json:"owner_session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	created, err := h.coordinator.Reserve(r.Context(), req.TableID, req.SeatNumbers, req.OwnerSession)
	if err != nil {
		writeError(w, err)
		return
	}

	h.store2xx(r, key, http.StatusCreated, w, map[string]interface{}{
		"hold_id":    created.ID,
		"expires_at": created.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handlers) CommitHold(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.replay(w, r, key) {
		return
	}

	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		OwnerSession string `json:"owner_session"`
		GuestName    string `json:"guest_name"`
		GuestCount   int    `json:"guest_count"`
		Notes        string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	booked, err := h.finalizer.Commit(r.Context(), holdID, req.OwnerSession, domain.BookingDetails{
		GuestName:  req.GuestName,
		GuestCount: req.GuestCount,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.store2xx(r, key, http.StatusCreated, w, map[string]interface{}{
		"booking_id": booked.ID,
	})
}

func (h *Handlers) ExtendHold(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		OwnerSession string `json:"owner_session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	extended, err := h.holds.Extend(r.Context(), holdID, req.OwnerSession)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"hold_id":    extended.ID,
		"expires_at": extended.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handlers) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		OwnerSession string `json:"owner_session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.OwnerSession = r.URL.Query().Get("owner_session")
	}

	if err := h.holds.Release(r.Context(), holdID, req.OwnerSession); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHold is the client timer's authoritative check. The server answer wins
// over any client-side countdown.
func (h *Handlers) GetHold(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	state, err := h.holds.Validate(r.Context(), holdID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"hold_id":      holdID,
		"status":       state.Status,
		"table_id":     state.TableID,
		"seat_numbers": state.SeatNumbers,
		"expires_at":   state.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handlers) TableSeats(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	views, cached, err := h.cache.GetSnapshot(r.Context(), tableID)
	if err != nil {
		h.reqLogger(r).Warn("snapshot cache read failed", err)
	}
	if !cached {
		views, err = h.store.Snapshot(r.Context(), tableID)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.cache.SetSnapshot(r.Context(), tableID, views); err != nil {
			h.reqLogger(r).Warn("snapshot cache write failed", err)
		}
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"table_id": tableID,
		"seats":    views,
	})
}

func (h *Handlers) FloorPlan(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	doc, err := h.floorplans.GetTable(r.Context(), tableID)
	if err != nil {
		if err == mongodriver.ErrNoDocuments {
			writeError(w, domain.ErrNotFound)
			return
		}
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, doc)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	b, err := h.finalizer.Get(r.Context(), bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"booking_id":   b.ID,
		"table_id":     b.TableID,
		"status":       b.Status,
		"seat_numbers": b.SeatNumbers,
		"guest_name":   b.GuestName,
		"guest_count":  b.GuestCount,
		"notes":        b.Notes,
		"created_at":   b.CreatedAt.Format(time.RFC3339),
	})
}

// CreateTable provisions a table with free seats and stores its floor plan
// geometry for the seat map view.
func (h *Handlers) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Venue    string                 `json:"venue"`
		Name     string                 `json:"name"`
		Capacity int                    `json:"capacity"`
		Seats    []mongoadapter.SeatDoc `json:"seats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if req.Name == "" || req.Capacity < 1 {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	table := domain.Table{ID: uuid.New(), Venue: req.Venue, Name: req.Name, Capacity: req.Capacity}
	if err := h.store.ProvisionTable(r.Context(), table); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Seats) > 0 {
		doc := mongoadapter.TableDoc{
			ID:       table.ID,
			Venue:    req.Venue,
			Name:     req.Name,
			Capacity: req.Capacity,
			Seats:    req.Seats,
		}
		if err := h.floorplans.UpsertTable(r.Context(), doc); err != nil {
			h.reqLogger(r).Warn("floor plan upsert failed", err)
		}
	}

	respond(w, http.StatusCreated, map[string]interface{}{
		"table_id": table.ID,
	})
}

func (h *Handlers) SeatConflict(w http.ResponseWriter, r *http.Request) {
	seatID, err := uuid.Parse(chi.URLParam(r, "seatID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	conflict, err := h.admin.CheckConflict(r.Context(), seatID)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]interface{}{
		"seat_id":     conflict.SeatID,
		"seat_number": conflict.SeatNumber,
		"status":      conflict.Status,
	}
	if conflict.HoldID != nil {
		body["hold_id"] = conflict.HoldID
		body["expires_at"] = conflict.ExpiresAt.Format(time.RFC3339)
	}
	if conflict.BookingID != nil {
		body["booking_id"] = conflict.BookingID
	}
	respond(w, http.StatusOK, body)
}

func (h *Handlers) OverrideSeat(w http.ResponseWriter, r *http.Request) {
	seatID, err := uuid.Parse(chi.URLParam(r, "seatID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		ExpectedHoldID uuid.UUID `json:"expected_hold_id"`
		Actor          string    `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	if err := h.admin.OverrideSeat(r.Context(), req.Actor, seatID, req.ExpectedHoldID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	if err := h.admin.CancelBooking(r.Context(), req.Actor, bookingID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// reqLogger returns the request-scoped logger installed by LoggerMiddleware,
// falling back to the service logger.
func (h *Handlers) reqLogger(r *http.Request) observability.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(observability.Logger); ok {
		return l
	}
	return h.logger
}

// replay serves a stored response for a repeated Idempotency-Key.
func (h *Handlers) replay(w http.ResponseWriter, r *http.Request, key string) bool {
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		h.reqLogger(r).Warn("idempotency lookup failed", err)
		return false
	}
	if existing == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(existing.Status)
	w.Write(existing.Result)
	return true
}

func (h *Handlers) store2xx(r *http.Request, key string, status int, w http.ResponseWriter, body map[string]interface{}) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data}); err != nil {
		h.reqLogger(r).Warn("idempotency store failed", err)
	}
}
