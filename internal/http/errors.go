package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tablewise/seatcore/internal/domain"
)

type errorBody struct {
	Error            string `json:"error"`
	UnavailableSeats []int  `json:"unavailable_seats,omitempty"`
	BookingID        string `json:"booking_id,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP statuses. Seat
// contention and expiry are frequent, expected outcomes; owner mismatch is a
// hard failure with no retry guidance.
func writeError(w http.ResponseWriter, err error) {
	var unavail *domain.SeatUnavailableError
	var expired *domain.HoldExpiredError
	var notOwned *domain.HoldNotOwnedError
	var committed *domain.AlreadyCommittedError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &unavail):
		respond(w, http.StatusConflict, errorBody{Error: "seat_unavailable", UnavailableSeats: unavail.SeatNumbers})
	case errors.As(err, &expired):
		respond(w, http.StatusGone, errorBody{Error: "hold_expired"})
	case errors.Is(err, domain.ErrHoldReleased):
		respond(w, http.StatusGone, errorBody{Error: "hold_released"})
	case errors.As(err, &notOwned):
		respond(w, http.StatusForbidden, errorBody{Error: "hold_not_owned"})
	case errors.As(err, &committed):
		respond(w, http.StatusConflict, errorBody{Error: "already_committed", BookingID: committed.BookingID.String()})
	case errors.As(err, &conflict):
		respond(w, http.StatusConflict, errorBody{Error: "state_changed"})
	case errors.Is(err, domain.ErrAlreadyExtended):
		respond(w, http.StatusConflict, errorBody{Error: "already_extended"})
	case errors.Is(err, domain.ErrTxConflict):
		respond(w, http.StatusConflict, errorBody{Error: "conflict_retry"})
	case errors.Is(err, domain.ErrNotFound):
		respond(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, domain.ErrInvalidInput):
		respond(w, http.StatusBadRequest, errorBody{Error: "invalid_input"})
	default:
		respond(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
