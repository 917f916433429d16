// internal/rentals/handler.go
package rentals

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"videostore/internal/httpx"
)

type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// rentalRequest keeps the raw ids so that an absent id and an id of the
// wrong type are reported differently.
type rentalRequest struct {
	CustomerID json.RawMessage `json:"customer_id"`
	VideoID    json.RawMessage `json:"video_id"`
}

func (h *Handler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	customerID, videoID, ok := h.decode(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.CheckOut(r.Context(), customerID, videoID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	customerID, videoID, ok := h.decode(w, r)
	if !ok {
		return
	}

	summary, err := h.service.CheckIn(r.Context(), customerID, videoID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleCustomerRentals(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.CustomerRentals(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []CustomerRental{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleVideoRenters(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.VideoRenters(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []VideoRenter{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.service.RentalEvents(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}

// HandleAudit answers 503 while any invariant is violated so that health
// checkers can alert on it.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.service.Audit(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if !audit.Consistent() {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, audit)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	var req rentalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return 0, 0, false
	}
	customerID, err := httpx.IntField(req.CustomerID, "customer_id")
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return 0, 0, false
	}
	videoID, err := httpx.IntField(req.VideoID, "video_id")
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return 0, 0, false
	}
	return customerID, videoID, true
}
