// internal/customers/handler.go
package customers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"videostore/internal/httpx"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(service Service, validate *validator.Validate, log *zap.Logger) *Handler {
	return &Handler{service: service, validate: validate, log: log}
}

type customerRequest struct {
	Name       string `json:"name" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := ListOptions{SortByName: q.Get("sort") == "name"}
	if n, err := strconv.Atoi(q.Get("n")); err == nil && n > 0 {
		opts.PageSize = n
		opts.Page = 1
		if p, err := strconv.Atoi(q.Get("p")); err == nil && p > 0 {
			opts.Page = p
		}
	}

	list, err := h.service.ListCustomers(r.Context(), opts)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*Customer{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	customer, err := h.service.RegisterCustomer(r.Context(), req.Name, req.PostalCode, req.Phone)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, customer)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.service.GetCustomer(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	customer, err := h.service.UpdateCustomer(r.Context(), id, req.Name, req.PostalCode, req.Phone)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := h.service.DeleteCustomer(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"id":      customer.ID,
		"details": fmt.Sprintf("Customer %d %q successfully deleted", customer.ID, customer.Name),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (customerRequest, bool) {
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteDetails(w, http.StatusBadRequest, "Invalid data")
		return req, false
	}
	return req, true
}
