// internal/videos/handler.go
package videos

import (
	"net/http"

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

type videoRequest struct {
	Title          string `json:"title" validate:"required"`
	ReleaseDate    string `json:"release_date" validate:"required"`
	TotalInventory int    `json:"total_inventory" validate:"required,gt=0"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListVideos(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*Video{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	video, err := h.service.GetVideo(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, video)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	video, err := h.service.AddVideo(r.Context(), req.Title, req.ReleaseDate, req.TotalInventory)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, video)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.service.GetVideo(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	video, err := h.service.UpdateVideo(r.Context(), id, req.Title, req.ReleaseDate, req.TotalInventory)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, video)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	video, err := h.service.DeleteVideo(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, video)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (videoRequest, bool) {
	var req videoRequest
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
