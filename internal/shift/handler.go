package shift

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for shifts.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest request body for a new shift.
type CreateRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateRequest request body for a partial update. Fields are validated by
// the service once ownership is settled.
type UpdateRequest struct {
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description *string `json:"description"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpCreateShift, nil); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	var req CreateRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	sh, err := h.svc.Create(r.Context(), actor, CreateInput(req))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, sh)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMine(r.Context(), auth.ActorFrom(r.Context()))
	h.writeList(w, list, err)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), auth.ActorFrom(r.Context()))
	h.writeList(w, list, err)
}

func (h *Handler) writeList(w http.ResponseWriter, list []entity.Shift, err error) {
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []entity.Shift{}
	}
	utilities.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	id := r.PathValue("id")
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpUpdateShift, &gate.Target{ShiftID: id}); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	var req UpdateRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	sh, err := h.svc.Update(r.Context(), actor, id, Patch(req))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, sh)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.ActorFrom(r.Context()), r.PathValue("id")); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
