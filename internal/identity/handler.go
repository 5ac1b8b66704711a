package identity

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for identity management.
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

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=user admin"`
}

// ChangeRoleRequest request body for role reassignment.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpRegisterIdentity, nil); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	var req RegisterRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Register(r.Context(), actor, RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		FullName:        req.FullName,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            entity.Role(req.Role),
	})
	if err != nil {
		h.logger.Debugw("register failed", "username", req.Username, "err", err)
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []entity.Identity{}
	}
	utilities.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	email := r.URL.Query().Get("email")
	if err := h.svc.Delete(r.Context(), auth.ActorFrom(r.Context()), username, email); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	username := r.PathValue("username")
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpChangeRole, &gate.Target{Username: username}); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	var req ChangeRoleRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.ChangeRole(r.Context(), actor, username, entity.Role(req.Role))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}
