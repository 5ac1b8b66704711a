package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

// Authenticator checks credentials; a black box from the session layer's view.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*entity.Identity, error)
}

// Handler exposes login, refresh and logout.
type Handler struct {
	tokens *TokenService
	authn  Authenticator
	loader IdentityLoader
	logger *zap.SugaredLogger
}

func NewHandler(tokens *TokenService, authn Authenticator, loader IdentityLoader, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{tokens: tokens, authn: authn, loader: loader, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries an opaque refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "username", req.Username, "err", err)
		utilities.WriteError(w, h.logger, err)
		return
	}
	pair, err := h.tokens.Issue(r.Context(), u)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	h.logger.Infow("login", "username", u.Username)
	utilities.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	identityID, err := h.tokens.Consume(r.Context(), req.RefreshToken)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.loader.GetByID(r.Context(), identityID)
	if err != nil {
		utilities.WriteError(w, h.logger, ErrInvalidToken)
		return
	}
	pair, err := h.tokens.Issue(r.Context(), u)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, pair)
}

// Logout revokes the refresh token. Like RFC 7009 revocation it succeeds
// even when the token is unknown.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warnw("revoke failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
