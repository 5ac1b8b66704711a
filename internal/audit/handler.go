package audit

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

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

// List serves GET /history?limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpListHistory, nil); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utilities.WriteError(w, h.logger, apperr.Wrap(apperr.ErrValidation, "limit must be a number"))
			return
		}
		limit = n
	}
	list, err := h.svc.List(r.Context(), actor, limit)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []entity.Record{}
	}
	utilities.WriteJSON(w, http.StatusOK, list)
}
