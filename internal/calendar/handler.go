package calendar

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
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

// Feed serves GET /calendar?year=&month= or ?from=&to=.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	if err := h.svc.gate.Admit(r.Context(), actor, gate.OpReadCalendar, nil); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	win, err := ParseWindow(r.URL.Query(), h.svc.now())
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	entries, err := h.svc.Feed(r.Context(), actor, win)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, entries)
}
