package refill

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

type Handler struct {
	d      *Dispatcher
	logger *zap.SugaredLogger
}

func NewHandler(d *Dispatcher, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{d: d, logger: logger}
}

// Request serves POST /refill. The status reflects the outcome: 200 when
// both mails went out, 207 when only the operations alert did, 502 when
// nothing was sent.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	ev, err := h.d.Request(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	switch ev.Outcome {
	case OutcomePartial:
		status = http.StatusMultiStatus
	case OutcomeFailed:
		status = http.StatusBadGateway
	}
	utilities.WriteJSON(w, status, ev)
}
