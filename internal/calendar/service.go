package calendar

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	shiftrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/repo"
)

// ShiftSource is the read side of the shift store.
type ShiftSource interface {
	List(ctx context.Context, f shiftrepo.Filter) ([]entity.Shift, error)
	OwnerHandles(ctx context.Context, ownerID string) ([]string, error)
}

// Entry is one calendar event, shaped for calendar widgets.
type Entry struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	AllDay          bool   `json:"allDay"`
	BackgroundColor string `json:"backgroundColor"`
	BorderColor     string `json:"borderColor"`
	TextColor       string `json:"textColor"`
	Description     string `json:"description"`
	Username        string `json:"username"`
}

// Service builds the colored calendar feed.
type Service struct {
	shifts ShiftSource
	gate   *gate.Gate
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(src ShiftSource, g *gate.Gate, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{shifts: src, gate: g, logger: logger, now: time.Now}
}

// Feed returns the visible shifts inside w. Colors are assigned over every
// owner the actor can see, not only those inside w, so moving the window
// never recolors anyone. A zero w means the current month.
func (s *Service) Feed(ctx context.Context, actor *identity.Identity, w Window) ([]Entry, error) {
	d, err := s.gate.Check(ctx, actor, gate.OpReadCalendar, nil)
	if err != nil {
		return nil, err
	}
	if w.IsZero() {
		now := s.now()
		w = MonthWindow(now.Year(), now.Month())
	}
	var ownerID string
	if d.Scope != gate.ScopeAll {
		ownerID = actor.ID
	}

	handles, err := s.shifts.OwnerHandles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	colors := AssignColors(handles)

	list, err := s.shifts.List(ctx, shiftrepo.Filter{OwnerID: ownerID, From: w.From, To: w.To})
	if err != nil {
		return nil, err
	}
	entity.Sort(list)

	out := make([]Entry, 0, len(list))
	for _, sh := range list {
		if !w.Contains(sh.Date) {
			continue
		}
		out = append(out, toEntry(sh, colors))
	}
	s.logger.Debugw("calendar feed", "actor", actor.Username, "from", w.From.Format(entity.DateLayout), "to", w.To.Format(entity.DateLayout), "entries", len(out))
	return out, nil
}

func toEntry(sh entity.Shift, colors map[string]string) Entry {
	handle := strings.TrimSpace(sh.OwnerUsername)
	title := handle
	if title == "" {
		title = "user_" + sh.OwnerID
	}
	color, ok := colors[handle]
	if !ok {
		color = FallbackColor
	}
	return Entry{
		ID:              sh.ID,
		Title:           title,
		Start:           sh.Date.Format(entity.DateLayout),
		AllDay:          true,
		BackgroundColor: color,
		BorderColor:     color,
		TextColor:       color,
		Description:     sh.Description,
		Username:        handle,
	}
}
