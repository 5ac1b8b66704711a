package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500

	appendTimeout = 2 * time.Second
)

// Repository is the storage used by the audit service.
type Repository interface {
	Append(ctx context.Context, rec *entity.Record) error
	ListRecent(ctx context.Context, limit int) ([]entity.Record, error)
}

// Service records actions and lists the history.
type Service struct {
	repo   Repository
	gate   *gate.Gate
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(r Repository, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, logger: logger, now: time.Now}
}

// SetGate wires the gate used to authorize history reads. The gate itself
// records through this service, hence the late binding.
func (s *Service) SetGate(g *gate.Gate) { s.gate = g }

// Record appends an action record. Failures are logged and swallowed so the
// underlying operation is never blocked.
func (s *Service) Record(ctx context.Context, actor *identity.Identity, action, outcome, detail string) {
	rec := &entity.Record{
		ID:        utilities.NewKSUID(),
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	}
	if actor != nil {
		rec.ActorID = actor.ID
		rec.ActorName = actor.Username
	}
	// detach from request cancellation, but keep the append bounded
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := s.repo.Append(actx, rec); err != nil {
		s.logger.Warnw("audit append failed", "action", action, "outcome", outcome, "err", err)
	}
}

// List returns up to limit recent records for a privileged actor.
func (s *Service) List(ctx context.Context, actor *identity.Identity, limit int) ([]entity.Record, error) {
	if _, err := s.gate.Check(ctx, actor, gate.OpListHistory, nil); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.repo.ListRecent(ctx, limit)
}
