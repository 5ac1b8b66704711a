package shift

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	shiftrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

// Repository is the shift storage used by the service.
type Repository interface {
	Create(ctx context.Context, s *entity.Shift) error
	GetByID(ctx context.Context, id string) (*entity.Shift, error)
	List(ctx context.Context, f shiftrepo.Filter) ([]entity.Shift, error)
	Update(ctx context.Context, s *entity.Shift) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

var errShiftNotFound = apperr.Wrap(apperr.ErrNotFound, "shift not found")

// CreateInput carries a new shift. The owner is always the acting identity.
type CreateInput struct {
	Date        string
	StartTime   string
	EndTime     string
	Description string
}

// Patch holds the fields to change. Nil leaves a field as is; an empty
// StartTime or EndTime clears it.
type Patch struct {
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// Service implements the shift store operations behind the gate.
type Service struct {
	repo   Repository
	gate   *gate.Gate
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(r Repository, g *gate.Gate, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, gate: g, logger: logger, now: time.Now}
}

// Create stores a shift owned by actor.
func (s *Service) Create(ctx context.Context, actor *identity.Identity, in CreateInput) (*entity.Shift, error) {
	var ownerID string
	if actor != nil {
		ownerID = actor.ID
	}
	if _, err := s.gate.Check(ctx, actor, gate.OpCreateShift, &gate.Target{OwnerID: ownerID}); err != nil {
		return nil, err
	}
	date, err := entity.ParseDate(in.Date)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err.Error())
	}
	start, end, err := parseClocks(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sh := &entity.Shift{
		ID:            utilities.NewSnowflakeID(),
		OwnerID:       actor.ID,
		OwnerUsername: actor.Username,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		Description:   strings.TrimSpace(in.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, sh); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "owner not found")
		}
		return nil, err
	}
	s.logger.Infow("shift created", "id", sh.ID, "owner", actor.Username, "date", in.Date)
	return sh, nil
}

// ListMine returns the actor's own shifts regardless of privilege.
func (s *Service) ListMine(ctx context.Context, actor *identity.Identity) ([]entity.Shift, error) {
	if _, err := s.gate.Check(ctx, actor, gate.OpReadShiftList, nil); err != nil {
		return nil, err
	}
	return s.list(ctx, shiftrepo.Filter{OwnerID: actor.ID})
}

// List returns every shift for privileged actors and own shifts otherwise.
func (s *Service) List(ctx context.Context, actor *identity.Identity) ([]entity.Shift, error) {
	d, err := s.gate.Check(ctx, actor, gate.OpReadShiftList, nil)
	if err != nil {
		return nil, err
	}
	f := shiftrepo.Filter{}
	if d.Scope != gate.ScopeAll {
		f.OwnerID = actor.ID
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f shiftrepo.Filter) ([]entity.Shift, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	entity.Sort(out)
	return out, nil
}

// Update applies p to the shift. Existence is checked before ownership.
func (s *Service) Update(ctx context.Context, actor *identity.Identity, id string, p Patch) (*entity.Shift, error) {
	sh, err := s.load(ctx, actor, gate.OpUpdateShift, id)
	if err != nil {
		return nil, err
	}
	if err := utilities.ValidateStruct(p); err != nil {
		return nil, err
	}
	if p.Date != nil {
		d, err := entity.ParseDate(*p.Date)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, err.Error())
		}
		sh.Date = d
	}
	if p.StartTime != nil {
		if sh.StartTime, err = entity.ParseClock(*p.StartTime); err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, "start_time: "+err.Error())
		}
	}
	if p.EndTime != nil {
		if sh.EndTime, err = entity.ParseClock(*p.EndTime); err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, "end_time: "+err.Error())
		}
	}
	if p.Description != nil {
		sh.Description = strings.TrimSpace(*p.Description)
	}
	sh.UpdatedAt = s.now().UTC()

	rows, err := s.repo.Update(ctx, sh)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, errShiftNotFound
	}
	s.logger.Infow("shift updated", "id", sh.ID, "by", actor.Username)
	return sh, nil
}

// Delete removes the shift. Existence is checked before ownership.
func (s *Service) Delete(ctx context.Context, actor *identity.Identity, id string) error {
	sh, err := s.load(ctx, actor, gate.OpDeleteShift, id)
	if err != nil {
		return err
	}
	rows, err := s.repo.Delete(ctx, sh.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errShiftNotFound
	}
	s.logger.Infow("shift deleted", "id", sh.ID, "by", actor.Username)
	return nil
}

// load authenticates, fetches the shift and then asks the gate about the
// owner, so a missing id is NotFound even for a non-owner.
func (s *Service) load(ctx context.Context, actor *identity.Identity, op gate.Operation, id string) (*entity.Shift, error) {
	id = strings.TrimSpace(id)
	if actor == nil || actor.ID == "" {
		_, err := s.gate.Check(ctx, actor, op, &gate.Target{ShiftID: id})
		return nil, err
	}
	if id == "" {
		return nil, apperr.Wrap(apperr.ErrValidation, "shift id is required")
	}
	sh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errShiftNotFound
		}
		return nil, err
	}
	if _, err := s.gate.Check(ctx, actor, op, &gate.Target{ShiftID: sh.ID, OwnerID: sh.OwnerID}); err != nil {
		return nil, err
	}
	return sh, nil
}

func parseClocks(start, end string) (*string, *string, error) {
	st, err := entity.ParseClock(start)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.ErrValidation, "start_time: "+err.Error())
	}
	et, err := entity.ParseClock(end)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.ErrValidation, "end_time: "+err.Error())
	}
	return st, et, nil
}
