package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	identityrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is the identity storage used by the service.
type Repository interface {
	Create(ctx context.Context, u *entity.Identity) error
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	GetByUsername(ctx context.Context, username string) (*entity.Identity, error)
	GetByUsernameAndEmail(ctx context.Context, username, email string) (*entity.Identity, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]entity.Identity, error)
	ListEmails(ctx context.Context) ([]string, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

var ErrBadCredentials = apperr.Wrap(apperr.ErrUnauthenticated, "invalid credentials")

// RegisterInput carries the fields of a new identity.
type RegisterInput struct {
	Username        string
	Email           string
	FullName        string
	Password        string
	PasswordConfirm string
	Role            entity.Role
}

// Service orchestrates identity lifecycle and credential checks.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	gate   *gate.Gate
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(r Repository, hasher PasswordHasher, g *gate.Gate, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, hasher: hasher, gate: g, logger: logger, now: time.Now}
}

// Register creates an identity on behalf of a privileged actor.
func (s *Service) Register(ctx context.Context, actor *entity.Identity, in RegisterInput) (*entity.Identity, error) {
	if _, err := s.gate.Check(ctx, actor, gate.OpRegisterIdentity, &gate.Target{Username: strings.TrimSpace(in.Username)}); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("identity registered", "by", actor.Username, "username", u.Username, "role", u.Role)
	return u, nil
}

// Bootstrap creates an identity without an acting identity. It is only
// reachable from the operator CLI.
func (s *Service) Bootstrap(ctx context.Context, in RegisterInput) (*entity.Identity, error) {
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in RegisterInput) (*entity.Identity, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	switch {
	case username == "" || in.Password == "" || in.Role == "":
		return nil, apperr.Wrap(apperr.ErrValidation, "username, password and role are required")
	case in.PasswordConfirm != "" && in.Password != in.PasswordConfirm:
		return nil, apperr.Wrap(apperr.ErrValidation, "passwords do not match")
	case !in.Role.Valid():
		return nil, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("unknown role %q", in.Role))
	}

	taken, err := s.repo.UsernameTaken(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Wrap(apperr.ErrValidation, "username already exists")
	}
	if email != "" {
		taken, err := s.repo.EmailTaken(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Wrap(apperr.ErrValidation, "email already in use")
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &entity.Identity{
		ID:           utilities.NewSnowflakeID(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		PasswordHash: hash,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, identityrepo.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.ErrValidation, "username or email already exists")
		}
		return nil, err
	}
	return u, nil
}

// Delete removes the identity matching username and email. Its shifts are
// removed with it.
func (s *Service) Delete(ctx context.Context, actor *entity.Identity, username, email string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := s.gate.Admit(ctx, actor, gate.OpDeleteIdentity, &gate.Target{Username: username}); err != nil {
		return err
	}
	if username == "" {
		return apperr.Wrap(apperr.ErrValidation, "username is required")
	}

	var (
		target *entity.Identity
		err    error
	)
	if email == "" {
		target, err = s.repo.GetByUsername(ctx, username)
		if err == nil && strings.TrimSpace(target.Email) != "" {
			err = sql.ErrNoRows
		}
	} else {
		target, err = s.repo.GetByUsernameAndEmail(ctx, username, email)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_, _ = s.gate.Check(ctx, actor, gate.OpDeleteIdentity, &gate.Target{Username: username})
			return apperr.Wrap(apperr.ErrNotFound, "no identity with these details")
		}
		return err
	}

	if _, err := s.gate.Check(ctx, actor, gate.OpDeleteIdentity, &gate.Target{IdentityID: target.ID, Username: target.Username}); err != nil {
		return err
	}
	rows, err := s.repo.Delete(ctx, target.ID)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if rows == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "no identity with these details")
	}
	s.logger.Infow("identity deleted", "by", actor.Username, "username", target.Username)
	return nil
}

// List returns all identities sorted by username.
func (s *Service) List(ctx context.Context, actor *entity.Identity) ([]entity.Identity, error) {
	if _, err := s.gate.Check(ctx, actor, gate.OpListIdentities, nil); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ChangeRole reassigns a role. Privilege follows immediately because it is
// derived from role; the version bump invalidates issued access tokens.
func (s *Service) ChangeRole(ctx context.Context, actor *entity.Identity, username string, role entity.Role) (*entity.Identity, error) {
	if _, err := s.gate.Check(ctx, actor, gate.OpChangeRole, &gate.Target{Username: username}); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("unknown role %q", role))
	}
	target, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "identity not found")
		}
		return nil, err
	}
	rows, err := s.repo.UpdateRole(ctx, target.ID, role)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, apperr.Wrap(apperr.ErrNotFound, "identity not found")
	}
	s.logger.Infow("role changed", "by", actor.Username, "username", target.Username, "from", target.Role, "to", role)
	return s.repo.GetByID(ctx, target.ID)
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entity.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		} // avoid user enumeration
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// GetByID loads an identity; used by the session middleware.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return s.repo.GetByID(ctx, id)
}

// Emails returns every non-blank address; the refill broadcast recipients.
func (s *Service) Emails(ctx context.Context) ([]string, error) {
	return s.repo.ListEmails(ctx)
}
