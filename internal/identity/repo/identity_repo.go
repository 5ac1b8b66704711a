package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
)

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate identity")

// IdentityRepo provides data access for the identities table using sqlx.
type IdentityRepo struct {
	db *sqlx.DB
}

func NewIdentityRepo(db *sqlx.DB) *IdentityRepo { return &IdentityRepo{db: db} }

// EnsureTable creates the identities table if not exists (idempotent).
// Privilege is not a column: it is derived from role.
func (r *IdentityRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS identities (
  id varchar(32) PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL DEFAULT '',
  full_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
  password_hash TEXT NOT NULL,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_identities_email ON identities (lower(email)) WHERE email <> '';
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectColumns = `SELECT id, username, email, full_name, role, password_hash, version, created_at, updated_at FROM identities`

// Create inserts a new identity row.
func (r *IdentityRepo) Create(ctx context.Context, u *entity.Identity) error {
	const q = `INSERT INTO identities (id, username, email, full_name, role, password_hash, version, created_at, updated_at)
		VALUES (:id, :username, :email, :full_name, :role, :password_hash, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns the identity or sql.ErrNoRows.
func (r *IdentityRepo) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	var row entity.Identity
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByUsername fetches by username.
func (r *IdentityRepo) GetByUsername(ctx context.Context, username string) (*entity.Identity, error) {
	var row entity.Identity
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE username=$1`, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByUsernameAndEmail fetches the identity matching both fields.
func (r *IdentityRepo) GetByUsernameAndEmail(ctx context.Context, username, email string) (*entity.Identity, error) {
	var row entity.Identity
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE username=$1 AND lower(email)=lower($2)`, username, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// UsernameTaken reports whether the handle exists.
func (r *IdentityRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM identities WHERE username=$1)`, username)
	return ok, err
}

// EmailTaken reports whether a non-blank email is in use (case-insensitive).
func (r *IdentityRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM identities WHERE email <> '' AND lower(email)=lower($1))`, email)
	return ok, err
}

// List returns all identities ordered by username.
func (r *IdentityRepo) List(ctx context.Context) ([]entity.Identity, error) {
	var out []entity.Identity
	if err := r.db.SelectContext(ctx, &out, selectColumns+` ORDER BY username ASC`); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEmails returns every non-blank email address.
func (r *IdentityRepo) ListEmails(ctx context.Context) ([]string, error) {
	var out []string
	const q = `SELECT email FROM identities WHERE btrim(email) <> '' ORDER BY username ASC`
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole sets the role and bumps the version so issued tokens go stale.
func (r *IdentityRepo) UpdateRole(ctx context.Context, id string, role entity.Role) (int64, error) {
	const q = `UPDATE identities SET role=$2, version=version+1, updated_at=NOW() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, role)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes an identity. Owned shifts and sessions go with it through
// ON DELETE CASCADE in the same statement.
func (r *IdentityRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
