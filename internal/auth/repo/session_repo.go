package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepo stores refresh sessions keyed by the SHA-256 of the opaque
// token; the raw token never reaches the database.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// EnsureTable creates the sessions table. Requires identities to exist.
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  token_hash TEXT PRIMARY KEY,
  id BIGSERIAL,
  identity_id varchar(32) NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_identity_id ON sessions(identity_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *SessionRepo) Save(ctx context.Context, tokenHash, identityID string, expiresAt time.Time) (int64, error) {
	query := `INSERT INTO sessions (token_hash, identity_id, expires_at) VALUES ($1, $2, $3) RETURNING id`
	var id int64
	row := r.db.QueryRowxContext(ctx, query, tokenHash, identityID, expiresAt)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *SessionRepo) Get(ctx context.Context, tokenHash string) (int64, string, time.Time, error) {
	var id int64
	var identityID string
	var expiresAt time.Time
	query := `SELECT id, identity_id, expires_at FROM sessions WHERE token_hash = $1`
	row := r.db.QueryRowxContext(ctx, query, tokenHash)
	if err := row.Scan(&id, &identityID, &expiresAt); err != nil {
		return 0, "", time.Time{}, err
	}
	return id, identityID, expiresAt, nil
}

func (r *SessionRepo) Delete(ctx context.Context, tokenHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
