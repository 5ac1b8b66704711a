package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/audit/entity"
)

// AuditRepo appends and reads action records.
type AuditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

// EnsureTable creates the audit_records table if not exists. actor_id is not a
// foreign key so history survives identity deletion.
func (r *AuditRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_records (
  id varchar(32) PRIMARY KEY,
  actor_id varchar(32) NOT NULL DEFAULT '',
  actor_name TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL,
  outcome TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_records_created_at ON audit_records(created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Append inserts a record.
func (r *AuditRepo) Append(ctx context.Context, rec *entity.Record) error {
	const q = `INSERT INTO audit_records (id, actor_id, actor_name, action, outcome, detail, created_at)
		VALUES (:id, :actor_id, :actor_name, :action, :outcome, :detail, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, rec)
	return err
}

// ListRecent returns the newest records first.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]entity.Record, error) {
	const q = `SELECT id, actor_id, actor_name, action, outcome, detail, created_at
		FROM audit_records ORDER BY created_at DESC, id DESC LIMIT $1`
	var out []entity.Record
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}
