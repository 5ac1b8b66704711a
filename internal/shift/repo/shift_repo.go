package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
)

// Filter narrows a shift listing. Zero values mean unbounded.
type Filter struct {
	OwnerID string
	From    time.Time
	To      time.Time
}

// ShiftRepo provides data access for the shifts table using sqlx.
type ShiftRepo struct {
	db *sqlx.DB
}

func NewShiftRepo(db *sqlx.DB) *ShiftRepo { return &ShiftRepo{db: db} }

// EnsureTable creates the shifts table. It must run after the identities
// table exists because of the owner foreign key.
func (r *ShiftRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS shifts (
  id varchar(32) PRIMARY KEY,
  owner_id varchar(32) NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
  date DATE NOT NULL,
  start_time TIME NULL,
  end_time TIME NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_shifts_owner_date ON shifts (owner_id, date);
CREATE INDEX IF NOT EXISTS idx_shifts_date ON shifts (date);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectColumns = `SELECT s.id, s.owner_id, i.username AS owner_username, s.date,
	to_char(s.start_time, 'HH24:MI') AS start_time, to_char(s.end_time, 'HH24:MI') AS end_time,
	s.description, s.created_at, s.updated_at
	FROM shifts s JOIN identities i ON i.id = s.owner_id`

const orderBy = ` ORDER BY s.date ASC, s.start_time ASC NULLS FIRST, s.id ASC`

// Create inserts a shift. Dates travel as text so no timezone conversion
// can move them. A missing owner is reported as sql.ErrNoRows.
func (r *ShiftRepo) Create(ctx context.Context, s *entity.Shift) error {
	const q = `INSERT INTO shifts (id, owner_id, date, start_time, end_time, description, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.OwnerID, s.Date.Format(entity.DateLayout),
		s.StartTime, s.EndTime, s.Description, s.CreatedAt, s.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return sql.ErrNoRows
	}
	return err
}

// GetByID returns the shift with its owner handle or sql.ErrNoRows.
func (r *ShiftRepo) GetByID(ctx context.Context, id string) (*entity.Shift, error) {
	var row entity.Shift
	if err := r.db.GetContext(ctx, &row, selectColumns+` WHERE s.id=$1`, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns shifts matching f in calendar order.
func (r *ShiftRepo) List(ctx context.Context, f Filter) ([]entity.Shift, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.OwnerID != "" {
		add("s.owner_id = ?", f.OwnerID)
	}
	if !f.From.IsZero() {
		add("s.date >= ?::date", f.From.Format(entity.DateLayout))
	}
	if !f.To.IsZero() {
		add("s.date <= ?::date", f.To.Format(entity.DateLayout))
	}
	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	var out []entity.Shift
	if err := r.db.SelectContext(ctx, &out, q+orderBy, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// OwnerHandles returns the distinct handles of identities owning at least one
// shift, optionally restricted to one owner.
func (r *ShiftRepo) OwnerHandles(ctx context.Context, ownerID string) ([]string, error) {
	q := `SELECT DISTINCT i.username FROM shifts s JOIN identities i ON i.id = s.owner_id`
	var args []any
	if ownerID != "" {
		q += ` WHERE s.owner_id = $1`
		args = append(args, ownerID)
	}
	var out []string
	if err := r.db.SelectContext(ctx, &out, q+` ORDER BY i.username`, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable fields. The owner never changes.
func (r *ShiftRepo) Update(ctx context.Context, s *entity.Shift) (int64, error) {
	const q = `UPDATE shifts SET date=$2::date, start_time=$3::time, end_time=$4::time, description=$5, updated_at=$6 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, s.ID, s.Date.Format(entity.DateLayout), s.StartTime, s.EndTime, s.Description, s.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a shift by id.
func (r *ShiftRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
