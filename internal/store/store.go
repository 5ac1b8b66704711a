// Package store selects the repository backend and owns the schema.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/audit"
	auditrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/audit/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift"
	shiftrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/repo"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ShiftStore is what both the shift service and the calendar read.
type ShiftStore interface {
	shift.Repository
	calendar.ShiftSource
}

// Repos bundles the repositories of one backend.
type Repos struct {
	Identities identity.Repository
	Shifts     ShiftStore
	Sessions   auth.SessionStore
	Audit      audit.Repository
}

// Postgres returns sqlx backed repositories.
func Postgres(db *sqlx.DB) Repos {
	return Repos{
		Identities: identityrepo.NewIdentityRepo(db),
		Shifts:     shiftrepo.NewShiftRepo(db),
		Sessions:   authrepo.NewSessionRepo(db),
		Audit:      auditrepo.NewAuditRepo(db),
	}
}

// Memory returns process local repositories. Data is lost on exit.
func Memory() Repos {
	st := memstore.New()
	return Repos{
		Identities: st.Identities(),
		Shifts:     st.Shifts(),
		Sessions:   st.Sessions(),
		Audit:      st.Audit(),
	}
}

// EnsureSchema creates every table in foreign key order.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"identities", identityrepo.NewIdentityRepo(db).EnsureTable},
		{"shifts", shiftrepo.NewShiftRepo(db).EnsureTable},
		{"sessions", authrepo.NewSessionRepo(db).EnsureTable},
		{"audit_records", auditrepo.NewAuditRepo(db).EnsureTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
