// Package memstore is an in-process implementation of the repositories. It
// backs STORE_DRIVER=memory and the tests, and mirrors the foreign key
// cascades of the Postgres schema.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	audit "github.com/ovaphlow/pitchfork/service-shift-go/internal/audit/entity"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	identityrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/repo"
	shift "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	shiftrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/repo"
)

type session struct {
	id         int64
	identityID string
	expiresAt  time.Time
}

// Store holds all tables behind one lock.
type Store struct {
	mu         sync.RWMutex
	identities map[string]identity.Identity
	shifts     map[string]shift.Shift
	sessions   map[string]session
	records    []audit.Record
	seq        int64
}

func New() *Store {
	return &Store{
		identities: map[string]identity.Identity{},
		shifts:     map[string]shift.Shift{},
		sessions:   map[string]session{},
	}
}

func (s *Store) Identities() *Identities { return &Identities{s} }
func (s *Store) Shifts() *Shifts         { return &Shifts{s} }
func (s *Store) Sessions() *Sessions     { return &Sessions{s} }
func (s *Store) Audit() *Audit           { return &Audit{s} }

// Identities implements the identity repository.
type Identities struct{ s *Store }

func (r *Identities) Create(_ context.Context, u *identity.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.identities {
		if x.ID == u.ID || x.Username == u.Username || (u.Email != "" && strings.EqualFold(x.Email, u.Email)) {
			return identityrepo.ErrDuplicate
		}
	}
	r.s.identities[u.ID] = *u
	return nil
}

func (r *Identities) GetByID(_ context.Context, id string) (*identity.Identity, error) {
	return r.find(func(u identity.Identity) bool { return u.ID == id })
}

func (r *Identities) GetByUsername(_ context.Context, username string) (*identity.Identity, error) {
	return r.find(func(u identity.Identity) bool { return u.Username == username })
}

func (r *Identities) GetByUsernameAndEmail(_ context.Context, username, email string) (*identity.Identity, error) {
	return r.find(func(u identity.Identity) bool {
		return u.Username == username && strings.EqualFold(u.Email, email)
	})
}

func (r *Identities) find(match func(identity.Identity) bool) (*identity.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.identities {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *Identities) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r *Identities) EmailTaken(_ context.Context, email string) (bool, error) {
	_, err := r.find(func(u identity.Identity) bool {
		return u.Email != "" && strings.EqualFold(u.Email, email)
	})
	return err == nil, nil
}

func (r *Identities) List(_ context.Context) ([]identity.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]identity.Identity, 0, len(r.s.identities))
	for _, u := range r.s.identities {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *Identities) ListEmails(ctx context.Context) ([]string, error) {
	list, _ := r.List(ctx)
	var out []string
	for _, u := range list {
		if strings.TrimSpace(u.Email) != "" {
			out = append(out, u.Email)
		}
	}
	return out, nil
}

func (r *Identities) UpdateRole(_ context.Context, id string, role identity.Role) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.identities[id]
	if !ok {
		return 0, nil
	}
	u.Role = role
	u.Version++
	u.UpdatedAt = time.Now().UTC()
	r.s.identities[id] = u
	return 1, nil
}

// Delete removes the identity with its shifts and sessions atomically.
func (r *Identities) Delete(_ context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[id]; !ok {
		return 0, nil
	}
	delete(r.s.identities, id)
	for k, sh := range r.s.shifts {
		if sh.OwnerID == id {
			delete(r.s.shifts, k)
		}
	}
	for k, ss := range r.s.sessions {
		if ss.identityID == id {
			delete(r.s.sessions, k)
		}
	}
	return 1, nil
}

// Shifts implements the shift repository.
type Shifts struct{ s *Store }

func (r *Shifts) Create(_ context.Context, sh *shift.Shift) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[sh.OwnerID]; !ok {
		return sql.ErrNoRows
	}
	r.s.shifts[sh.ID] = *sh
	return nil
}

func (r *Shifts) GetByID(_ context.Context, id string) (*shift.Shift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sh, ok := r.s.shifts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := r.withOwner(sh)
	return &out, nil
}

func (r *Shifts) List(_ context.Context, f shiftrepo.Filter) ([]shift.Shift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []shift.Shift
	for _, sh := range r.s.shifts {
		switch {
		case f.OwnerID != "" && sh.OwnerID != f.OwnerID:
			continue
		case !f.From.IsZero() && sh.Date.Before(f.From):
			continue
		case !f.To.IsZero() && sh.Date.After(f.To):
			continue
		}
		out = append(out, r.withOwner(sh))
	}
	shift.Sort(out)
	return out, nil
}

func (r *Shifts) OwnerHandles(_ context.Context, ownerID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, sh := range r.s.shifts {
		if ownerID != "" && sh.OwnerID != ownerID {
			continue
		}
		name := r.s.identities[sh.OwnerID].Username
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Shifts) Update(_ context.Context, sh *shift.Shift) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.shifts[sh.ID]
	if !ok {
		return 0, nil
	}
	cur.Date, cur.StartTime, cur.EndTime = sh.Date, sh.StartTime, sh.EndTime
	cur.Description, cur.UpdatedAt = sh.Description, sh.UpdatedAt
	r.s.shifts[sh.ID] = cur
	return 1, nil
}

func (r *Shifts) Delete(_ context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shifts[id]; !ok {
		return 0, nil
	}
	delete(r.s.shifts, id)
	return 1, nil
}

func (r *Shifts) withOwner(sh shift.Shift) shift.Shift {
	sh.OwnerUsername = r.s.identities[sh.OwnerID].Username
	return sh
}

// Sessions implements the refresh session store.
type Sessions struct{ s *Store }

func (r *Sessions) Save(_ context.Context, tokenHash, identityID string, expiresAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[identityID]; !ok {
		return 0, sql.ErrNoRows
	}
	r.s.seq++
	r.s.sessions[tokenHash] = session{id: r.s.seq, identityID: identityID, expiresAt: expiresAt}
	return r.s.seq, nil
}

func (r *Sessions) Get(_ context.Context, tokenHash string) (int64, string, time.Time, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ss, ok := r.s.sessions[tokenHash]
	if !ok {
		return 0, "", time.Time{}, sql.ErrNoRows
	}
	return ss.id, ss.identityID, ss.expiresAt, nil
}

func (r *Sessions) Delete(_ context.Context, tokenHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[tokenHash]; !ok {
		return 0, nil
	}
	delete(r.s.sessions, tokenHash)
	return 1, nil
}

// Audit implements the history repository.
type Audit struct{ s *Store }

func (r *Audit) Append(_ context.Context, rec *audit.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.records = append(r.s.records, *rec)
	return nil
}

// ListRecent returns the newest records first.
func (r *Audit) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]audit.Record, 0, limit)
	for i := len(r.s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.s.records[i])
	}
	return out, nil
}
