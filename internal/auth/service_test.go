package auth

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

type memSession struct {
	identityID string
	expiresAt  time.Time
}

type memSessions struct {
	mu   sync.Mutex
	seq  int64
	rows map[string]memSession
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]memSession{}}
}

func (m *memSessions) Save(_ context.Context, tokenHash, identityID string, expiresAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rows[tokenHash] = memSession{identityID, expiresAt}
	return m.seq, nil
}

func (m *memSessions) Get(_ context.Context, tokenHash string) (int64, string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tokenHash]
	if !ok {
		return 0, "", time.Time{}, sql.ErrNoRows
	}
	return 1, row.identityID, row.expiresAt, nil
}

func (m *memSessions) Delete(_ context.Context, tokenHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tokenHash]; !ok {
		return 0, nil
	}
	delete(m.rows, tokenHash)
	return 1, nil
}

// lostRaceSessions drops the row right after it is read, as a concurrent
// refresh with the same token would.
type lostRaceSessions struct{ *memSessions }

func (l lostRaceSessions) Get(ctx context.Context, tokenHash string) (int64, string, time.Time, error) {
	id, identityID, expiresAt, err := l.memSessions.Get(ctx, tokenHash)
	if err == nil {
		_, err = l.memSessions.Delete(ctx, tokenHash)
	}
	return id, identityID, expiresAt, err
}

func testConfig() Config {
	return Config{Secret: "test-secret", Issuer: "shift-test", AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour}
}

var amy = &entity.Identity{ID: "101", Username: "amy", Role: entity.RoleUser, Version: 3}

func TestIssueAndParse(t *testing.T) {
	svc := NewTokenService(testConfig(), newMemSessions())
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "101", claims.Subject)
	assert.Equal(t, "amy", claims.Username)
	assert.Equal(t, int64(3), claims.Version)
}

func TestParseRejects(t *testing.T) {
	svc := NewTokenService(testConfig(), newMemSessions())
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "different"
	_, err = NewTokenService(other, newMemSessions()).ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	expired := NewTokenService(testConfig(), newMemSessions())
	expired.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = expired.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.ParseAccess("garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestConsumeRotates(t *testing.T) {
	sessions := newMemSessions()
	svc := NewTokenService(testConfig(), sessions)
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)

	id, err := svc.Consume(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	// a refresh token is single use
	_, err = svc.Consume(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestConsumeLosesRace(t *testing.T) {
	sessions := lostRaceSessions{newMemSessions()}
	svc := NewTokenService(testConfig(), sessions)
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConsumeConcurrent(t *testing.T) {
	svc := NewTokenService(testConfig(), newMemSessions())
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)

	const n = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Consume(context.Background(), pair.RefreshToken); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}

func TestConsumeExpired(t *testing.T) {
	svc := NewTokenService(testConfig(), newMemSessions())
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Consume(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRevoke(t *testing.T) {
	sessions := newMemSessions()
	svc := NewTokenService(testConfig(), sessions)
	pair, err := svc.Issue(context.Background(), amy)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), pair.RefreshToken))
	assert.Empty(t, sessions.rows)
	assert.NoError(t, svc.Revoke(context.Background(), "unknown"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, "shift-api", cfg.Issuer)
}
