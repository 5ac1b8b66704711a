package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

var (
	amy   = &identity.Identity{ID: "1", Username: "amy", Role: identity.RoleUser}
	bob   = &identity.Identity{ID: "2", Username: "bob", Role: identity.RoleUser}
	root  = &identity.Identity{ID: "3", Username: "root", Role: identity.RoleAdmin}
	blank = &identity.Identity{ID: "4", Username: "  ", Role: identity.RoleUser}
)

func newCalendar(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	for _, u := range []*identity.Identity{amy, bob, root, blank} {
		require.NoError(t, st.Identities().Create(ctx, u))
	}
	add := func(id, owner, date, start string) {
		d, err := entity.ParseDate(date)
		require.NoError(t, err)
		sh := &entity.Shift{ID: id, OwnerID: owner, Date: d, Description: "shift " + id}
		if start != "" {
			sh.StartTime = &start
		}
		require.NoError(t, st.Shifts().Create(ctx, sh))
	}
	add("s1", bob.ID, "2024-03-05", "09:00")
	add("s2", amy.ID, "2024-03-05", "")
	add("s3", amy.ID, "2024-02-20", "")
	add("s4", blank.ID, "2024-03-07", "")
	add("s5", root.ID, "2024-04-01", "")

	svc := NewService(st.Shifts(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func ids(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestFeedPrivileged(t *testing.T) {
	svc := newCalendar(t)
	p := Palette()

	got, err := svc.Feed(context.Background(), root, MonthWindow(2024, time.March))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1", "s4"}, ids(got))

	// domain is amy, bob, root across all months
	assert.Equal(t, "amy", got[0].Title)
	assert.Equal(t, p[0], got[0].BackgroundColor)
	assert.Equal(t, p[1], got[1].BackgroundColor)
	assert.Equal(t, got[1].BackgroundColor, got[1].BorderColor)
	assert.Equal(t, got[1].BackgroundColor, got[1].TextColor)
	assert.True(t, got[1].AllDay)
	assert.Equal(t, "2024-03-05", got[1].Start)
	assert.Equal(t, "shift s1", got[1].Description)

	assert.Equal(t, "user_4", got[2].Title)
	assert.Equal(t, FallbackColor, got[2].BackgroundColor)

	april, err := svc.Feed(context.Background(), root, MonthWindow(2024, time.April))
	require.NoError(t, err)
	require.Len(t, april, 1)
	assert.Equal(t, p[2], april[0].BackgroundColor, "root keeps its color outside the window")
}

func TestFeedOwnScope(t *testing.T) {
	svc := newCalendar(t)

	got, err := svc.Feed(context.Background(), bob, MonthWindow(2024, time.March))
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, ids(got))
	assert.Equal(t, Palette()[0], got[0].BackgroundColor)

	feb, err := svc.Feed(context.Background(), amy, MonthWindow(2024, time.February))
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids(feb))

	_, err = svc.Feed(context.Background(), nil, MonthWindow(2024, time.March))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestFeedZeroWindowIsCurrentMonth(t *testing.T) {
	svc := newCalendar(t)
	got, err := svc.Feed(context.Background(), root, Window{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1", "s4"}, ids(got))
}

func TestFeedIdempotent(t *testing.T) {
	svc := newCalendar(t)
	w := Window{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}
	first, err := svc.Feed(context.Background(), root, w)
	require.NoError(t, err)
	second, err := svc.Feed(context.Background(), root, w)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 5)
}

func TestHandlerFeed(t *testing.T) {
	h := NewHandler(newCalendar(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
	req = req.WithContext(auth.WithActor(req.Context(), amy))
	rec := httptest.NewRecorder()
	h.Feed(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "s2", body[0]["id"])
	assert.Equal(t, true, body[0]["allDay"])
	assert.Equal(t, "amy", body[0]["username"])

	req = httptest.NewRequest(http.MethodGet, "/calendar?month=0", nil)
	rec = httptest.NewRecorder()
	h.Feed(rec, req.WithContext(auth.WithActor(req.Context(), amy)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Feed(rec, httptest.NewRequest(http.MethodGet, "/calendar", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// authentication is decided before the query is read
	rec = httptest.NewRecorder()
	h.Feed(rec, httptest.NewRequest(http.MethodGet, "/calendar?month=13", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
