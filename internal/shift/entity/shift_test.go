package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(v string) *string { return &v }

func date(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := ParseDate(v)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-05 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "2024-02-30", "05.03.2024", "2024-3-5"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestParseClock(t *testing.T) {
	v, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", *v)

	v, err = ParseClock("17:45:00")
	require.NoError(t, err)
	assert.Equal(t, "17:45", *v)

	v, err = ParseClock("  ")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestSort(t *testing.T) {
	list := []Shift{
		{ID: "e", Date: date(t, "2024-03-06")},
		{ID: "d", Date: date(t, "2024-03-05"), StartTime: clock("14:00")},
		{ID: "c", Date: date(t, "2024-03-05"), StartTime: clock("08:00")},
		{ID: "b", Date: date(t, "2024-03-05")},
		{ID: "a", Date: date(t, "2024-03-05")},
	}
	Sort(list)
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestMarshalJSON(t *testing.T) {
	s := Shift{ID: "1", OwnerID: "7", OwnerUsername: "amy", Date: date(t, "2024-03-05"), StartTime: clock("09:00"), Description: "desk cover"}
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "2024-03-05", out["date"])
	assert.Equal(t, "09:00", out["start_time"])
	assert.Nil(t, out["end_time"])
	assert.Equal(t, "desk cover", out["description"])
}
