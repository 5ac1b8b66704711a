package entity

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate  = errors.New("date must be YYYY-MM-DD")
	ErrInvalidClock = errors.New("time must be HH:MM")
)

// Shift is a date-scoped work assignment owned by exactly one identity.
// StartTime and EndTime are optional "HH:MM" values with no ordering rule.
type Shift struct {
	ID            string    `db:"id"`
	OwnerID       string    `db:"owner_id"`
	OwnerUsername string    `db:"owner_username"`
	Date          time.Time `db:"date"`
	StartTime     *string   `db:"start_time"`
	EndTime       *string   `db:"end_time"`
	Description   string    `db:"description"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type shiftJSON struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	Date          string    `json:"date"`
	StartTime     *string   `json:"start_time"`
	EndTime       *string   `json:"end_time"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (s Shift) MarshalJSON() ([]byte, error) {
	return json.Marshal(shiftJSON{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		OwnerUsername: s.OwnerUsername,
		Date:          s.Date.Format(DateLayout),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Description:   s.Description,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
}

// ParseDate parses a calendar date into midnight UTC.
func ParseDate(v string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseClock normalizes "HH:MM" or "HH:MM:SS" to "HH:MM". Blank input
// yields nil, meaning no time.
func ParseClock(v string) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{ClockLayout, "15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			out := t.Format(ClockLayout)
			return &out, nil
		}
	}
	return nil, ErrInvalidClock
}

// Sort orders shifts by date, then start time with untimed shifts first,
// then id so the order is total.
func Sort(list []Shift) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		switch {
		case a.StartTime == nil && b.StartTime != nil:
			return true
		case a.StartTime != nil && b.StartTime == nil:
			return false
		case a.StartTime != nil && *a.StartTime != *b.StartTime:
			return *a.StartTime < *b.StartTime
		}
		return a.ID < b.ID
	})
}
