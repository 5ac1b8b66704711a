package calendar

import (
	"net/url"
	"strconv"
	"time"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow covers every day of the given month.
func MonthWindow(year int, month time.Month) Window {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, -1)}
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// ParseWindow reads from/to or year/month from q. With neither it falls back
// to the month containing now; a lone year means its current month is used.
func ParseWindow(q url.Values, now time.Time) (Window, error) {
	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "from and to must be given together")
		}
		f, err := entity.ParseDate(from)
		if err != nil {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "from: "+err.Error())
		}
		t, err := entity.ParseDate(to)
		if err != nil {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "to: "+err.Error())
		}
		if t.Before(f) {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "to is before from")
		}
		return Window{From: f, To: t}, nil
	}

	year, month := now.Year(), now.Month()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "year is invalid")
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return Window{}, apperr.Wrap(apperr.ErrValidation, "month must be 1-12")
		}
		month = time.Month(m)
	}
	return MonthWindow(year, month), nil
}
