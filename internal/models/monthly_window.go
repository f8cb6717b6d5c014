package models

import (
	"fmt"
	"time"
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthlyWindow is the half-open range [Start, End) covering one calendar month.
type MonthlyWindow struct {
	Month int       `json:"mes"`
	Year  int       `json:"anio"`
	Start time.Time `json:"desde"`
	End   time.Time `json:"hasta"`
}

// NewMonthlyWindow validates month/year and computes the window in UTC.
func NewMonthlyWindow(month, year int) (MonthlyWindow, error) {
	if month < 1 || month > 12 {
		return MonthlyWindow{}, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	if year < 1000 || year > 9999 {
		return MonthlyWindow{}, fmt.Errorf("year must have four digits, got %d", year)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one; Date normalises December.
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return MonthlyWindow{
		Month: month,
		Year:  year,
		Start: start,
		End:   lastDay.AddDate(0, 0, 1),
	}, nil
}

// Contains reports whether t falls inside the window.
func (w MonthlyWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days is the number of calendar days covered.
func (w MonthlyWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// Label renders the period as printed on reports, e.g. "Octubre 2026".
func (w MonthlyWindow) Label() string {
	if w.Month < 1 || w.Month > 12 {
		return ""
	}
	return fmt.Sprintf("%s %d", monthNames[w.Month-1], w.Year)
}

// Key is a compact "YYYY-MM" identifier used for cache keys and filenames.
func (w MonthlyWindow) Key() string {
	return fmt.Sprintf("%04d-%02d", w.Year, w.Month)
}
