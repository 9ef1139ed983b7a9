package importer

import (
	"time"

	"github.com/samber/lo"

	"notioncal/internal/model"
)

// Cutoff returns the earliest end time still considered recent.
func Cutoff(now time.Time, windowDays int) time.Time {
	return now.UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
}

// FilterRecent keeps the events whose End is at or after now - windowDays,
// preserving order.
func FilterRecent(events []model.CalendarEvent, windowDays int, now time.Time) []model.CalendarEvent {
	cutoff := Cutoff(now, windowDays)
	return lo.Filter(events, func(ev model.CalendarEvent, _ int) bool {
		return !ev.End.Before(cutoff)
	})
}
