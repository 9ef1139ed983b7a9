package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "notioncal/internal/log"
	"notioncal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences produced: an occurrence is
	// kept when it is still running at RangeStart and starts by RangeEnd.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into concrete events:
//
//   - non-recurring events pass through unchanged
//   - RRULE events yield one event per occurrence in range, minus EXDATEs,
//     keeping the original duration
//   - RECURRENCE-ID overrides replace the matching occurrence
//
// Output order follows the input order, occurrences in time order.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() && ev.UID != "" {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		switch {
		case ev.IsOverride() && ev.UID != "":
			// Emitted through its base event, unless the base has no RRULE.
			if !hasRecurringBase(events, ev.UID) {
				out = append(out, ev.CalendarEvent)
			}
		case ev.RawRRule == "":
			out = append(out, ev.CalendarEvent)
		default:
			occ, hitCap := expandRecurring(ev, overridesByUID[ev.UID], cfg)
			if hitCap {
				appLog.Warn("expand: occurrences truncated",
					"uid", ev.UID,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
			out = append(out, occ...)
		}
	}
	return out, nil
}

func hasRecurringBase(events []ParsedEvent, uid string) bool {
	for _, ev := range events {
		if ev.UID == uid && !ev.IsOverride() && ev.RawRRule != "" {
			return true
		}
	}
	return false
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE, keeping base event", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []model.CalendarEvent{ev.CalendarEvent}, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so an occurrence that started
	// before RangeStart but is still running is kept.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range starts {
		if o, ok := findOverride(overrides, occStart); ok {
			out = append(out, o.CalendarEvent)
			continue
		}
		occ := ev.CalendarEvent
		occ.Start = occStart
		occ.End = occStart.Add(dur)
		out = append(out, occ)
	}

	return out, hitCap
}

// findOverride finds an override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}
