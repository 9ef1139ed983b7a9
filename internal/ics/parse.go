package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "notioncal/internal/log"
	"notioncal/internal/model"
)

// Property names not exported as constants by every golang-ical release.
const (
	durationProperty     = ical.ComponentProperty("DURATION")
	recurrenceIDProperty = ical.ComponentProperty("RECURRENCE-ID")
)

// ParsedEvent is a VEVENT plus the recurrence data needed by Expand.
type ParsedEvent struct {
	model.CalendarEvent

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
}

// IsOverride reports whether the VEVENT replaces a single recurring instance.
func (p ParsedEvent) IsOverride() bool { return p.Recurrence != nil }

// ParseOptions controls ICS interpretation.
type ParseOptions struct {
	// Location is used for floating times (no TZID, no trailing Z) and for
	// TZIDs the runtime cannot load. Nil means UTC.
	Location *time.Location
}

// ParseICS parses a single ICS payload. The whole payload fails only when it
// is empty or not a VCALENDAR; a VEVENT without a usable DTSTART is logged
// and skipped.
func ParseICS(body []byte, opts ParseOptions) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, opts.Location)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

// Events returns one CalendarEvent per VEVENT, without recurrence expansion.
func Events(parsed []ParsedEvent) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, p.CalendarEvent)
	}
	return out
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = ical.FromText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = ical.FromText(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propertyTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, _, err := propertyTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	case ve.GetProperty(durationProperty) != nil:
		d, err := parseDuration(ve.GetProperty(durationProperty).Value)
		if err != nil {
			return out, fmt.Errorf("DURATION: %w", err)
		}
		out.End = start.Add(d)
	case allDay:
		out.End = start.AddDate(0, 0, 1)
	default:
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		zone := locationFor(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, zone); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(recurrenceIDProperty); p != nil {
		if t, err := parseICSTime(p.Value, locationFor(p, loc)); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

// propertyTime interprets a DTSTART/DTEND-style property. It reports whether
// the value is a DATE (all-day) rather than a DATE-TIME.
func propertyTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	val := strings.TrimSpace(p.Value)
	allDay := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	t, err := parseICSTime(val, locationFor(p, loc))
	return t, allDay, err
}

// locationFor resolves the property's TZID, falling back to def for floating
// values and for zone names the runtime does not know (e.g. Windows names).
func locationFor(p *ical.IANAProperty, def *time.Location) *time.Location {
	tzs, ok := p.ICalParameters["TZID"]
	if !ok || len(tzs) == 0 {
		return def
	}
	name := strings.Trim(tzs[0], `"`)
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Debug("unknown TZID, using default zone", "tzid", name, "zone", def.String())
		return def
	}
	return loc
}

// parseICSTime parses DATE, local DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration parses an RFC 5545 DURATION value such as "PT1H30M" or "P2D".
// "P" needs at least one component and "T" at least one of H, M or S.
func parseDuration(v string) (time.Duration, error) {
	upper := strings.ToUpper(strings.TrimSpace(v))
	norm := strings.TrimLeft(upper, "+-")
	m := durationPattern.FindStringSubmatch(upper)
	if m == nil || norm == "P" || strings.HasSuffix(norm, "T") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		total += time.Duration(n) * unit
	}
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}
