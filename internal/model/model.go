package model

import "time"

// CalendarEvent is a single VEVENT (or one occurrence of a recurring VEVENT)
// as read from the feed. Values are never mutated after parsing.
type CalendarEvent struct {
	UID string // iCalendar UID, for logging only

	Summary     string
	Description string // possibly empty

	AllDay bool

	// Start / End carry the event's own timezone.
	Start time.Time
	End   time.Time
}

// Existence is the outcome of looking a record up in the remote database.
type Existence int

const (
	// ExistenceUnknown means the lookup itself failed.
	ExistenceUnknown Existence = iota
	ExistenceNotFound
	ExistenceFound
)

func (e Existence) String() string {
	switch e {
	case ExistenceFound:
		return "found"
	case ExistenceNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Report summarizes one import pass.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched int `json:"fetched"` // events parsed from the feed (after expansion)
	Recent  int `json:"recent"`  // events inside the recency window
	Created int `json:"created"`
	Skipped int `json:"skipped"` // already present
	Unknown int `json:"unknown"` // existence could not be determined
	Failed  int `json:"failed"`  // create call failed

	DryRun bool   `json:"dry_run"`
	Error  string `json:"error,omitempty"`
}
