package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notioncal/internal/config"
	"notioncal/internal/ics"
	appLog "notioncal/internal/log"
	"notioncal/internal/model"
	"notioncal/internal/notion"
)

// DateLayout renders timestamps as ISO-8601 with a numeric offset
// ("2026-10-17T09:00:00+02:00"). The same string is stored as due date and
// used for the duplicate lookup, so both sides must agree.
const DateLayout = "2006-01-02T15:04:05-07:00"

// Source returns the raw ICS text found at a location.
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Store is the remote database. *notion.Client satisfies it.
type Store interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.QueryRequest) (notion.QueryResponse, error)
	CreatePage(ctx context.Context, req notion.CreatePageRequest) (notion.Page, error)
}

// Outcome is what ImportEvent did with one event.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeExists
	OutcomeUnknownSkipped
	OutcomeFailed
	OutcomeDryRun
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExists:
		return "exists"
	case OutcomeUnknownSkipped:
		return "unknown_skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeDryRun:
		return "dry_run"
	default:
		return "invalid"
	}
}

// Importer runs import passes. It only reads its configuration.
type Importer struct {
	cfg    *config.Config
	source Source
	store  Store
	now    func() time.Time
}

// New builds an Importer. cfg must already be validated.
func New(cfg *config.Config, source Source, store Store) *Importer {
	return &Importer{cfg: cfg, source: source, store: store, now: time.Now}
}

// Run performs one full pass: read, filter, then check and create each event
// in order. Only a feed failure is returned as an error; per-event failures
// are logged and counted in the report.
func (im *Importer) Run(ctx context.Context) (model.Report, error) {
	report := model.Report{StartedAt: im.now(), DryRun: im.cfg.DryRun}

	appLog.Info("reading events from ICS feed")
	events, err := im.ReadEvents(ctx)
	if err != nil {
		report.Error = err.Error()
		report.FinishedAt = im.now()
		return report, err
	}
	report.Fetched = len(events)

	recent := FilterRecent(events, im.cfg.WindowDays, im.now())
	report.Recent = len(recent)
	appLog.Info("recent events found", "count", len(recent), "total", len(events), "window_days", im.cfg.WindowDays)

	for _, ev := range recent {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			report.FinishedAt = im.now()
			return report, err
		}
		switch im.ImportEvent(ctx, ev) {
		case OutcomeCreated, OutcomeDryRun:
			report.Created++
		case OutcomeExists:
			report.Skipped++
		case OutcomeUnknownSkipped:
			report.Unknown++
		case OutcomeFailed:
			report.Failed++
		}
	}

	report.FinishedAt = im.now()
	appLog.Info("import pass finished",
		"created", report.Created,
		"skipped", report.Skipped,
		"unknown", report.Unknown,
		"failed", report.Failed,
		"dry_run", report.DryRun,
	)
	return report, nil
}

// ReadEvents fetches and parses the feed, expanding recurrences when enabled.
func (im *Importer) ReadEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	body, err := im.source.Fetch(ctx, im.cfg.ICSPath)
	if err != nil {
		return nil, err
	}

	parsed, err := ics.ParseICS(body, ics.ParseOptions{Location: im.cfg.Location()})
	if err != nil {
		return nil, err
	}

	if !im.cfg.ExpandRecurring {
		return ics.Events(parsed), nil
	}

	now := im.now()
	return ics.Expand(parsed, ics.ExpandConfig{
		RangeStart: Cutoff(now, im.cfg.WindowDays),
		RangeEnd:   now.UTC().AddDate(0, 0, im.cfg.HorizonDays),
	})
}

// Exists looks for a record whose title contains summary and whose due date
// equals due. A failed lookup is reported as ExistenceUnknown, never as
// not-found.
func (im *Importer) Exists(ctx context.Context, summary, due string) model.Existence {
	props := im.cfg.Notion.Properties
	resp, err := im.store.QueryDatabase(ctx, im.cfg.Notion.DatabaseID, notion.QueryRequest{
		Filter: &notion.Filter{And: []notion.Filter{
			{Property: props.Title, RichText: &notion.TextCondition{Contains: summary}},
			{Property: props.Due, Date: &notion.DateCondition{Equals: due}},
		}},
		PageSize: 1,
	})
	if err != nil {
		var apiErr *notion.APIError
		if errors.As(err, &apiErr) {
			appLog.Warn("database query failed", "status", apiErr.StatusCode, "body", apiErr.Body, "summary", summary)
		} else {
			appLog.Error("database query failed", err, "summary", summary)
		}
		return model.ExistenceUnknown
	}
	if len(resp.Results) > 0 {
		return model.ExistenceFound
	}
	return model.ExistenceNotFound
}

// ImportEvent creates a record for ev unless one already exists. At most one
// record is created per call.
func (im *Importer) ImportEvent(ctx context.Context, ev model.CalendarEvent) Outcome {
	due := ev.End.Format(DateLayout)

	switch im.Exists(ctx, ev.Summary, due) {
	case model.ExistenceFound:
		appLog.Info("event already exists", "summary", ev.Summary, "due", due)
		return OutcomeExists
	case model.ExistenceUnknown:
		if im.cfg.OnUnknown != config.OnUnknownCreate {
			appLog.Warn("skipping event, existence unknown", "summary", ev.Summary, "due", due)
			return OutcomeUnknownSkipped
		}
		appLog.Warn("existence unknown, creating anyway", "summary", ev.Summary, "due", due)
	}

	req := im.BuildPage(ev)

	if im.cfg.DryRun {
		appLog.Info("dry run: would create event",
			"summary", ev.Summary,
			"due", due,
			"blocks", len(req.Children),
		)
		return OutcomeDryRun
	}

	page, err := im.store.CreatePage(ctx, req)
	if err != nil {
		var apiErr *notion.APIError
		if errors.As(err, &apiErr) {
			appLog.Error("error creating event", fmt.Errorf("status %d", apiErr.StatusCode), "summary", ev.Summary, "body", apiErr.Body)
		} else {
			appLog.Error("error creating event", err, "summary", ev.Summary)
		}
		return OutcomeFailed
	}

	appLog.Info("event created", "summary", ev.Summary, "page_id", page.ID)
	return OutcomeCreated
}

// BuildPage renders the create-page request for ev.
func (im *Importer) BuildPage(ev model.CalendarEvent) notion.CreatePageRequest {
	n := im.cfg.Notion
	return notion.CreatePageRequest{
		Parent: notion.Parent{DatabaseID: n.DatabaseID},
		Properties: map[string]notion.PropertyValue{
			n.Properties.Title: {
				Title: []notion.RichText{{Text: notion.Text{Content: n.TitlePrefix + ev.Summary}}},
			},
			n.Properties.Created: {
				Date: &notion.DateValue{Start: ev.Start.Format(DateLayout)},
			},
			n.Properties.Due: {
				Date: &notion.DateValue{Start: ev.End.Format(DateLayout)},
			},
			n.Properties.Assignee: {
				People: []notion.User{{ID: n.AssigneeID}},
			},
		},
		Children: descriptionBlocks(ev.Description),
	}
}
