package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"g4s-calendar/scraper"
)

const (
	// UpcomingHorizon is how many upcoming events the all-day check inspects.
	UpcomingHorizon = 10
	// ScanLimit caps how many events Deduplicate looks at.
	ScanLimit = 2500
)

// ProgressFunc is called after each item of a batch with the number of
// items handled so far and the batch size.
type ProgressFunc func(completed, total int)

// ReconciliationWarning is a non-fatal problem met while scanning events.
type ReconciliationWarning struct {
	EventID string
	Err     error
}

func (w *ReconciliationWarning) Error() string {
	return fmt.Sprintf("event %s skipped: %v", w.EventID, w.Err)
}

func (w *ReconciliationWarning) Unwrap() error { return w.Err }

// DedupReport summarises a Deduplicate run.
type DedupReport struct {
	Scanned  int
	Deleted  int
	Warnings []*ReconciliationWarning
}

// Reconciler decides whether candidate events must be created.
type Reconciler struct {
	svc CalendarService
	log hclog.Logger

	// TimeZone is attached to timed events.
	TimeZone string
	// Now anchors the all-day existence check.
	Now func() time.Time
}

// New returns a reconciler writing through svc.
func New(svc CalendarService, logger hclog.Logger) *Reconciler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reconciler{
		svc:      svc,
		log:      logger.Named("reconcile"),
		TimeZone: DefaultTimeZone,
		Now:      time.Now,
	}
}

// EventExists reports whether an event with the candidate's summary
// intersects the candidate's time window. Descriptions are not compared.
func (r *Reconciler) EventExists(ctx context.Context, c Candidate) (bool, error) {
	events, err := r.svc.ListWindow(ctx, c.Start, c.End)
	if err != nil {
		return false, errors.Wrap(err, "listing events in window")
	}
	return hasSummary(events, c.Summary), nil
}

// DayEventExists reports whether one of the next UpcomingHorizon events has
// the candidate's summary. The candidate's date is not consulted, so events
// beyond the horizon are missed and same-titled events on other days match.
func (r *Reconciler) DayEventExists(ctx context.Context, c Candidate) (bool, error) {
	events, err := r.svc.ListUpcoming(ctx, r.Now().UTC(), UpcomingHorizon)
	if err != nil {
		return false, errors.Wrap(err, "listing upcoming events")
	}
	return hasSummary(events, c.Summary), nil
}

func hasSummary(events []Event, summary string) bool {
	for _, e := range events {
		if e.Summary == summary {
			return true
		}
	}
	return false
}

// CreateEvent inserts a timed event unless one with the same title already
// exists in its window. It reports whether an event was created.
func (r *Reconciler) CreateEvent(ctx context.Context, title, description string, start, end time.Time) (bool, error) {
	tz := r.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	c := Candidate{
		Summary:     title,
		Description: description,
		ColorID:     ColorID(title),
		TimeZone:    tz,
		Start:       start,
		End:         end,
	}

	exists, err := r.EventExists(ctx, c)
	if err != nil {
		return false, err
	}
	if exists {
		r.log.Info("event already exists", "title", title, "start", start.Format(time.RFC3339))
		return false, nil
	}
	if _, err := r.svc.Insert(ctx, c); err != nil {
		return false, errors.Wrapf(err, "creating event %q", title)
	}
	r.log.Info("created event", "title", title, "start", start.Format(time.RFC3339))
	return true, nil
}

// CreateDayEvent inserts an all-day event spanning [start, end) unless the
// upcoming events already contain its title.
func (r *Reconciler) CreateDayEvent(ctx context.Context, title, description string, start, end time.Time) (bool, error) {
	c := Candidate{
		Summary:     title,
		Description: description,
		ColorID:     ColorID(title),
		AllDay:      true,
		Start:       start,
		End:         end,
	}

	exists, err := r.DayEventExists(ctx, c)
	if err != nil {
		return false, err
	}
	if exists {
		r.log.Info("event already exists", "title", title, "date", start.Format(time.DateOnly))
		return false, nil
	}
	if _, err := r.svc.Insert(ctx, c); err != nil {
		return false, errors.Wrapf(err, "creating day event %q", title)
	}
	r.log.Info("created event", "title", title, "date", start.Format(time.DateOnly))
	return true, nil
}

// SyncLessons mirrors lessons into the calendar one at a time, in order.
// Free periods are skipped. Events created before a failure stay created.
func (r *Reconciler) SyncLessons(ctx context.Context, lessons []scraper.Lesson, progress ProgressFunc) (int, error) {
	created := 0
	for i, lesson := range lessons {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if !lesson.IsFree() {
			start, end, err := lesson.Window(time.UTC)
			if err != nil {
				return created, errors.Wrapf(err, "lesson %q on %s", lesson.SubjectName(), lesson.Date.Format(time.DateOnly))
			}
			ok, err := r.CreateEvent(ctx, lesson.SubjectName(), LessonDescription(lesson), start, end)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
		if progress != nil {
			progress(i+1, len(lessons))
		}
	}
	return created, nil
}

// LessonDescription lists the class code, the first teacher and the room.
func LessonDescription(l scraper.Lesson) string {
	return l.GroupCode + "\n" + l.Teachers.First() + "\n" + l.Room
}

// SyncHomework mirrors homework tasks as all-day events on their due date.
func (r *Reconciler) SyncHomework(ctx context.Context, tasks []scraper.HomeworkTask, progress ProgressFunc) (int, error) {
	created := 0
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		due := task.DueDay()
		ok, err := r.CreateDayEvent(ctx, task.Title, HomeworkDescription(task.Details), due, due.AddDate(0, 0, 1))
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
		if progress != nil {
			progress(i+1, len(tasks))
		}
	}
	return created, nil
}

// SyncCandidates mirrors arbitrary events, such as those read from a
// calendar file, using the timed or all-day rules as appropriate.
func (r *Reconciler) SyncCandidates(ctx context.Context, candidates []Candidate, progress ProgressFunc) (int, error) {
	created := 0
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		create := r.CreateEvent
		if c.AllDay {
			create = r.CreateDayEvent
		}
		ok, err := create(ctx, c.Summary, c.Description, c.Start, c.End)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
		if progress != nil {
			progress(i+1, len(candidates))
		}
	}
	return created, nil
}

// escapedLineBreaks turns literal escape sequences into real line breaks.
var escapedLineBreaks = strings.NewReplacer(`\r\n`, "\n", `\r`, "\n")

// HomeworkDescription prepares homework details for an event description.
func HomeworkDescription(details string) string {
	return escapedLineBreaks.Replace(details)
}

// Deduplicate deletes every event sharing a title and start date with an
// event seen earlier in the scan. At most ScanLimit events are scanned.
// Malformed events and failed deletions are recorded as warnings.
func (r *Reconciler) Deduplicate(ctx context.Context) (DedupReport, error) {
	var report DedupReport

	events, err := r.svc.ListAll(ctx, ScanLimit)
	if err != nil {
		return report, errors.Wrap(err, "listing events")
	}
	report.Scanned = len(events)

	type key struct{ summary, day string }
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		day, err := e.StartDate()
		if err != nil {
			report.Warnings = append(report.Warnings, r.warn(e, err))
			continue
		}
		k := key{e.Summary, day}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			continue
		}
		if err := r.svc.Delete(ctx, e.ID); err != nil {
			report.Warnings = append(report.Warnings, r.warn(e, err))
			continue
		}
		report.Deleted++
		r.log.Info("deleted duplicate event", "title", e.Summary, "date", day)
	}

	r.log.Info("duplicate events removed", "scanned", report.Scanned, "deleted", report.Deleted, "warnings", len(report.Warnings))
	return report, nil
}

func (r *Reconciler) warn(e Event, err error) *ReconciliationWarning {
	w := &ReconciliationWarning{EventID: e.ID, Err: err}
	r.log.Warn("skipping event", "id", e.ID, "title", e.Summary, "error", err)
	return w
}
