// Package calendarfile exports timetables and homework as iCalendar files and
// reads them back as calendar candidates.
package calendarfile

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"g4s-calendar/reconcile"
	"g4s-calendar/scraper"
)

const productID = "-//g4s-calendar//timetable//EN"

// EventID derives a stable UID from an event's title and bounds.
func EventID(summary string, start, end time.Time) string {
	hash := md5.New()
	hash.Write([]byte(summary + start.UTC().Format(time.RFC3339) + end.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(hash.Sum(nil))
}

// Build renders lessons as timed events and homework as all-day events on
// their due date. Free periods are left out.
func Build(lessons []scraper.Lesson, tasks []scraper.HomeworkTask, stamp time.Time) (*ics.Calendar, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Go4Schools")

	for _, lesson := range lessons {
		if lesson.IsFree() {
			continue
		}
		start, end, err := lesson.Window(time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "lesson %q", lesson.SubjectName())
		}
		event := cal.AddEvent(EventID(lesson.SubjectName(), start, end))
		event.SetDtStampTime(stamp)
		event.SetSummary(lesson.SubjectName())
		event.SetDescription(reconcile.LessonDescription(lesson))
		if lesson.Room != "" {
			event.SetLocation(lesson.Room)
		}
		event.SetStartAt(start)
		event.SetEndAt(end)
	}

	for _, task := range tasks {
		due := task.DueDay()
		next := due.AddDate(0, 0, 1)
		event := cal.AddEvent(EventID(task.Title, due, next))
		event.SetDtStampTime(stamp)
		event.SetSummary(task.Title)
		event.SetDescription(reconcile.HomeworkDescription(task.Details))
		event.SetAllDayStartAt(due)
		event.SetAllDayEndAt(next)
	}
	return cal, nil
}

// Write serializes cal to path, replacing any previous file.
func Write(path string, cal *ics.Calendar) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Read parses an iCalendar document into candidates. Events without a usable
// start are skipped and logged; an event whose end does not follow its start
// is stretched to one hour, or one day when it is all-day.
func Read(r io.Reader, timeZone string, logger hclog.Logger) ([]reconcile.Candidate, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing calendar")
	}

	var out []reconcile.Candidate
	for _, event := range cal.Events() {
		if event == nil {
			continue
		}
		c, err := candidate(event, timeZone)
		if err != nil {
			logger.Warn("skipping calendar entry", "uid", event.Id(), "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func candidate(event *ics.VEvent, timeZone string) (reconcile.Candidate, error) {
	c := reconcile.Candidate{TimeZone: timeZone}
	if p := event.GetProperty(ics.ComponentPropertySummary); p != nil {
		c.Summary = p.Value
	}
	if c.Summary == "" {
		return c, errors.New("missing summary")
	}
	if p := event.GetProperty(ics.ComponentPropertyDescription); p != nil {
		c.Description = unescapeText(p.Value)
	}
	c.ColorID = reconcile.ColorID(c.Summary)

	startProp := event.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return c, errors.New("missing DTSTART")
	}
	start, allDay, err := parseTime(startProp)
	if err != nil {
		return c, errors.Wrap(err, "DTSTART")
	}
	c.Start, c.AllDay = start, allDay

	if endProp := event.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		if c.End, _, err = parseTime(endProp); err != nil {
			return c, errors.Wrap(err, "DTEND")
		}
	}
	if !c.End.After(c.Start) {
		if c.AllDay {
			c.End = c.Start.AddDate(0, 0, 1)
		} else {
			c.End = c.Start.Add(time.Hour)
		}
	}
	return c, nil
}

func parseTime(p *ics.IANAProperty) (time.Time, bool, error) {
	val := strings.TrimSpace(p.Value)
	if strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(val, "T") {
		t, err := time.Parse("20060102", val)
		return t, true, err
	}
	if strings.HasSuffix(val, "Z") {
		t, err := time.Parse("20060102T150405Z", val)
		return t, false, err
	}
	loc := time.UTC
	if tzid := param(p, "TZID"); tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return time.Time{}, false, errors.Wrapf(err, "unknown TZID %q", tzid)
		}
		loc = l
	}
	t, err := time.ParseInLocation("20060102T150405", val, loc)
	return t, false, err
}

func param(p *ics.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

var textEscapes = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textEscapes.Replace(s)
}
