package reconcile

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// DefaultTimeZone is attached to timed events when no zone is configured.
const DefaultTimeZone = "Greenwich"

// CalendarService is the calendar capability the reconciler drives.
type CalendarService interface {
	// ListWindow returns single events intersecting [timeMin, timeMax],
	// ordered by start time.
	ListWindow(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
	// ListUpcoming returns at most max single events starting from from,
	// ordered by start time.
	ListUpcoming(ctx context.Context, from time.Time, max int) ([]Event, error)
	// ListAll returns at most max stored events in no particular order.
	ListAll(ctx context.Context, max int) ([]Event, error)
	Insert(ctx context.Context, c Candidate) (Event, error)
	Delete(ctx context.Context, id string) error
}

// EventTime is the start or end of a stored event. All-day events carry Date,
// timed events carry DateTime.
type EventTime struct {
	Date     string
	DateTime string
	TimeZone string
}

// Event is an event already stored in the calendar.
type Event struct {
	ID      string
	Summary string
	Start   *EventTime
	End     *EventTime
}

// StartDate returns the YYYY-MM-DD part of the event start.
func (e Event) StartDate() (string, error) {
	if e.Start == nil {
		return "", errors.New("event has no start")
	}
	if e.Start.Date != "" {
		return e.Start.Date, nil
	}
	if e.Start.DateTime != "" {
		day, _, _ := strings.Cut(e.Start.DateTime, "T")
		return day, nil
	}
	return "", errors.New("event start is empty")
}

// Candidate is an event that has not yet been confirmed to exist remotely.
type Candidate struct {
	Summary     string
	Description string
	ColorID     string
	TimeZone    string
	AllDay      bool
	// Start and End bound a timed event. For all-day events only the dates
	// matter and End is exclusive.
	Start time.Time
	End   time.Time
}

// ColorID maps a title onto one of the eleven calendar colour slots using
// the code of its first character.
func ColorID(title string) string {
	code := 0
	if title != "" {
		r, _ := utf8.DecodeRuneInString(title)
		code = int(r)
	}
	return strconv.Itoa(code%11 + 1)
}
