package scraper

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// RangeLayout is how the timetable endpoint expects its date bounds.
const RangeLayout = "Mon, 02 Jan 2006"

// Range is an inclusive span of days.
type Range struct {
	From time.Time
	To   time.Time
}

// AcademicYear returns the label of the school year containing now. The year
// rolls over in September.
func AcademicYear(now time.Time) string {
	if now.Month() >= time.September {
		return strconv.Itoa(now.Year() + 1)
	}
	return strconv.Itoa(now.Year())
}

// midnight truncates t to the start of its day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekdayIndex returns 0 for Monday through 6 for Sunday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// CurrentWeek returns Monday to Sunday of the week containing now.
func CurrentWeek(now time.Time) Range {
	monday := midnight(now).AddDate(0, 0, -weekdayIndex(now))
	return Range{From: monday, To: monday.AddDate(0, 0, 6)}
}

// NextWeek shifts the range forward by seven days.
func (r Range) NextWeek() Range {
	return Range{From: r.From.AddDate(0, 0, 7), To: r.To.AddDate(0, 0, 7)}
}

// Bounds formats the range the way the timetable endpoint wants it.
func (r Range) Bounds() (start, end string) {
	return r.From.Format(RangeLayout) + " 00:00:00 GMT", r.To.Format(RangeLayout) + " 23:59:59 GMT"
}

// StartEndOfWeek returns the formatted bounds of the current week.
func StartEndOfWeek(now time.Time) (string, string) {
	return CurrentWeek(now).Bounds()
}

// ParseDayMonthYear parses a DD/MM/YYYY date in loc.
func ParseDayMonthYear(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("02/01/2006", s, loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q, expected DD/MM/YYYY", s)
	}
	return t, nil
}

// HomeworkCutoff returns the Sunday before the week containing now. Homework
// due on or after this day is still considered relevant.
func HomeworkCutoff(now time.Time) time.Time {
	return midnight(now).AddDate(0, 0, -(weekdayIndex(now) + 1))
}

// clockOn combines the day of date with an HH:MM clock in loc.
func clockOn(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid clock %q", clock)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
