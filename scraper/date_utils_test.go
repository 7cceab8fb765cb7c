package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcademicYear(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"end of August", time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC), "2026"},
		{"start of September", time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), "2027"},
		{"December", time.Date(2026, time.December, 31, 12, 0, 0, 0, time.UTC), "2027"},
		{"January after rollover", time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), "2027"},
		{"June", time.Date(2027, time.June, 15, 0, 0, 0, 0, time.UTC), "2027"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AcademicYear(tt.now))
		})
	}
}

func TestCurrentWeekEveryWeekday(t *testing.T) {
	monday := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 7; offset++ {
		now := monday.AddDate(0, 0, offset).Add(13 * time.Hour)
		week := CurrentWeek(now)
		assert.Equal(t, monday, week.From, "offset %d", offset)
		assert.Equal(t, monday.AddDate(0, 0, 6), week.To, "offset %d", offset)
	}
}

func TestStartEndOfWeek(t *testing.T) {
	start, end := StartEndOfWeek(time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, "Mon, 12 Oct 2026 00:00:00 GMT", start)
	assert.Equal(t, "Sun, 18 Oct 2026 23:59:59 GMT", end)
}

func TestNextWeek(t *testing.T) {
	next := CurrentWeek(time.Date(2026, time.December, 30, 0, 0, 0, 0, time.UTC)).NextWeek()
	start, end := next.Bounds()
	assert.Equal(t, "Mon, 04 Jan 2027 00:00:00 GMT", start)
	assert.Equal(t, "Sun, 10 Jan 2027 23:59:59 GMT", end)
}

func TestParseDayMonthYear(t *testing.T) {
	got, err := ParseDayMonthYear("05/11/2026", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.November, 5, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDayMonthYear("2026-11-05", time.UTC)
	assert.Error(t, err)
}

func TestHomeworkCutoff(t *testing.T) {
	sunday := time.Date(2026, time.October, 11, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 7; offset++ {
		now := time.Date(2026, time.October, 12+offset, 18, 0, 0, 0, time.UTC)
		assert.Equal(t, sunday, HomeworkCutoff(now), "weekday offset %d", offset)
	}
}

func TestFilterHomeworkEveryWeekday(t *testing.T) {
	at := func(y int, m time.Month, d, h int) Timestamp {
		return Timestamp{time.Date(y, m, d, h, 0, 0, 0, time.UTC)}
	}
	tasks := []HomeworkTask{
		{Title: "saturday before", Due: at(2026, time.October, 10, 23)},
		{Title: "sunday morning", Due: at(2026, time.October, 11, 8)},
		{Title: "this week", Due: at(2026, time.October, 14, 9)},
		{Title: "next month", Due: at(2026, time.November, 20, 9)},
	}

	for offset := 0; offset < 7; offset++ {
		now := time.Date(2026, time.October, 12+offset, 20, 0, 0, 0, time.UTC)
		got := FilterHomework(tasks, now)

		var titles []string
		for _, task := range got {
			titles = append(titles, task.Title)
		}
		assert.Equal(t, []string{"sunday morning", "this week", "next month"}, titles, "weekday offset %d", offset)
	}
}

func TestLessonWindow(t *testing.T) {
	lesson := Lesson{
		Date:      Timestamp{time.Date(2026, time.October, 13, 0, 0, 0, 0, time.UTC)},
		StartTime: "09:05",
		EndTime:   "10:10",
	}
	start, end, err := lesson.Window(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 13, 9, 5, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.October, 13, 10, 10, 0, 0, time.UTC), end)

	lesson.EndTime = "late"
	_, _, err = lesson.Window(time.UTC)
	assert.Error(t, err)
}
