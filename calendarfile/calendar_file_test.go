package calendarfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g4s-calendar/scraper"
)

var stamp = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func subject(s string) *string { return &s }

func fixtures() ([]scraper.Lesson, []scraper.HomeworkTask) {
	day := scraper.Timestamp{Time: time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)}
	lessons := []scraper.Lesson{
		{Subject: subject("Maths"), Date: day, StartTime: "09:00", EndTime: "10:00", GroupCode: "12C", Room: "M4",
			Teachers: scraper.TeacherList{{Role: "main", Name: "Mr Smith"}}},
		{Date: day, StartTime: "10:00", EndTime: "11:00"},
	}
	tasks := []scraper.HomeworkTask{
		{Title: "Essay", Details: "Write it", Due: scraper.Timestamp{Time: time.Date(2026, time.October, 20, 9, 0, 0, 0, time.UTC)}},
	}
	return lessons, tasks
}

func TestEventIDStable(t *testing.T) {
	start := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	a := EventID("Maths", start, start.Add(time.Hour))
	assert.Len(t, a, 32)
	assert.Equal(t, a, EventID("Maths", start.In(time.FixedZone("X", 3600)), start.Add(time.Hour)))
	assert.NotEqual(t, a, EventID("Physics", start, start.Add(time.Hour)))
}

func TestBuild(t *testing.T) {
	lessons, tasks := fixtures()
	cal, err := Build(lessons, tasks, stamp)
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2, "free period is left out")

	out := cal.Serialize()
	assert.Contains(t, out, "SUMMARY:Maths")
	assert.Contains(t, out, "DTSTART:20261016T090000Z")
	assert.Contains(t, out, "DTEND:20261016T100000Z")
	assert.Contains(t, out, "SUMMARY:Essay")
	assert.Contains(t, out, "20261020")
	assert.Contains(t, out, "20261021")
}

func TestBuildRejectsBadClock(t *testing.T) {
	lessons, _ := fixtures()
	lessons[0].EndTime = "late"
	_, err := Build(lessons, nil, stamp)
	assert.Error(t, err)
}

func TestWriteAndReadBack(t *testing.T) {
	lessons, tasks := fixtures()
	cal, err := Build(lessons, tasks, stamp)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "g4s.ics")
	require.NoError(t, Write(path, cal))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	candidates, err := Read(f, "Greenwich", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	maths := candidates[0]
	assert.Equal(t, "Maths", maths.Summary)
	assert.False(t, maths.AllDay)
	assert.Equal(t, "Greenwich", maths.TimeZone)
	assert.True(t, maths.Start.Equal(time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)))
	assert.True(t, maths.End.Equal(time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1", maths.ColorID)

	essay := candidates[1]
	assert.True(t, essay.AllDay)
	assert.Equal(t, "2026-10-20", essay.Start.Format(time.DateOnly))
	assert.Equal(t, "2026-10-21", essay.End.Format(time.DateOnly))
}

const external = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a\r\n" +
	"SUMMARY:Trip\r\n" +
	"DESCRIPTION:Bring lunch\\nand a coat\r\n" +
	"DTSTART;TZID=Europe/London:20261016T090000\r\n" +
	"DTEND;TZID=Europe/London:20261016T090000\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b\r\n" +
	"DTSTART:20261016T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:c\r\n" +
	"SUMMARY:No start\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:d\r\n" +
	"SUMMARY:Inset day\r\n" +
	"DTSTART;VALUE=DATE:20261023\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestReadExternalCalendar(t *testing.T) {
	candidates, err := Read(strings.NewReader(external), "Europe/London", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "entries without a summary or start are skipped")

	trip := candidates[0]
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	assert.True(t, trip.Start.Equal(time.Date(2026, time.October, 16, 9, 0, 0, 0, london)))
	assert.Equal(t, time.Hour, trip.End.Sub(trip.Start), "empty window is stretched to an hour")
	assert.Equal(t, "Bring lunch\nand a coat", trip.Description)

	inset := candidates[1]
	assert.True(t, inset.AllDay)
	assert.Equal(t, "2026-10-24", inset.End.Format(time.DateOnly))
}

func TestReadMalformed(t *testing.T) {
	_, err := Read(strings.NewReader("not a calendar"), "", nil)
	assert.Error(t, err)
}
