package view

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g4s-calendar/scraper"
)

var today = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func ts(y int, m time.Month, d, h int) scraper.Timestamp {
	return scraper.Timestamp{Time: time.Date(y, m, d, h, 0, 0, 0, time.UTC)}
}

func subject(s string) *string { return &s }

func TestHomeworkEntries(t *testing.T) {
	tasks := []scraper.HomeworkTask{
		{Title: "Later", Due: ts(2026, time.October, 20, 9)},
		{Title: "Past", Due: ts(2026, time.October, 14, 23)},
		{Title: "Tomorrow", Due: ts(2026, time.October, 16, 9)},
		{Title: "Today late", Due: ts(2026, time.October, 15, 18)},
		{Title: "Today early", Due: ts(2026, time.October, 15, 8)},
	}

	got := HomeworkEntries(tasks, today)
	require.Len(t, got, 4)
	titles := []string{got[0].Title, got[1].Title, got[2].Title, got[3].Title}
	assert.Equal(t, []string{"Today early", "Today late", "Tomorrow", "Later"}, titles)
	assert.Equal(t, "Today", got[0].DueLabel)
	assert.Equal(t, "Tomorrow", got[2].DueLabel)
	assert.Equal(t, "Tuesday 20 October 2026", got[3].DueLabel)

	assert.True(t, got[3].Due.Equal(time.Date(2026, time.October, 20, 9, 0, 0, 0, time.UTC)), "raw due time is kept")
	assert.Empty(t, tasks[0].DueLabel, "input is not modified")
}

func TestWeekStarting(t *testing.T) {
	cases := map[int]string{
		1: "1st of October 2026", 2: "2nd of October 2026", 3: "3rd of October 2026",
		4: "4th of October 2026", 11: "11th of October 2026", 12: "12th of October 2026",
		13: "13th of October 2026", 21: "21st of October 2026", 22: "22nd of October 2026",
		23: "23rd of October 2026", 31: "31st of October 2026",
	}
	for day, want := range cases {
		assert.Equal(t, want, WeekStarting(time.Date(2026, time.October, day, 0, 0, 0, 0, time.UTC)))
	}
}

func TestDayEntries(t *testing.T) {
	lessons := []scraper.Lesson{
		{Subject: subject("Rg"), Date: ts(2026, time.October, 12, 0), StartTime: "08:40", EndTime: "09:00",
			Teachers: scraper.TeacherList{{Role: "tutor", Name: "Ms Jones"}}, Room: "F1"},
		{Date: ts(2026, time.October, 12, 0), StartTime: "09:00", EndTime: "10:00"},
		{Subject: subject("Maths"), Date: ts(2026, time.October, 14, 0), StartTime: "09:00", EndTime: "10:00"},
		{Subject: subject("Club"), Date: ts(2026, time.October, 17, 0), StartTime: "09:00", EndTime: "10:00"},
	}

	days := DayEntries(lessons)
	require.Len(t, days[time.Monday], 2)
	assert.Equal(t, LessonEntry{Time: "08:40 - 09:00", Subject: "Form", Teacher: "Ms Jones", Room: "F1"}, days[time.Monday][0])
	assert.Equal(t, LessonEntry{Time: "09:00 - 10:00", Subject: "Free", Free: true}, days[time.Monday][1])
	assert.Len(t, days[time.Wednesday], 1)
	assert.Empty(t, days[time.Saturday])
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelTabNavigation(t *testing.T) {
	week := scraper.CurrentWeek(today)
	m := New(context.Background(), week, nil, nil, nil)

	next, _ := m.Update(key("left"))
	m = next.(Model)
	assert.Equal(t, homeworkTab, m.Active(), "left from Monday wraps to Homework")
	assert.Contains(t, m.View(), "No homework due")

	next, _ = m.Update(key("right"))
	m = next.(Model)
	assert.Equal(t, 0, m.Active())
	assert.Contains(t, m.View(), "Week Starting 12th of October 2026")

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelNextWeek(t *testing.T) {
	week := scraper.CurrentWeek(today)
	var requested scraper.Range
	load := func(_ context.Context, r scraper.Range) ([]scraper.Lesson, error) {
		requested = r
		return []scraper.Lesson{{Subject: subject("Physics"), Date: scraper.Timestamp{Time: r.From}, StartTime: "09:00", EndTime: "10:00"}}, nil
	}
	m := New(context.Background(), week, nil, nil, load)

	next, cmd := m.Update(key("n"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Loading next week")

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, week.NextWeek(), requested)
	assert.Equal(t, week.NextWeek(), m.Week())
	assert.Contains(t, m.View(), "Physics")
	assert.Contains(t, m.View(), "19th of October 2026")
}

func TestModelLoadFailureKeepsWeek(t *testing.T) {
	week := scraper.CurrentWeek(today)
	m := New(context.Background(), week, nil, nil, func(context.Context, scraper.Range) ([]scraper.Lesson, error) {
		return nil, errors.New("portal down")
	})

	_, cmd := m.Update(key("n"))
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, week, m.Week())
	assert.Contains(t, m.View(), "portal down")
}
