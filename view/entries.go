package view

import (
	"fmt"
	"sort"
	"time"

	"g4s-calendar/scraper"
)

// HomeworkDateLayout renders due dates further away than tomorrow.
const HomeworkDateLayout = "Monday 02 January 2006"

// Weekdays are the timetable tabs, in order.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// LessonEntry is one row of a timetable tab.
type LessonEntry struct {
	Time    string
	Subject string
	Teacher string
	Room    string
	Free    bool
}

// DayEntries groups lessons by school day. Weekend lessons are dropped.
func DayEntries(lessons []scraper.Lesson) map[time.Weekday][]LessonEntry {
	days := make(map[time.Weekday][]LessonEntry, len(Weekdays))
	for _, l := range lessons {
		wd := l.Date.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		entry := LessonEntry{Time: l.StartTime + " - " + l.EndTime}
		if l.IsFree() {
			entry.Free = true
			entry.Subject = "Free"
		} else {
			entry.Subject = scraper.NormalizeSubject(l.SubjectName())
			entry.Teacher = l.Teachers.First()
			entry.Room = l.Room
		}
		days[wd] = append(days[wd], entry)
	}
	return days
}

// HomeworkEntries returns the tasks due today or later, ordered by their raw
// due time, with DueLabel set for display.
func HomeworkEntries(tasks []scraper.HomeworkTask, today time.Time) []scraper.HomeworkTask {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	sorted := append([]scraper.HomeworkTask(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Due.Before(sorted[j].Due.Time) })

	out := make([]scraper.HomeworkTask, 0, len(sorted))
	for _, task := range sorted {
		due := task.DueDay()
		switch {
		case due.Before(day):
			continue
		case due.Equal(day):
			task.DueLabel = "Today"
		case due.Equal(day.AddDate(0, 0, 1)):
			task.DueLabel = "Tomorrow"
		default:
			task.DueLabel = due.Format(HomeworkDateLayout)
		}
		out = append(out, task)
	}
	return out
}

// WeekStarting renders a day as "12th of October 2026".
func WeekStarting(t time.Time) string {
	day := t.Day()
	suffix := "th"
	if day < 11 || day > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s of %s", day, suffix, t.Format("January 2006"))
}
