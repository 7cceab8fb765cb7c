// Package view is a tabbed terminal display of a week's timetable and the
// pending homework.
package view

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"g4s-calendar/scraper"
)

var (
	lessonTime = lipgloss.NewStyle().Foreground(lipgloss.Color("#0CCE6B"))
	freeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9B9FB5"))
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tabStyle   = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#9B9FB5"))
	tabActive  = tabStyle.Foreground(lipgloss.Color("#0CCE6B")).Bold(true).Underline(true)
	bodyStyle  = lipgloss.NewStyle().Padding(1, 2).Width(84)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
)

// WeekLoader fetches the lessons of a range.
type WeekLoader func(ctx context.Context, r scraper.Range) ([]scraper.Lesson, error)

// WeekLoadedMsg carries the result of loading a week.
type WeekLoadedMsg struct {
	Range   scraper.Range
	Lessons []scraper.Lesson
	Err     error
}

// homeworkTab follows the weekday tabs.
var homeworkTab = len(Weekdays)

// Model is the Bubble Tea model for the timetable window.
type Model struct {
	ctx      context.Context
	load     WeekLoader
	week     scraper.Range
	days     map[time.Weekday][]LessonEntry
	homework []scraper.HomeworkTask
	active   int
	loading  bool
	err      error
}

// New builds a model for the given week. homework should already be filtered
// and labelled with HomeworkEntries.
func New(ctx context.Context, week scraper.Range, lessons []scraper.Lesson, homework []scraper.HomeworkTask, load WeekLoader) Model {
	return Model{
		ctx:      ctx,
		load:     load,
		week:     week,
		days:     DayEntries(lessons),
		homework: homework,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case WeekLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.week = msg.Range
		m.days = DayEntries(msg.Lessons)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "tab":
			m.active = (m.active + 1) % (homeworkTab + 1)
		case "left", "h", "shift+tab":
			m.active = (m.active + homeworkTab) % (homeworkTab + 1)
		case "n":
			if m.load != nil && !m.loading {
				m.loading = true
				return m, m.loadWeek(m.week.NextWeek())
			}
		}
	}
	return m, nil
}

func (m Model) loadWeek(r scraper.Range) tea.Cmd {
	ctx, load := m.ctx, m.load
	return func() tea.Msg {
		lessons, err := load(ctx, r)
		return WeekLoadedMsg{Range: r, Lessons: lessons, Err: err}
	}
}

// Week returns the range currently displayed.
func (m Model) Week() scraper.Range { return m.week }

// Active returns the index of the selected tab.
func (m Model) Active() int { return m.active }

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Week Starting " + WeekStarting(m.week.From)))
	b.WriteString("\n\n")

	tabs := make([]string, 0, homeworkTab+1)
	for i, wd := range Weekdays {
		tabs = append(tabs, m.tab(i, wd.String()))
	}
	tabs = append(tabs, m.tab(homeworkTab, "Homework"))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")

	var body string
	if m.active == homeworkTab {
		body = m.renderHomework()
	} else {
		body = m.renderDay(Weekdays[m.active])
	}
	b.WriteString(bodyStyle.Render(body))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.loading {
		b.WriteString(helpStyle.Render("Loading next week..."))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("←/→ switch tab • n next week • q quit"))
	return b.String()
}

func (m Model) tab(i int, label string) string {
	if i == m.active {
		return tabActive.Render(label)
	}
	return tabStyle.Render(label)
}

func (m Model) renderDay(wd time.Weekday) string {
	entries := m.days[wd]
	if len(entries) == 0 {
		return freeStyle.Render("No lessons")
	}
	var b strings.Builder
	for _, e := range entries {
		if e.Free {
			b.WriteString(freeStyle.Render(e.Time + "  " + e.Subject))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(lessonTime.Render(e.Time))
		b.WriteString("\n")
		b.WriteString(e.Subject + "\n")
		if e.Teacher != "" {
			b.WriteString(e.Teacher + "\n")
		}
		if e.Room != "" {
			b.WriteString("Room: " + e.Room + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderHomework() string {
	if len(m.homework) == 0 {
		return freeStyle.Render("No homework due")
	}
	var b strings.Builder
	for _, task := range m.homework {
		b.WriteString(lessonTime.Render(task.Title))
		b.WriteString("\n")
		b.WriteString(task.Subject + "\n")
		if task.Details != "" {
			b.WriteString(strings.TrimSpace(task.Details) + "\n")
		}
		b.WriteString("Due: " + task.DueLabel + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
