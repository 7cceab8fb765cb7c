package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"g4s-calendar/scraper"
	"g4s-calendar/view"
)

var (
	fromDate string
	toDate   string
)

// weekRange turns the --from/--to flags into a range; nil means the current week.
func weekRange() (*scraper.Range, error) {
	if fromDate == "" && toDate == "" {
		return nil, nil
	}
	if fromDate == "" || toDate == "" {
		return nil, errors.New("--from and --to must be given together")
	}
	from, err := scraper.ParseDayMonthYear(fromDate, time.Local)
	if err != nil {
		return nil, err
	}
	to, err := scraper.ParseDayMonthYear(toDate, time.Local)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, errors.New("--to is before --from")
	}
	return &scraper.Range{From: from, To: to}, nil
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fromDate, "from", "", "first day, DD/MM/YYYY")
	cmd.Flags().StringVar(&toDate, "to", "", "last day, DD/MM/YYYY")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the configured credentials are accepted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if a.cfg.Password == "" || a.cfg.Username == "" {
			// Prompted credentials get retries through the login loop.
			if _, err := a.session(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Login details verified.")
			return nil
		}
		ok, err := a.portal.Verify(cmd.Context(), a.cfg.Username, a.cfg.Password)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("login details incorrect")
		}
		fmt.Fprintln(a.out, "Login details verified.")
		return nil
	},
}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Print the timetable, the current week by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := weekRange()
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		s, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		lessons, err := a.portal.GetTimetable(cmd.Context(), s, r)
		if err != nil {
			return err
		}
		printTimetable(a.out, lessons)
		return nil
	},
}

func printTimetable(w io.Writer, lessons []scraper.Lesson) {
	days := view.DayEntries(lessons)
	for _, wd := range view.Weekdays {
		entries := days[wd]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintln(w, wd)
		for _, e := range entries {
			if e.Free {
				fmt.Fprintf(w, "  %s  %s\n", e.Time, e.Subject)
				continue
			}
			fmt.Fprintf(w, "  %s  %s, %s, Room: %s\n", e.Time, e.Subject, e.Teacher, e.Room)
		}
	}
}

var homeworkCmd = &cobra.Command{
	Use:   "homework",
	Short: "Print homework that is still due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		s, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		tasks, err := a.portal.GetHomework(cmd.Context(), s)
		if err != nil {
			return err
		}
		for _, task := range view.HomeworkEntries(tasks, time.Now()) {
			fmt.Fprintf(a.out, "%s (%s)\n  Due: %s\n", task.Title, task.Subject, task.DueLabel)
		}
		return nil
	},
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Print the raw attendance payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		s, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		body, err := a.portal.GetAttendance(cmd.Context(), s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(body))
		return err
	},
}

var gradesCmd = &cobra.Command{
	Use:   "grades",
	Short: "Print the raw grades payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		s, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		body, err := a.portal.GetGrades(cmd.Context(), s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(body))
		return err
	},
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse the timetable and homework in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := weekRange()
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		s, err := a.session(ctx)
		if err != nil {
			return err
		}

		week := scraper.CurrentWeek(time.Now())
		if r != nil {
			week = *r
		}
		lessons, err := a.portal.GetTimetable(ctx, s, &week)
		if err != nil {
			return err
		}
		tasks, err := a.portal.GetHomework(ctx, s)
		if err != nil {
			return err
		}

		m := view.New(ctx, week, lessons, view.HomeworkEntries(tasks, time.Now()),
			func(ctx context.Context, r scraper.Range) ([]scraper.Lesson, error) {
				return a.portal.GetTimetable(ctx, s, &r)
			})
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

func init() {
	addRangeFlags(timetableCmd)
	addRangeFlags(viewCmd)
	rootCmd.AddCommand(verifyCmd, timetableCmd, homeworkCmd, attendanceCmd, gradesCmd, viewCmd)
}
