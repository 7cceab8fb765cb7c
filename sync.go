package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"g4s-calendar/calendarfile"
	"g4s-calendar/reconcile"
	"g4s-calendar/scraper"
	"g4s-calendar/uploader"
)

var (
	exportPath string
	publish    bool
	runNow     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy lessons or homework into Google Calendar",
}

var syncLessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Create calendar events for the timetable, the current week by default",
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
		rec, err := a.reconciler(ctx)
		if err != nil {
			return err
		}
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		return a.syncLessons(ctx, rec, s, r)
	},
}

var syncHomeworkCmd = &cobra.Command{
	Use:   "homework",
	Short: "Create all-day calendar events for homework that is still due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rec, err := a.reconciler(ctx)
		if err != nil {
			return err
		}
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		return a.syncHomework(ctx, rec, s)
	},
}

func (a *app) syncLessons(ctx context.Context, rec *reconcile.Reconciler, s *scraper.Session, r *scraper.Range) error {
	lessons, err := a.portal.GetTimetable(ctx, s, r)
	if err != nil {
		return err
	}
	created, err := rec.SyncLessons(ctx, lessons, a.progress("Lessons"))
	if err != nil {
		return errors.Wrapf(err, "lesson sync stopped after creating %d events", created)
	}
	fmt.Fprintf(a.out, "Lessons synced, %d events created.\n", created)
	return nil
}

func (a *app) syncHomework(ctx context.Context, rec *reconcile.Reconciler, s *scraper.Session) error {
	tasks, err := a.portal.GetHomework(ctx, s)
	if err != nil {
		return err
	}
	created, err := rec.SyncHomework(ctx, tasks, a.progress("Homework"))
	if err != nil {
		return errors.Wrapf(err, "homework sync stopped after creating %d events", created)
	}
	fmt.Fprintf(a.out, "Homework synced, %d events created.\n", created)
	return nil
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Delete calendar events sharing a title and start date",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		rec, err := a.reconciler(cmd.Context())
		if err != nil {
			return err
		}
		report, err := rec.Deduplicate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Scanned %d events, deleted %d duplicates.\n", report.Scanned, report.Deleted)
		for _, w := range report.Warnings {
			fmt.Fprintln(a.out, "warning:", w)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the timetable and homework to an iCalendar file",
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
		path := exportPath
		if path == "" {
			path = a.cfg.ExportPath
		}
		if err := a.export(ctx, s, r, path); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Calendar written to", path)
		if publish {
			return a.publish(ctx, path)
		}
		return nil
	},
}

func (a *app) export(ctx context.Context, s *scraper.Session, r *scraper.Range, path string) error {
	lessons, err := a.portal.GetTimetable(ctx, s, r)
	if err != nil {
		return err
	}
	tasks, err := a.portal.GetHomework(ctx, s)
	if err != nil {
		return err
	}
	cal, err := calendarfile.Build(lessons, tasks, time.Now())
	if err != nil {
		return err
	}
	return calendarfile.Write(path, cal)
}

func (a *app) publish(ctx context.Context, path string) error {
	gh := a.cfg.GitHub
	if gh == nil || gh.Token == "" || gh.Repo == "" {
		return errors.Errorf("github.token and github.repo must be set in %s to publish", configPath)
	}
	target := gh.Path
	if target == "" {
		target = "g4s.ics"
	}
	if err := uploader.NewGitHub(gh.Token, a.log).UploadFile(ctx, gh.Repo, target, path); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published to %s/%s\n", gh.Repo, target)
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create calendar events from an iCalendar file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		candidates, err := calendarfile.Read(f, a.cfg.TimeZone, a.log)
		if err != nil {
			return err
		}
		rec, err := a.reconciler(cmd.Context())
		if err != nil {
			return err
		}
		created, err := rec.SyncCandidates(cmd.Context(), candidates, a.progress("Events"))
		if err != nil {
			return errors.Wrapf(err, "import stopped after creating %d events", created)
		}
		fmt.Fprintf(a.out, "Imported %d of %d events.\n", created, len(candidates))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync lessons and homework on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rec, err := a.reconciler(ctx)
		if err != nil {
			return err
		}
		// Log in once up front so any prompt happens before the schedule starts.
		if _, err := a.session(ctx); err != nil {
			return err
		}

		c := newScheduler(a.log)
		if _, err := c.AddFunc(a.cfg.SyncSchedule, func() { a.scheduledSync(ctx, rec) }); err != nil {
			return errors.Wrapf(err, "invalid sync schedule %q", a.cfg.SyncSchedule)
		}
		if runNow {
			a.scheduledSync(ctx, rec)
		}

		c.Start()
		a.log.Info("waiting for schedule", "schedule", a.cfg.SyncSchedule)
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

// newScheduler returns a cron scheduler that logs through logger and never
// starts a job while the previous run of it is still going.
func newScheduler(logger hclog.Logger, opts ...cron.Option) *cron.Cron {
	l := cron.PrintfLogger(logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}))
	return cron.New(append([]cron.Option{
		cron.WithLogger(l),
		cron.WithChain(cron.SkipIfStillRunning(l)),
	}, opts...)...)
}

// scheduledSync runs one unattended sync. Failures are logged and the next
// run starts from scratch with a fresh session.
func (a *app) scheduledSync(ctx context.Context, rec *reconcile.Reconciler) {
	s, err := a.session(ctx)
	if err != nil {
		a.log.Error("login failed", "error", err)
		return
	}
	if err := a.syncLessons(ctx, rec, s, nil); err != nil {
		a.log.Error("lesson sync failed", "error", err)
	}
	if err := a.syncHomework(ctx, rec, s); err != nil {
		a.log.Error("homework sync failed", "error", err)
	}
	if a.cfg.GitHub != nil {
		if err := a.export(ctx, s, nil, a.cfg.ExportPath); err != nil {
			a.log.Error("export failed", "error", err)
			return
		}
		if err := a.publish(ctx, a.cfg.ExportPath); err != nil {
			a.log.Error("publish failed", "error", err)
		}
	}
}

func init() {
	addRangeFlags(syncLessonsCmd)
	addRangeFlags(exportCmd)
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (defaults to export_path from the config)")
	exportCmd.Flags().BoolVar(&publish, "publish", false, "upload the file to the configured GitHub repository")
	watchCmd.Flags().BoolVar(&runNow, "now", false, "run a sync immediately before waiting for the schedule")

	syncCmd.AddCommand(syncLessonsCmd, syncHomeworkCmd)
	rootCmd.AddCommand(syncCmd, dedupeCmd, exportCmd, importCmd, watchCmd)
}
