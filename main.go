package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"g4s-calendar/config"
	"g4s-calendar/googlecalendar"
	"g4s-calendar/reconcile"
	"g4s-calendar/scraper"
)

const maxLoginAttempts = 3

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "g4s",
	Short: "g4s reads a Go4Schools timetable and homework and mirrors them into Google Calendar",
	Long: `g4s logs into the Go4Schools student portal, shows the week's timetable and
pending homework, and can copy both into a Google Calendar or an iCalendar file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "g4s", "config.yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	log    hclog.Logger
	portal *scraper.Client
	out    io.Writer
	in     *bufio.Reader
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Init(configPath)
	if err != nil {
		return nil, err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "g4s",
		Level:  hclog.LevelFromString(logLevel),
		Output: cmd.ErrOrStderr(),
	})

	portal := scraper.NewClient(logger)
	portal.LoginURL = cfg.LoginURL
	portal.APIBase = cfg.APIBase
	portal.Origin = cfg.Origin

	return &app{
		cfg:    cfg,
		log:    logger,
		portal: portal,
		out:    cmd.OutOrStdout(),
		in:     bufio.NewReader(cmd.InOrStdin()),
	}, nil
}

// session logs into the portal. Credentials missing from the configuration
// are prompted for, and a rejected prompted password may be retyped.
func (a *app) session(ctx context.Context) (*scraper.Session, error) {
	if a.cfg.Username == "" {
		fmt.Fprint(a.out, "Username: ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return nil, errors.Wrap(err, "reading username")
		}
		a.cfg.Username = strings.TrimSpace(line)
	}

	if a.cfg.Password != "" {
		return a.portal.Login(ctx, a.cfg.Username, a.cfg.Password)
	}

	for attempt := 1; ; attempt++ {
		password, err := a.readPassword()
		if err != nil {
			return nil, err
		}
		s, err := a.portal.Login(ctx, a.cfg.Username, password)
		var authErr *scraper.AuthenticationError
		if errors.As(err, &authErr) && attempt < maxLoginAttempts {
			fmt.Fprintln(a.out, "Login details incorrect, try again.")
			continue
		}
		if err != nil {
			return nil, err
		}
		// Kept so that scheduled runs do not prompt again.
		a.cfg.Password = password
		return s, nil
	}
}

func (a *app) readPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", errors.Wrap(err, "reading password")
		}
		return string(pw), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "reading password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// reconciler authorizes against Google Calendar, running the consent flow
// in the browser when no usable token is cached.
func (a *app) reconciler(ctx context.Context) (*reconcile.Reconciler, error) {
	g := a.cfg.Google
	if g.ClientID == "" || g.ClientSecret == "" {
		return nil, errors.Errorf("google.client_id and google.client_secret must be set in %s", configPath)
	}
	oauthCfg := googlecalendar.OAuthConfig(g.ClientID, g.ClientSecret, g.RedirectURL)
	client, err := googlecalendar.Authorize(ctx, oauthCfg,
		googlecalendar.FileTokenStore{Path: g.TokenFile},
		googlecalendar.LocalCallback(g.RedirectURL, a.log), a.log)
	if err != nil {
		return nil, err
	}
	svc, err := googlecalendar.NewService(ctx, client, g.CalendarID, a.log)
	if err != nil {
		return nil, err
	}
	r := reconcile.New(svc, a.log)
	r.TimeZone = a.cfg.TimeZone
	return r, nil
}

// progress prints a running count on a single line.
func (a *app) progress(label string) reconcile.ProgressFunc {
	return func(done, total int) {
		fmt.Fprintf(a.out, "\r%s %d/%d", label, done, total)
		if done == total {
			fmt.Fprintln(a.out)
		}
	}
}
