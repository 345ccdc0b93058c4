package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"remindat/internal/config"
	"remindat/internal/daemon"
	"remindat/internal/notification"
	"remindat/internal/store"
	"remindat/internal/tui"
	"remindat/internal/utils"
)

// =============================================================================
// Statistics
// =============================================================================

type statsResponse struct {
	Today    int                    `json:"today"`
	ThisWeek int                    `json:"this_week"`
	History  *store.HistoricalStats `json:"history,omitempty"`
	Result   string                 `json:"result"`
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func newStatsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, _ := cmd.Flags().GetBool("history")
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				cs := a.store.CompletionStats()
				resp := statsResponse{Today: cs.Today, ThisWeek: cs.ThisWeek, Result: ResultInfoOnly}
				if history {
					hs := a.store.HistoricalStats()
					resp.History = &hs
				}
				if jsonOutput(cmd) {
					return writeJSON(env.stdout, resp)
				}

				_, _ = fmt.Fprintf(env.stdout, "Completed today:     %d\n", resp.Today)
				_, _ = fmt.Fprintf(env.stdout, "Completed this week: %d\n", resp.ThisWeek)
				if resp.History != nil {
					printHistory(env, resp.History)
				}
				env.resultCode(ResultInfoOnly)
				return nil
			})
		},
	}
	cmd.Flags().Bool("history", false, "Include daily, hourly and weekday histograms")
	return cmd
}

func printHistory(env *cliEnv, hs *store.HistoricalStats) {
	w := env.stdout

	maxDaily := 0
	for _, d := range hs.Daily {
		maxDaily = max(maxDaily, d.Count)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, headerStyle.Render("Last 14 days"))
	for _, d := range hs.Daily {
		_, _ = fmt.Fprintf(w, "  %s %3d %s\n", d.Date, d.Count, bar(d.Count, maxDaily, 30))
	}

	maxWeekday := 0
	for _, n := range hs.Weekday {
		maxWeekday = max(maxWeekday, n)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, headerStyle.Render("By weekday"))
	for i, n := range hs.Weekday {
		_, _ = fmt.Fprintf(w, "  %s %3d %s\n", weekdayNames[i], n, bar(n, maxWeekday, 30))
	}

	maxHourly := 0
	for _, n := range hs.Hourly {
		maxHourly = max(maxHourly, n)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, headerStyle.Render("By hour (UTC)"))
	for h, n := range hs.Hourly {
		if n == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %02d:00 %3d %s\n", h, n, bar(n, maxHourly, 30))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Backlog size: %d\n", hs.BacklogSize)
}

// =============================================================================
// Status
// =============================================================================

type statusResponse struct {
	Actual        int                 `json:"actual"`
	Backlog       int                 `json:"backlog"`
	Completed     int                 `json:"completed"`
	DataFile      string              `json:"data_file"`
	Drive         oauthStatusResponse `json:"drive"`
	LastSync      string              `json:"last_sync,omitempty"`
	LastRefresh   string              `json:"last_refresh,omitempty"`
	DaemonRunning bool                `json:"daemon_running"`
	Daemon        *daemon.Response    `json:"daemon,omitempty"`
	Result        string              `json:"result"`
}

func newStatusCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show list sizes, Drive connection and last sync times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				resp := statusResponse{
					Actual:    len(a.store.Actual()),
					Backlog:   len(a.store.Backlog()),
					Completed: len(a.store.Completed()),
					DataFile:  a.store.LocalPath(),
					Drive:     oauthStatusOf(a),
					Result:    ResultInfoOnly,
				}
				resp.Drive.Result = ""
				resp.LastSync = lastSuccess(a, "sync")
				resp.LastRefresh = lastSuccess(a, "refresh")

				if daemon.IsRunning(daemon.GetPIDPath(), daemon.GetSocketPath()) {
					resp.DaemonRunning = true
					if ds, err := daemon.NewClient(daemon.GetSocketPath()).Status(); err == nil {
						resp.Daemon = ds
					}
				}

				if jsonOutput(cmd) {
					return writeJSON(env.stdout, resp)
				}

				w := env.stdout
				_, _ = fmt.Fprintf(w, "Reminders:    %d actual, %d backlog, %d completed\n", resp.Actual, resp.Backlog, resp.Completed)
				_, _ = fmt.Fprintf(w, "Data file:    %s\n", resp.DataFile)
				_, _ = fmt.Fprintf(w, "Drive:        %s\n", driveSummary(resp.Drive))
				_, _ = fmt.Fprintf(w, "Last sync:    %s\n", orNever(resp.LastSync))
				_, _ = fmt.Fprintf(w, "Last refresh: %s\n", orNever(resp.LastRefresh))
				if resp.Daemon != nil {
					_, _ = fmt.Fprintf(w, "Daemon:       running (pid %d, every %s, circuit %s)\n", resp.Daemon.PID, resp.Daemon.Interval, resp.Daemon.Circuit)
				} else {
					_, _ = fmt.Fprintf(w, "Daemon:       %s\n", mutedStyle.Render("not running"))
				}
				env.resultCode(ResultInfoOnly)
				return nil
			})
		},
	}
}

// lastSuccess reads the journal; "init" counts as a sync and a refresh
func lastSuccess(a *app, command string) string {
	if a.journal == nil {
		return ""
	}
	var latest time.Time
	for _, c := range []string{command, "init"} {
		ts, ok, err := a.journal.LastSuccess(c)
		if err != nil {
			utils.Debugf("Journal lookup %s: %v", c, err)
			continue
		}
		if ok && ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return ""
	}
	return latest.Local().Format(time.RFC3339)
}

func driveSummary(s oauthStatusResponse) string {
	switch {
	case s.LoggedIn:
		return successStyle.Render("connected") + " (" + s.State + ")"
	case s.Credentials:
		return "credentials saved, not logged in"
	default:
		return mutedStyle.Render("not configured")
	}
}

func orNever(s string) string {
	if s == "" {
		return mutedStyle.Render("never")
	}
	return s
}

// =============================================================================
// Board
// =============================================================================

func newBoardCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "board",
		Aliases: []string{"tui"},
		Short:   "Open the interactive board",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				p := tea.NewProgram(
					tui.New(ctx, a.store),
					tea.WithAltScreen(),
					tea.WithContext(ctx),
					tea.WithInput(env.cfg.stdin()),
					tea.WithOutput(env.stdout),
				)
				_, err := p.Run()
				return err
			})
		},
	}
}

// =============================================================================
// Daemon
// =============================================================================

func newDaemonCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the sync loop in the foreground",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return env.runDaemon(cmd)
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "Start the daemon in the background",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				pidPath, sockPath := daemon.GetPIDPath(), daemon.GetSocketPath()
				if daemon.IsRunning(pidPath, sockPath) {
					return env.done(cmd, "daemon-start", "Daemon is already running")
				}
				if err := daemon.Fork("", env.cfg.ConfigPath); err != nil {
					return err
				}
				deadline := time.Now().Add(3 * time.Second)
				for !daemon.IsRunning(pidPath, sockPath) {
					if time.Now().After(deadline) {
						return fmt.Errorf("daemon did not start; run 'remindat daemon run -V' to see why")
					}
					time.Sleep(50 * time.Millisecond)
				}
				return env.done(cmd, "daemon-start", "Daemon started")
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the background daemon",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if !daemon.IsRunning(daemon.GetPIDPath(), daemon.GetSocketPath()) {
					return env.done(cmd, "daemon-stop", "Daemon is not running")
				}
				if err := daemon.NewClient(daemon.GetSocketPath()).Stop(); err != nil {
					return err
				}
				return env.done(cmd, "daemon-stop", "Daemon stopped")
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show daemon counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if !daemon.IsRunning(daemon.GetPIDPath(), daemon.GetSocketPath()) {
					if jsonOutput(cmd) {
						return writeJSON(env.stdout, daemon.Response{Status: "ok", Running: false})
					}
					_, _ = fmt.Fprintln(env.stdout, "Daemon is not running")
					return nil
				}
				resp, err := daemon.NewClient(daemon.GetSocketPath()).Status()
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(env.stdout, resp)
				}
				w := env.stdout
				_, _ = fmt.Fprintf(w, "PID:          %d\n", resp.PID)
				_, _ = fmt.Fprintf(w, "Interval:     %s\n", resp.Interval)
				_, _ = fmt.Fprintf(w, "Connected:    %s\n", yesNo(resp.Connected))
				_, _ = fmt.Fprintf(w, "Refreshes:    %d (last %s)\n", resp.RefreshCount, orNever(resp.LastRefresh))
				_, _ = fmt.Fprintf(w, "Syncs:        %d (last %s)\n", resp.SyncCount, orNever(resp.LastSync))
				_, _ = fmt.Fprintf(w, "Circuit:      %s\n", resp.Circuit)
				if resp.LastError != "" {
					_, _ = fmt.Fprintln(w, warnStyle.Render("Last error:   "+resp.LastError))
				}
				return nil
			},
		},
	)
	return cmd
}

func (env *cliEnv) runDaemon(cmd *cobra.Command) error {
	pidPath, sockPath := daemon.GetPIDPath(), daemon.GetSocketPath()
	if daemon.IsRunning(pidPath, sockPath) {
		return fmt.Errorf("daemon is already running")
	}

	return env.withApp(cmd, func(ctx context.Context, a *app) error {
		logger, err := utils.NewBackgroundLoggerWithEnabled(a.conf.Logging.BackgroundEnabled)
		if err != nil {
			utils.Warnf("Background log unavailable: %v", err)
		}
		defer logger.Close()
		if logger.IsEnabled() {
			utils.Infof("Logging to %s", logger.GetLogPath())
		}

		d := daemon.New(daemon.Config{
			PIDPath:    pidPath,
			SocketPath: sockPath,
			Interval:   a.conf.GetSyncInterval(),
			WatchLocal: a.conf.Sync.WatchLocal,
			Debounce:   a.conf.GetDebounce(),
			Logger:     logger,
			Notifier:   env.cfg.notifier(a.conf),
			Maintenance: func() error {
				if a.journal == nil {
					return nil
				}
				n, err := a.journal.Cleanup(a.conf.GetAnalyticsRetentionDays())
				if err == nil && n > 0 {
					logger.Printf("Pruned %d journal entries", n)
				}
				return err
			},
		}, a.store)
		return d.Run(ctx)
	})
}

// =============================================================================
// Notifications
// =============================================================================

func newNotifyCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Desktop notifications raised by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := env.loadConfig()
			if err != nil {
				return err
			}
			n := env.cfg.notifier(conf)
			if !n.Enabled() {
				return utils.WrapWithSuggestion(
					utils.ValidationError("notifications are disabled"),
					"Set notifications.enabled: true in the file shown by 'remindat config path'",
				)
			}
			err = n.Send(notification.Notification{
				Type:    notification.Test,
				Title:   "remindat",
				Message: "Notifications are working",
			})
			if err != nil {
				return fmt.Errorf("failed to send notification: %w", err)
			}
			return env.done(cmd, "notify-test", "Test notification sent")
		},
	})
	return cmd
}

// =============================================================================
// Config
// =============================================================================

func newConfigCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := env.cfg.ConfigPath
				if path == "" {
					path = config.DefaultConfigPath()
				}
				_, _ = fmt.Fprintln(env.stdout, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				conf, err := env.loadConfig()
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(env.stdout, conf)
				}
				out, err := conf.YAML()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(env.stdout, out)
				return nil
			},
		},
	)
	return cmd
}
