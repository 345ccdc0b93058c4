// Package cmd implements the remindat command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"remindat/backend/file"
	"remindat/backend/google"
	"remindat/internal/analytics"
	"remindat/internal/config"
	"remindat/internal/credentials"
	"remindat/internal/notification"
	"remindat/internal/oauth"
	"remindat/internal/shutdown"
	"remindat/internal/store"
	"remindat/internal/utils"
	"remindat/internal/worker"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt and JSON mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// shutdownTimeout bounds cleanup after the command finishes or a signal arrives
const shutdownTimeout = 10 * time.Second

// Config holds invocation settings that flags and tests can override
type Config struct {
	NoPrompt    bool
	Verbose     bool
	ConfigPath  string              // config.yaml; defaults to the XDG location
	Stdin       io.Reader           // defaults to os.Stdin
	Keyring     credentials.Keyring // defaults to the system keyring
	OpenBrowser func(string) error  // defaults to the platform opener
	Notifier    notification.CommandExecutor
}

func (c *Config) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Config) notifier(conf *config.Config) *notification.Manager {
	return notification.NewManager(notification.Config{
		Enabled:     conf.Notify.Enabled,
		OnSyncError: conf.Notify.OnSyncError,
		OnRefresh:   conf.Notify.OnRefresh,
	}, notification.WithCommandExecutor(c.Notifier))
}

func (c *Config) credentials() *credentials.Manager {
	if c.Keyring != nil {
		return credentials.NewManager(credentials.WithKeyring(c.Keyring))
	}
	return credentials.NewManager()
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}

	mgr := shutdown.NewManager(context.Background())
	stopSignals := mgr.ListenForSignals()
	defer stopSignals()

	rootCmd := NewRemindAt(mgr, stdout, stderr, cfg)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(cfg.stdin())

	err := rootCmd.ExecuteContext(mgr.Context())

	mgr.Shutdown()
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := mgr.Wait(waitCtx); cerr != nil {
		utils.Debugf("Cleanup: %v", cerr)
	}

	if err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewRemindAt creates the root command with injectable IO
func NewRemindAt(mgr *shutdown.Manager, stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:     "remindat",
		Short:   "A focus list of reminders synced to Google Drive",
		Long:    "remindat keeps at most six reminders in your Actual list, parks the rest in a Backlog, and mirrors both to Google Drive.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				cfg.Verbose = true
			}
			if np, _ := cmd.Flags().GetBool("no-prompt"); np {
				cfg.NoPrompt = true
			}
			if p, _ := cmd.Flags().GetString("config"); p != "" {
				cfg.ConfigPath = p
			}
			utils.SetVerboseMode(cfg.Verbose)
			utils.GetLogger().SetOutput(stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	root.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")
	root.PersistentFlags().String("config", "", "Path to config.yaml")

	env := &cliEnv{mgr: mgr, cfg: cfg, stdout: stdout, stderr: stderr}

	root.AddCommand(
		newAddCmd(env),
		newListCmd(env),
		newUpdateCmd(env),
		newMoveCmd(env),
		newUrgencyCmd(env),
		newDeleteCmd(env),
		newCompleteCmd(env),
		newUncompleteCmd(env),
		newReorderCmd(env),
		newSyncCmd(env),
		newRefreshCmd(env),
		newStatsCmd(env),
		newStatusCmd(env),
		newBoardCmd(env),
		newDaemonCmd(env),
		newOAuthCmd(env),
		newConfigCmd(env),
		newNotifyCmd(env),
		newExportCmd(env),
		newImportCmd(env),
		newVersionCmd(env),
	)
	return root
}

func newVersionCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintf(env.stdout, "remindat Version: %s\n", Version)
			return nil
		},
	}
}

// =============================================================================
// Application wiring
// =============================================================================

// cliEnv is shared by all subcommands of one invocation
type cliEnv struct {
	mgr    *shutdown.Manager
	cfg    *Config
	stdout io.Writer
	stderr io.Writer
}

// app is the opened store and everything it depends on
type app struct {
	conf    *config.Config
	store   *store.Store
	auth    *oauth.Manager
	journal *analytics.Tracker
	pool    *worker.Pool
}

func (env *cliEnv) loadConfig() (*config.Config, error) {
	conf, err := config.Load(env.cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Verbose {
		utils.SetVerboseMode(true)
	}
	return conf, nil
}

// open builds the store. A failed Drive reconciliation is logged and the
// command continues on local data.
func (env *cliEnv) open(ctx context.Context) (*app, error) {
	conf, err := env.loadConfig()
	if err != nil {
		return nil, err
	}

	local, err := file.New(file.Config{DataDir: conf.DataDir})
	if err != nil {
		return nil, err
	}

	auth := oauth.New(oauth.Config{
		DataDir:      conf.DataDir,
		RedirectPort: conf.OAuth.RedirectPort,
		AuthURL:      conf.OAuth.AuthURL,
		TokenURL:     conf.OAuth.TokenURL,
		OpenBrowser:  env.cfg.OpenBrowser,
	})
	cloud := google.New(google.Config{
		BaseURL:       conf.Drive.APIBaseURL,
		UploadBaseURL: conf.Drive.UploadBaseURL,
	})

	journal, err := analytics.NewTracker(conf.JournalPath(), analytics.IsEnabledFromEnv(conf.Analytics.Enabled))
	if err != nil {
		utils.Warnf("Sync journal unavailable: %v", err)
		journal = nil
	}

	pool := worker.New(conf.Sync.Workers, 16)
	a := &app{conf: conf, auth: auth, journal: journal, pool: pool}

	s, err := store.New(ctx, store.Config{
		Local:   local,
		Cloud:   cloud,
		Auth:    auth,
		Pool:    pool,
		Journal: journal,
	})
	if s == nil {
		a.close()
		return nil, err
	}
	a.store = s
	env.mgr.RegisterCleanup("app", func(ctx context.Context) error {
		a.close()
		return nil
	})
	return a, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			utils.Debugf("Closing journal: %v", err)
		}
	}
}

// withApp opens the store for the duration of fn
func (env *cliEnv) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = env.mgr.Context()
	}
	a, err := env.open(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

// =============================================================================
// Output helpers
// =============================================================================

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

func writeJSON(stdout io.Writer, v interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// cloudWarning prints a CloudSyncError as a warning and clears it; the
// command itself succeeded locally
func (env *cliEnv) cloudWarning(err error) error {
	var cloudErr *store.CloudSyncError
	if errors.As(err, &cloudErr) {
		_, _ = fmt.Fprintln(env.stderr, warnStyle.Render("Warning: "+cloudErr.Error()))
		return nil
	}
	return err
}

// isCloudSyncError reports whether err is only a failed Drive mirror
func isCloudSyncError(err error) bool {
	var cloudErr *store.CloudSyncError
	return errors.As(err, &cloudErr)
}

// resultCode prints the no-prompt result line
func (env *cliEnv) resultCode(code string) {
	if env.cfg.NoPrompt {
		_, _ = fmt.Fprintln(env.stdout, code)
	}
}
