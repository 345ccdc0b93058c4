package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"remindat/backend"
	"remindat/internal/credentials"
	"remindat/internal/oauth"
	"remindat/internal/utils"
)

func newSyncCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local reminders to Google Drive",
		Long:  "Upload the local snapshot to Drive. Use this after move, urgency or reorder when the daemon is not running.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if !a.store.CloudConnected() {
					return utils.ErrNotLoggedIn()
				}
				if err := <-a.store.SyncToCloudAsync(ctx); err != nil {
					return err
				}
				return env.done(cmd, "sync", "Synced to Google Drive")
			})
		},
	}
}

func newRefreshCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Merge the Google Drive copy into local reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				ok, err := a.store.RefreshFromCloud(ctx)
				if err = env.cloudWarning(err); err != nil {
					return err
				}
				if !ok {
					return utils.ErrNotLoggedIn()
				}
				return env.done(cmd, "refresh", fmt.Sprintf("Refreshed from Google Drive: %d actual, %d backlog",
					len(a.store.Actual()), len(a.store.Backlog())))
			})
		},
	}
}

// done prints a success message for commands without a reminder payload
func (env *cliEnv) done(cmd *cobra.Command, action, text string) error {
	if jsonOutput(cmd) {
		return writeJSON(env.stdout, map[string]string{"action": action, "message": text, "result": ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(env.stdout, successStyle.Render(text))
	env.resultCode(ResultActionCompleted)
	return nil
}

// =============================================================================
// OAuth
// =============================================================================

func newOAuthCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Connect remindat to Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newOAuthSetupCmd(env),
		newOAuthLoginCmd(env),
		newOAuthLogoutCmd(env),
		newOAuthStatusCmd(env),
	)
	return cmd
}

func newOAuthSetupCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save the Google OAuth client credentials",
		Long: "Save the OAuth client id and secret used to authorize Drive access. " +
			"The secret is read from the keyring, then $" + credentials.EnvClientSecret + ", then prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, _ := cmd.Flags().GetString("client-id")
			folderID, _ := cmd.Flags().GetString("folder-id")
			if clientID == "" {
				return utils.WrapWithSuggestion(
					utils.ValidationError("--client-id is required"),
					"Create an OAuth client of type 'Desktop app' in the Google Cloud console",
				)
			}

			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if folderID == "" {
					folderID = a.conf.OAuth.FolderID
				}
				if folderID == "" {
					folderID = backend.DefaultDriveFolderID
				}

				creds := env.cfg.credentials()
				var secret *credentials.Secret
				if env.cfg.NoPrompt {
					secret = creds.Lookup(clientID)
					if !secret.Found {
						return utils.ErrCredentialsNotFound()
					}
				} else {
					var err error
					if secret, err = creds.Resolve(clientID, env.cfg.stdin(), env.stdout); err != nil {
						return err
					}
				}

				if secret.Source == credentials.SourcePrompt {
					if err := creds.Store(clientID, secret.Value); err != nil {
						utils.Warnf("Could not save the secret to the keyring: %v", err)
					}
				}

				err := a.store.SaveOAuthCredentials(oauth.Credentials{
					ClientID:     clientID,
					ClientSecret: secret.Value,
					FolderID:     folderID,
				})
				if err != nil {
					return err
				}
				return env.done(cmd, "oauth-setup",
					fmt.Sprintf("Saved OAuth client %s (secret from %s, folder %s)", clientID, secret.Source, folderID))
			})
		},
	}
	cmd.Flags().String("client-id", "", "OAuth client id")
	cmd.Flags().String("folder-id", "", "Drive folder holding reminders.json")
	return cmd
}

func newOAuthLoginCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize Drive access in the browser",
		Long:  "Open Google's consent page and wait for the redirect on the local callback port. Press Ctrl+C to abandon.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				flow, err := a.store.StartOAuthFlow(ctx)
				if err != nil {
					return err
				}
				if !jsonOutput(cmd) {
					_, _ = fmt.Fprintf(env.stdout, "If your browser did not open, visit:\n%s\n", flow.URL)
				}

				select {
				case err := <-flow.Done:
					if err != nil {
						return err
					}
				case <-ctx.Done():
					return errors.New("login cancelled")
				}
				return env.done(cmd, "oauth-login", "Connected to Google Drive")
			})
		},
	}
}

func newOAuthLogoutCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the Drive session; client credentials are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Disconnect(); err != nil {
					return err
				}
				return env.done(cmd, "oauth-logout", "Disconnected from Google Drive")
			})
		},
	}
}

type oauthStatusResponse struct {
	Credentials bool   `json:"credentials"`
	LoggedIn    bool   `json:"logged_in"`
	State       string `json:"state"`
	ClientID    string `json:"client_id,omitempty"`
	FolderID    string `json:"folder_id,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Result      string `json:"result"`
}

func newOAuthStatusCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the Drive authorization state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				resp := oauthStatusOf(a)
				if jsonOutput(cmd) {
					return writeJSON(env.stdout, resp)
				}
				_, _ = fmt.Fprintf(env.stdout, "Credentials: %s\n", yesNo(resp.Credentials))
				if resp.ClientID != "" {
					_, _ = fmt.Fprintf(env.stdout, "Client ID:   %s\n", resp.ClientID)
					_, _ = fmt.Fprintf(env.stdout, "Folder ID:   %s\n", resp.FolderID)
				}
				_, _ = fmt.Fprintf(env.stdout, "Logged in:   %s\n", yesNo(resp.LoggedIn))
				_, _ = fmt.Fprintf(env.stdout, "State:       %s\n", resp.State)
				if resp.LastError != "" {
					_, _ = fmt.Fprintln(env.stdout, warnStyle.Render("Last error:  "+resp.LastError))
				}
				env.resultCode(ResultInfoOnly)
				return nil
			})
		},
	}
}

func oauthStatusOf(a *app) oauthStatusResponse {
	hasCreds, loggedIn := a.store.OAuthStatus()
	resp := oauthStatusResponse{
		Credentials: hasCreds,
		LoggedIn:    loggedIn,
		State:       a.auth.State().String(),
		Result:      ResultInfoOnly,
	}
	if creds, ok := a.store.OAuthCredentials(); ok {
		resp.ClientID = creds.ClientID
		resp.FolderID = creds.FolderID
	}
	if err := a.auth.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func yesNo(b bool) string {
	if b {
		return successStyle.Render("yes")
	}
	return mutedStyle.Render("no")
}
