package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"remindat/internal/markdown"
	"remindat/internal/utils"
)

func newExportCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all reminders as a markdown checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				text := markdown.Format(a.store.Actual(), a.store.Backlog(), a.store.Completed())
				if output == "" {
					_, _ = fmt.Fprint(env.stdout, text)
					return nil
				}
				if err := os.WriteFile(output, []byte(text), 0644); err != nil {
					return utils.StorageError("failed to write "+output, err)
				}
				return env.done(cmd, "export", "Exported to "+output)
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newImportCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.md>",
		Short: "Add the unchecked items of a markdown checklist",
		Long: "Add every unchecked '- [ ] text' line as a reminder. An '!now', '!today', '!soon' or '!whenever' tag " +
			"sets the urgency; items under an 'Actual' heading go to the Actual list, all others to the Backlog.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return utils.StorageError("failed to read "+args[0], err)
			}
			items := markdown.Parse(string(data))

			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				added := 0
				var cloudErr error
				for _, item := range items {
					if item.Done {
						continue
					}
					_, err := a.store.Add(ctx, item.Message, item.Urgency, item.List)
					switch {
					case isCloudSyncError(err):
						cloudErr = err
					case err != nil:
						return err
					}
					added++
				}
				if cloudErr != nil {
					_ = env.cloudWarning(cloudErr)
				}
				return env.done(cmd, "import", fmt.Sprintf("Imported %d reminders", added))
			})
		},
	}
}
