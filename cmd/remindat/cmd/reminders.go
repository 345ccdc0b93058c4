package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"remindat/backend"
	"remindat/internal/cli/prompt"
	"remindat/internal/daemon"
	"remindat/internal/utils"
)

type reminderResponse struct {
	Action   string           `json:"action"`
	Reminder backend.Reminder `json:"reminder"`
	Result   string           `json:"result"`
}

type listResponse struct {
	Actual    []backend.Reminder `json:"actual,omitempty"`
	Backlog   []backend.Reminder `json:"backlog,omitempty"`
	Completed []backend.Reminder `json:"completed,omitempty"`
	Result    string             `json:"result"`
}

func parseUrgencyFlag(s string) (backend.Urgency, error) {
	u, err := backend.ParseUrgency(s)
	if err != nil {
		valid := make([]string, len(backend.Urgencies))
		for i, v := range backend.Urgencies {
			valid[i] = string(v)
		}
		return "", utils.ErrInvalidUrgency(s, valid)
	}
	return u, nil
}

func parseListArg(s string) (backend.ListType, error) {
	lt, err := backend.ParseListType(s)
	if err != nil {
		return "", utils.ErrInvalidListType(s)
	}
	return lt, nil
}

// lookup finds a reminder in either list
func (a *app) lookup(id int64) (backend.Reminder, error) {
	snap := a.store.Snapshot()
	if i := snap.FindPending(id); i >= 0 {
		return snap.Pending[i], nil
	}
	if i := snap.FindCompleted(id); i >= 0 {
		return snap.Completed[i], nil
	}
	return backend.Reminder{}, utils.ErrReminderNotFound(id)
}

// lookupPending finds a reminder that can still be edited
func (a *app) lookupPending(id int64) (backend.Reminder, error) {
	r, err := a.lookup(id)
	if err != nil {
		return r, err
	}
	if r.IsCompleted {
		return r, utils.WrapWithSuggestion(
			utils.ValidationError("reminder %d is completed", id),
			fmt.Sprintf("Run 'remindat uncomplete %d' first", id),
		)
	}
	return r, nil
}

// selectPending asks the user to pick a pending reminder when no id was given
func (env *cliEnv) selectPending(a *app, verb string) (int64, error) {
	if env.cfg.NoPrompt {
		return 0, utils.WrapWithSuggestion(
			utils.ValidationError("reminder id required"),
			fmt.Sprintf("Pass an id, e.g. remindat %s 1", verb),
		)
	}
	selector := &prompt.Selector{
		Reminders: a.store.Pending(),
		Prompt:    fmt.Sprintf("Select a reminder to %s:", verb),
		Reader:    env.cfg.stdin(),
		Writer:    env.stdout,
	}
	r, err := selector.Run()
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

// report prints the outcome of a reminder command
func (env *cliEnv) report(cmd *cobra.Command, a *app, action string, id int64, text string) error {
	if jsonOutput(cmd) {
		r, err := a.lookup(id)
		if err != nil {
			// deleted reminders are reported by id only
			r = backend.Reminder{ID: id}
		}
		return writeJSON(env.stdout, reminderResponse{Action: action, Reminder: r, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(env.stdout, successStyle.Render(text))
	env.resultCode(ResultActionCompleted)
	return nil
}

// notifyDaemon asks a running daemon to push a local-only change
func notifyDaemon() {
	if !daemon.IsRunning(daemon.GetPIDPath(), daemon.GetSocketPath()) {
		return
	}
	if err := daemon.NewClient(daemon.GetSocketPath()).Notify(); err != nil {
		utils.Debugf("Daemon notify failed: %v", err)
	}
}

func newAddCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [message]",
		Short: "Add a reminder to the top of a list",
		Long: "Add a reminder. A full Actual list moves its least important item to the Backlog.\n" +
			"Without a message, the fields are asked for interactively.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			urgencyFlag, _ := cmd.Flags().GetString("urgency")
			urgency, err := parseUrgencyFlag(urgencyFlag)
			if err != nil {
				return err
			}
			list := backend.ListActual
			if b, _ := cmd.Flags().GetBool("backlog"); b {
				list = backend.ListBacklog
			}
			message := strings.Join(args, " ")

			if len(args) == 0 {
				if env.cfg.NoPrompt {
					return utils.ErrEmptyMessage()
				}
				adder := &prompt.InteractiveAdder{Reader: env.cfg.stdin(), Writer: env.stdout}
				fields, err := adder.Run()
				if err != nil {
					return err
				}
				message, urgency, list = fields.Message, fields.Urgency, fields.List
			}

			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				id, err := a.store.Add(ctx, message, urgency, list)
				if err = env.cloudWarning(err); err != nil {
					return err
				}
				return env.report(cmd, a, "add", id, fmt.Sprintf("Added #%d to %s: %s", id, list, strings.TrimSpace(message)))
			})
		},
	}
	cmd.Flags().StringP("urgency", "u", string(backend.UrgencyToday), "Urgency: now, today, soon, whenever")
	cmd.Flags().BoolP("backlog", "b", false, "Add to the Backlog instead of the Actual list")
	return cmd
}

func newListCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show reminders",
		Long:    "Show the Actual list and the Backlog. Use --completed for finished reminders.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			showActual, _ := cmd.Flags().GetBool("actual")
			showBacklog, _ := cmd.Flags().GetBool("backlog")
			showCompleted, _ := cmd.Flags().GetBool("completed")
			if !showActual && !showBacklog && !showCompleted {
				showActual, showBacklog = true, true
			}

			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				resp := listResponse{Result: ResultInfoOnly}
				if showActual {
					resp.Actual = nonNil(a.store.Actual())
				}
				if showBacklog {
					resp.Backlog = nonNil(a.store.Backlog())
				}
				if showCompleted {
					resp.Completed = nonNil(a.store.Completed())
				}

				if jsonOutput(cmd) {
					return writeJSON(env.stdout, resp)
				}
				if showActual {
					printSection(env.stdout, fmt.Sprintf("Actual (%d/%d)", len(resp.Actual), backend.MaxActualTasks), resp.Actual, false)
				}
				if showBacklog {
					printSection(env.stdout, fmt.Sprintf("Backlog (%d)", len(resp.Backlog)), resp.Backlog, false)
				}
				if showCompleted {
					printSection(env.stdout, fmt.Sprintf("Completed (%d)", len(resp.Completed)), resp.Completed, true)
				}
				env.resultCode(ResultInfoOnly)
				return nil
			})
		},
	}
	cmd.Flags().Bool("actual", false, "Show only the Actual list")
	cmd.Flags().Bool("backlog", false, "Show only the Backlog")
	cmd.Flags().Bool("completed", false, "Show completed reminders")
	return cmd
}

func nonNil(items []backend.Reminder) []backend.Reminder {
	if items == nil {
		return []backend.Reminder{}
	}
	return items
}

func newUpdateCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id> <message>",
		Short: "Change a reminder's text and urgency",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			message := strings.Join(args[1:], " ")

			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				current, err := a.lookupPending(id)
				if err != nil {
					return err
				}
				urgency := current.Urgency
				if cmd.Flags().Changed("urgency") {
					flag, _ := cmd.Flags().GetString("urgency")
					if urgency, err = parseUrgencyFlag(flag); err != nil {
						return err
					}
				}
				if err := env.cloudWarning(a.store.Update(ctx, id, message, urgency)); err != nil {
					return err
				}
				return env.report(cmd, a, "update", id, fmt.Sprintf("Updated #%d", id))
			})
		},
	}
	cmd.Flags().StringP("urgency", "u", "", "New urgency (keeps the current one when omitted)")
	return cmd
}

func newMoveCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <actual|backlog>",
		Short: "Move a reminder to the top of the other list",
		Long:  "Move a reminder to the top of a list. Writes locally; run 'remindat sync' or keep the daemon running to reach Drive.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			to, err := parseListArg(args[1])
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.lookupPending(id); err != nil {
					return err
				}
				if err := a.store.Move(id, to); err != nil {
					return err
				}
				notifyDaemon()
				return env.report(cmd, a, "move", id, fmt.Sprintf("Moved #%d to %s", id, to))
			})
		},
	}
}

func newUrgencyCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "urgency <id> <now|today|soon|whenever>",
		Short: "Set a reminder's urgency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			urgency, err := parseUrgencyFlag(args[1])
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.lookupPending(id); err != nil {
					return err
				}
				if err := a.store.SetUrgency(id, urgency); err != nil {
					return err
				}
				notifyDaemon()
				return env.report(cmd, a, "urgency", id, fmt.Sprintf("Set #%d to %s", id, urgency))
			})
		},
	}
}

func newDeleteCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "delete [id]",
		Aliases: []string{"rm"},
		Short:   "Delete a reminder",
		Long:    "Delete a reminder. Without an id, a pending reminder is picked interactively.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = utils.ParseID(args[0]); err != nil {
					return err
				}
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				picked := id == 0
				if picked {
					var err error
					if id, err = env.selectPending(a, "delete"); err != nil {
						return err
					}
				}
				r, err := a.lookup(id)
				if err != nil {
					return err
				}
				// picking from the list already confirms
				if !env.cfg.NoPrompt && !picked {
					question := fmt.Sprintf("Delete #%d %q?", id, r.Message)
					if !utils.PromptYesNoWithReader(question, env.cfg.stdin(), env.stdout) {
						_, _ = fmt.Fprintln(env.stdout, "Cancelled")
						return nil
					}
				}
				if err := env.cloudWarning(a.store.Delete(ctx, id)); err != nil {
					return err
				}
				return env.report(cmd, a, "delete", id, fmt.Sprintf("Deleted #%d", id))
			})
		},
	}
}

func newCompleteCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "complete [id...]",
		Aliases: []string{"done"},
		Short:   "Mark reminders completed",
		Long: "Mark reminders completed. Completing an Actual item promotes the top of the Backlog when there is room.\n" +
			"Without ids, a pending reminder is picked interactively.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := utils.ParseIDList(args)
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if len(ids) == 0 {
					id, err := env.selectPending(a, "complete")
					if err != nil {
						return err
					}
					ids = []int64{id}
				}
				for _, id := range ids {
					if _, err := a.lookupPending(id); err != nil {
						return err
					}
				}
				for _, id := range ids {
					if err := env.cloudWarning(a.store.Complete(ctx, id)); err != nil {
						return err
					}
					if err := env.report(cmd, a, "complete", id, fmt.Sprintf("Completed #%d", id)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newUncompleteCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "uncomplete <id>",
		Short: "Return a completed reminder to a pending list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				r, err := a.lookup(id)
				if err != nil {
					return err
				}
				if !r.IsCompleted {
					return utils.ValidationError("reminder %d is not completed", id)
				}
				if err := env.cloudWarning(a.store.Uncomplete(ctx, id)); err != nil {
					return err
				}
				r, _ = a.lookup(id)
				return env.report(cmd, a, "uncomplete", id, fmt.Sprintf("Reopened #%d in %s", id, r.ListType))
			})
		},
	}
}

func newReorderCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id> [id...]",
		Short: "Set the order of reminders",
		Long:  "Give each listed reminder the position it appears at. Ids may be separate arguments or comma-separated.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := utils.ParseIDList(args)
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Reorder(ids); err != nil {
					return err
				}
				notifyDaemon()
				if jsonOutput(cmd) {
					return writeJSON(env.stdout, map[string]interface{}{"action": "reorder", "ids": ids, "result": ResultActionCompleted})
				}
				_, _ = fmt.Fprintln(env.stdout, successStyle.Render(fmt.Sprintf("Reordered %d reminders", len(ids))))
				env.resultCode(ResultActionCompleted)
				return nil
			})
		},
	}
}
