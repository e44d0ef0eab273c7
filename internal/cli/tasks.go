package cli

import (
	"fmt"
	"strings"

	"aetracker/internal/format"
	"aetracker/internal/model"
	"aetracker/internal/provider"
	"aetracker/internal/publish"
	"aetracker/internal/taskview"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
	}

	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksSetStatusCmd(app, "done", "Mark a task done", model.StatusDone))
	cmd.AddCommand(newTasksReopenCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	cmd.AddCommand(newTasksExportCmd(app))

	return cmd
}

func parseStatusFlag(s string) (model.Status, error) {
	st, ok := model.ParseStatus(s)
	if !ok {
		return "", fmt.Errorf("invalid status: %s (expected backlog|in-progress|waiting|done)", s)
	}
	return st, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	f := model.DefaultFilters()
	var sortBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, split into active and completed",
		Example: strings.TrimSpace(`
aetracker tasks list --ae "Ava Smith" --format table
aetracker tasks list --overdue
aetracker tasks list --status waiting --query renewal
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := f
			if !strings.EqualFold(strings.TrimSpace(filters.Status), model.FilterAll) {
				st, err := parseStatusFlag(filters.Status)
				if err != nil {
					return writeErr(cmd, err)
				}
				filters.Status = string(st)
			} else {
				filters.Status = model.FilterAll
			}

			strategy := taskview.StrategyFor(filters)
			if strings.TrimSpace(sortBy) != "" {
				s, err := taskview.ParseSortStrategy(sortBy)
				if err != nil {
					return writeErr(cmd, err)
				}
				strategy = s
			}

			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			tasks, err := p.Tasks(cmd.Context(), filters)
			if err != nil {
				return writeErr(cmd, err)
			}
			sorted := taskview.SortTasksWith(tasks, strategy)
			return writeOut(cmd, app, format.TaskList{
				Active:    sorted.Active,
				Completed: sorted.Completed,
				AEColors:  p.Snapshot().AEColors,
				Now:       app.now(),
			})
		},
	}

	cmd.Flags().StringVar(&f.Query, "query", "", "Case-insensitive title substring")
	cmd.Flags().StringVar(&f.AE, "ae", model.FilterAll, "AE name (or ALL)")
	cmd.Flags().StringVar(&f.Account, "account", model.FilterAll, "Account name (or ALL)")
	cmd.Flags().StringVar(&f.Status, "status", model.FilterAll, "Status (backlog|in-progress|waiting|done|ALL)")
	cmd.Flags().BoolVar(&f.DueThisWeek, "due-this-week", false, "Only open tasks due this week (wins over --overdue)")
	cmd.Flags().BoolVar(&f.Overdue, "overdue", false, "Only open tasks past their due date")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Active ordering (due|in-progress-first; default depends on filters)")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := p.Hydrate(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			snap := p.Snapshot()
			t, ok := snap.FindTask(id)
			if !ok {
				return writeErr(cmd, errNotFound("task", id))
			}
			return writeOut(cmd, app, format.TaskDetail{Task: t, AEColor: snap.AEColors[t.AE]})
		},
	}
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var in provider.TaskInput
	var status string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: strings.TrimSpace(`
Create a task. The AE and account are given by name and created on first use;
names match case-insensitively, so "acme" reuses an existing "Acme".
`),
		Example: strings.TrimSpace(`
aetracker tasks create --title "Send renewal quote" --ae "Ava Smith" --account Acme --due 2024-03-15
aetracker tasks create --title "Intro call" --ae Bob --status in-progress --description "- agenda\n- pricing"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := in
			if strings.TrimSpace(status) != "" {
				st, err := parseStatusFlag(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				input.Status = st
			}
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := p.CreateTask(cmd.Context(), input)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.TaskDetail{Task: t, AEColor: p.Snapshot().AEColors[t.AE]})
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&in.AE, "ae", "", "AE name (required)")
	cmd.Flags().StringVar(&in.Account, "account", "", "Account name")
	cmd.Flags().StringVar(&status, "status", "", "Status (default backlog)")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "Due date (YYYY-MM-DD)")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var title, description, ae, account, status, due string

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task (only the flags you pass are changed)",
		Example: strings.TrimSpace(`
aetracker tasks update <task-id> --status waiting
aetracker tasks update <task-id> --account "" --due ""   # clear account and due date
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch provider.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("ae") {
				patch.AE = &ae
			}
			if flags.Changed("account") {
				patch.Account = &account
			}
			if flags.Changed("due") {
				patch.DueDate = &due
			}
			if flags.Changed("status") {
				st, err := parseStatusFlag(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				patch.Status = &st
			}
			return runTaskUpdate(cmd, app, args[0], patch)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&description, "description", "", "Description (empty clears)")
	cmd.Flags().StringVar(&ae, "ae", "", "AE name")
	cmd.Flags().StringVar(&account, "account", "", "Account name (empty clears)")
	cmd.Flags().StringVar(&status, "status", "", "Status")
	cmd.Flags().StringVar(&due, "due", "", "Due date YYYY-MM-DD (empty clears)")
	return cmd
}

func newTasksSetStatusCmd(app *App, use, short string, st model.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskUpdate(cmd, app, args[0], provider.TaskPatch{Status: &st})
		},
	}
}

func newTasksReopenCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "reopen <task-id>",
		Short: "Move a done task back to an open status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatusFlag(status)
			if err != nil {
				return writeErr(cmd, err)
			}
			if st == model.StatusDone {
				return writeErr(cmd, fmt.Errorf("reopen: --status must not be done"))
			}
			return runTaskUpdate(cmd, app, args[0], provider.TaskPatch{Status: &st})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.StatusBacklog), "Status to reopen into")
	return cmd
}

// runTaskUpdate prints the updated task, or null when the backend no longer
// has it.
func runTaskUpdate(cmd *cobra.Command, app *App, id string, patch provider.TaskPatch) error {
	p, err := app.provider()
	if err != nil {
		return writeErr(cmd, err)
	}
	t, err := p.UpdateTask(cmd.Context(), strings.TrimSpace(id), patch)
	if err != nil {
		return writeErr(cmd, err)
	}
	if t == nil {
		return writeOut(cmd, app, t)
	}
	return writeOut(cmd, app, format.TaskDetail{Task: *t, AEColor: p.Snapshot().AEColors[t.AE]})
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			deleted, err := p.DeleteTask(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]bool{"deleted": deleted})
		},
	}
}

func newTasksExportCmd(app *App) *cobra.Command {
	var to string
	var opt publish.WriteOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write tasks as markdown files (index by AE plus one page per task)",
		Example: strings.TrimSpace(`
aetracker tasks export --to ./tasks-md
aetracker tasks export --to ./tasks-md --include-done --overwrite
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := p.Hydrate(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			snap := p.Snapshot()
			opt.Now = app.now()
			res, err := publish.WriteTasks(snap.Tasks, snap.AEs, to, opt)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory (required)")
	cmd.Flags().BoolVar(&opt.IncludeDone, "include-done", false, "Include done tasks")
	cmd.Flags().BoolVar(&opt.Overwrite, "overwrite", false, "Overwrite existing files")
	return cmd
}
