package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

// resolveID finds the single item whose id starts with prefix.
func resolveID[T any](kind string, items []T, id func(T) string, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%s id is required", kind)
	}
	var matches []string
	for _, item := range items {
		v := id(item)
		if v == prefix {
			return v, nil
		}
		if strings.HasPrefix(v, prefix) {
			matches = append(matches, v)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s matches %q", kind, prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%q matches %d %ss, use a longer prefix", prefix, len(matches), kind)
}

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksStatusCmd(app))
	cmd.AddCommand(newTasksRmCmd(app))
	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var today bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			now := app.now()
			tasks, title := app.store.Snapshot().Tasks, "Tasks"
			if today {
				tasks, title = app.store.TodaysTasks(now), "Today"
			}
			heading(out(cmd), title, len(tasks))
			for i := range tasks {
				renderTask(out(cmd), &tasks[i], now)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&today, "today", false, "Only pending tasks due today, overdue or undated")
	return cmd
}

func newTasksAddCmd(app *App) *cobra.Command {
	var (
		due         string
		priority    string
		project     string
		tags        []string
		description string
		estimate    float64
	)

	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := model.NewTask(strings.Join(args, " "))
			t.Description = description
			t.Priority = model.Priority(priority)
			t.Tags = append(t.Tags, tags...)
			if due != "" {
				d, err := dates.Parse(due)
				if err != nil {
					return err
				}
				t.DueDate = dates.New(d)
			}
			if estimate > 0 {
				t.EstimatedHours = &estimate
			}
			if project != "" {
				if err := app.syncStore(cmd); err != nil {
					return err
				}
				id, err := resolveID("project", app.store.Snapshot().Projects, projectID, project)
				if err != nil {
					return err
				}
				t.ProjectID = id
			}

			created, err := app.store.AddTask(cmd.Context(), t)
			if err != nil {
				return err
			}
			renderTask(out(cmd), created, app.now())
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "Due date, e.g. 2025-08-15 or 2025-08-15T17:00:00")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "low, medium, high or urgent")
	cmd.Flags().StringVar(&project, "project", "", "Project id or id prefix")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Notes")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "Estimated hours")
	return cmd
}

func newTasksStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> <pending|in_progress|completed|cancelled>",
		Short:     "Change a task's status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"pending", "in_progress", "completed", "cancelled"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			id, err := resolveID("task", app.store.Snapshot().Tasks, taskID, args[0])
			if err != nil {
				return err
			}
			t, err := app.store.SetTaskStatus(cmd.Context(), id, model.TaskStatus(args[1]))
			if t != nil {
				renderTask(out(cmd), t, app.now())
			}
			return err
		},
	}
}

func newTasksRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			id, err := resolveID("task", app.store.Snapshot().Tasks, taskID, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "deleted task", id)
			return nil
		},
	}
}

func taskID(t model.Task) string       { return t.ID }
func habitID(h model.Habit) string     { return h.ID }
func goalID(g model.Goal) string       { return g.ID }
func projectID(p model.Project) string { return p.ID }
