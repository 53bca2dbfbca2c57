package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
	"github.com/onetaskassistant/onetask/pkg/store"
)

func newHabitsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "habits",
		Aliases: []string{"habit"},
		Short:   "Habit commands",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List active habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			habits := app.store.TodaysHabits()
			if all {
				habits = app.store.Snapshot().Habits
			}
			heading(out(cmd), "Habits", len(habits))
			for i := range habits {
				renderHabit(out(cmd), &habits[i])
			}
			return nil
		},
	}
	list.Flags().BoolVar(&all, "all", false, "Include paused, completed and archived habits")

	var (
		frequency   string
		target      int
		description string
	)
	add := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a habit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := model.NewHabit(strings.Join(args, " "))
			h.Frequency = model.Frequency(frequency)
			h.TargetCount = target
			h.Description = description
			created, err := app.store.AddHabit(cmd.Context(), h)
			if err != nil {
				return err
			}
			renderHabit(out(cmd), created)
			return nil
		},
	}
	add.Flags().StringVarP(&frequency, "frequency", "f", string(model.FrequencyDaily), "daily, weekly or monthly")
	add.Flags().IntVar(&target, "target", 1, "Completions per period")
	add.Flags().StringVarP(&description, "description", "d", "", "Notes")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a habit",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			id, err := resolveID("habit", app.store.Snapshot().Habits, habitID, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteHabit(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "deleted habit", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newGoalsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goals",
		Aliases: []string{"goal"},
		Short:   "Goal commands",
	}

	var (
		filter    = store.AllGoalTypes
		onlyTypes []string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List goals that are not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(onlyTypes) > 0 {
				filter = store.GoalFilter{}
				for _, s := range onlyTypes {
					t, err := model.ParseGoalType(s)
					if err != nil {
						return err
					}
					switch t {
					case model.GoalWeekly:
						filter.Weekly = true
					case model.GoalQuarterly:
						filter.Quarterly = true
					case model.GoalYearly:
						filter.Yearly = true
					}
				}
			}
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			goals := app.store.ActiveGoals(filter)
			heading(out(cmd), "Goals", len(goals))
			for i := range goals {
				renderGoal(out(cmd), &goals[i])
			}
			return nil
		},
	}
	list.Flags().StringSliceVar(&onlyTypes, "type", nil, "Only these goal types (weekly, quarterly, yearly)")

	var (
		goalType    string
		quarter     int
		year        int
		weekStart   string
		description string
	)
	add := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a goal; unset periods default to the current week, quarter 1 or this year",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseGoalType(goalType)
			if err != nil {
				return err
			}
			g := model.NewGoal(strings.Join(args, " "), t, app.now())
			g.Description = description
			if quarter > 0 {
				g.TargetQuarter = &quarter
			}
			if year > 0 {
				g.TargetYear = &year
			}
			if weekStart != "" {
				d, err := dates.Parse(weekStart)
				if err != nil {
					return err
				}
				g.WeekStartDate = dates.New(d)
			}
			created, err := app.store.AddGoal(cmd.Context(), g)
			if err != nil {
				return err
			}
			renderGoal(out(cmd), created)
			return nil
		},
	}
	add.Flags().StringVar(&goalType, "type", string(model.GoalWeekly), "weekly, quarterly or yearly")
	add.Flags().IntVar(&quarter, "quarter", 0, "Target quarter (1-4) of a quarterly goal")
	add.Flags().IntVar(&year, "year", 0, "Target year of a quarterly or yearly goal")
	add.Flags().StringVar(&weekStart, "week", "", "First day of the week of a weekly goal")
	add.Flags().StringVarP(&description, "description", "d", "", "Notes")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a goal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			id, err := resolveID("goal", app.store.Snapshot().Goals, goalID, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteGoal(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "deleted goal", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Project commands",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects that are not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			projects := app.store.ActiveProjects()
			heading(out(cmd), "Projects", len(projects))
			for i := range projects {
				renderProject(out(cmd), &projects[i])
			}
			return nil
		},
	}

	var (
		priority    string
		description string
		tags        []string
	)
	add := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := model.NewProject(strings.Join(args, " "))
			p.Priority = model.Priority(priority)
			p.Description = description
			p.Tags = append(p.Tags, tags...)
			created, err := app.store.AddProject(cmd.Context(), p)
			if err != nil {
				return err
			}
			renderProject(out(cmd), created)
			return nil
		},
	}
	add.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "low, medium, high or urgent")
	add.Flags().StringVarP(&description, "description", "d", "", "Notes")
	add.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			id, err := resolveID("project", app.store.Snapshot().Projects, projectID, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteProject(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "deleted project", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}
