package store

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

func taskID(t model.Task) string       { return t.ID }
func habitID(h model.Habit) string     { return h.ID }
func goalID(g model.Goal) string       { return g.ID }
func projectID(p model.Project) string { return p.ID }

// replace swaps the item with v's id for v, appending v when absent.
func replace[T any](items []T, v T, id func(T) string) []T {
	if i := slices.IndexFunc(items, func(x T) bool { return id(x) == id(v) }); i >= 0 {
		items[i] = v
		return items
	}
	return append(items, v)
}

func remove[T any](items []T, target string, id func(T) string) []T {
	return slices.DeleteFunc(items, func(x T) bool { return id(x) == target })
}

// write validates v, sends it with call and applies the server copy to the
// collection chosen by apply. Failures go through HandleError.
func write[T any](ctx context.Context, s *Store, c Collection, v *T, call func(context.Context, *T) (*T, error), apply func(T)) (*T, error) {
	if err := model.Validate(v); err != nil {
		return nil, err
	}
	saved, err := call(ctx, v)
	if err != nil {
		err = fmt.Errorf("saving %s: %w", c, err)
		s.HandleError(err)
		return nil, err
	}
	s.mu.Lock()
	apply(*saved)
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Collection: c})
	return saved, nil
}

func del(ctx context.Context, s *Store, c Collection, id string, call func(context.Context, string) error, apply func(string)) error {
	if err := call(ctx, id); err != nil {
		err = fmt.Errorf("deleting from %s: %w", c, err)
		s.HandleError(err)
		return err
	}
	s.mu.Lock()
	apply(id)
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Collection: c})
	return nil
}

func (s *Store) AddTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	return write(ctx, s, CollectionTasks, t, s.backend.CreateTask, func(v model.Task) {
		s.tasks = replace(s.tasks, v, taskID)
	})
}

// UpdateTask applies t locally before sending it. On success the server copy
// replaces the local one; on failure the local change stays and the error is
// returned without being reported to subscribers.
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	if err := model.Validate(t); err != nil {
		return nil, err
	}
	local := *t
	local.UpdatedAt = dates.New(s.now())

	s.mu.Lock()
	s.tasks = replace(s.tasks, local, taskID)
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Collection: CollectionTasks})

	saved, err := s.backend.UpdateTask(ctx, t)
	if err != nil {
		s.logger.Warn("task updated locally but not on the backend", zap.String("task_id", t.ID), zap.Error(err))
		return &local, fmt.Errorf("updating task %s: %w", t.ID, err)
	}

	s.mu.Lock()
	s.tasks = replace(s.tasks, *saved, taskID)
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Collection: CollectionTasks})
	return saved, nil
}

// SetTaskStatus updates the status of a known task, stamping or clearing its
// completion time.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status model.TaskStatus) (*model.Task, error) {
	s.mu.RLock()
	i := slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
	var t model.Task
	if i >= 0 {
		t = s.tasks[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, fmt.Errorf("task %s not found", id)
	}
	t.SetStatus(status, s.now())
	return s.UpdateTask(ctx, &t)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return del(ctx, s, CollectionTasks, id, s.backend.DeleteTask, func(id string) {
		s.tasks = remove(s.tasks, id, taskID)
	})
}

func (s *Store) AddHabit(ctx context.Context, h *model.Habit) (*model.Habit, error) {
	return write(ctx, s, CollectionHabits, h, s.backend.CreateHabit, func(v model.Habit) {
		s.habits = replace(s.habits, v, habitID)
	})
}

func (s *Store) UpdateHabit(ctx context.Context, h *model.Habit) (*model.Habit, error) {
	return write(ctx, s, CollectionHabits, h, s.backend.UpdateHabit, func(v model.Habit) {
		s.habits = replace(s.habits, v, habitID)
	})
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return del(ctx, s, CollectionHabits, id, s.backend.DeleteHabit, func(id string) {
		s.habits = remove(s.habits, id, habitID)
	})
}

func (s *Store) AddGoal(ctx context.Context, g *model.Goal) (*model.Goal, error) {
	return write(ctx, s, CollectionGoals, g, s.backend.CreateGoal, func(v model.Goal) {
		if v.Type == "" {
			v.Type = g.Type
		}
		s.goals = replace(s.goals, v, goalID)
	})
}

func (s *Store) UpdateGoal(ctx context.Context, g *model.Goal) (*model.Goal, error) {
	return write(ctx, s, CollectionGoals, g, s.backend.UpdateGoal, func(v model.Goal) {
		if v.Type == "" {
			v.Type = g.Type
		}
		s.goals = replace(s.goals, v, goalID)
	})
}

// DeleteGoal removes a goal; its type selects the backend collection.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	s.mu.RLock()
	i := slices.IndexFunc(s.goals, func(g model.Goal) bool { return g.ID == id })
	var t model.GoalType
	if i >= 0 {
		t = s.goals[i].Type
	}
	s.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("goal %s not found", id)
	}

	call := func(ctx context.Context, id string) error { return s.backend.DeleteGoal(ctx, t, id) }
	return del(ctx, s, CollectionGoals, id, call, func(id string) {
		s.goals = remove(s.goals, id, goalID)
	})
}

func (s *Store) AddProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	return write(ctx, s, CollectionProjects, p, s.backend.CreateProject, func(v model.Project) {
		s.projects = replace(s.projects, v, projectID)
	})
}

func (s *Store) UpdateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	return write(ctx, s, CollectionProjects, p, s.backend.UpdateProject, func(v model.Project) {
		s.projects = replace(s.projects, v, projectID)
	})
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return del(ctx, s, CollectionProjects, id, s.backend.DeleteProject, func(id string) {
		s.projects = remove(s.projects, id, projectID)
	})
}
