package store

import (
	"time"

	"github.com/onetaskassistant/onetask/pkg/model"
)

// GoalFilter chooses which goal types ActiveGoals returns.
type GoalFilter struct {
	Weekly    bool
	Quarterly bool
	Yearly    bool
}

var AllGoalTypes = GoalFilter{Weekly: true, Quarterly: true, Yearly: true}

func (f GoalFilter) allows(t model.GoalType) bool {
	switch t {
	case model.GoalWeekly:
		return f.Weekly
	case model.GoalQuarterly:
		return f.Quarterly
	case model.GoalYearly:
		return f.Yearly
	}
	return false
}

// TodaysTasks returns pending tasks that have no due date or are due by the
// end of now's day.
func (s *Store) TodaysTasks(now time.Time) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Task
	for _, t := range s.tasks {
		if t.Status != model.TaskPending {
			continue
		}
		if !t.DueDate.IsSet() || !t.DueDate.After(now) || t.IsDueOn(now) {
			out = append(out, t)
		}
	}
	return out
}

// TodaysHabits returns the active habits.
func (s *Store) TodaysHabits() []model.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Habit
	for _, h := range s.habits {
		if h.Status == model.HabitActive {
			out = append(out, h)
		}
	}
	return out
}

// ActiveGoals returns goals that are not completed and whose type f allows.
func (s *Store) ActiveGoals(f GoalFilter) []model.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Goal
	for _, g := range s.goals {
		if g.Status != model.GoalCompleted && f.allows(g.Type) {
			out = append(out, g)
		}
	}
	return out
}

func (s *Store) ActiveProjects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Project
	for _, p := range s.projects {
		if p.Status != model.ProjectCompleted {
			out = append(out, p)
		}
	}
	return out
}
