package store

import (
	"time"

	"github.com/onetaskassistant/onetask/pkg/config"
	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

// Sample is the demo content shown before the first successful sync.
type Sample struct {
	Tasks    []model.Task
	Habits   []model.Habit
	Goals    []model.Goal
	Projects []model.Project
}

func SampleData(now time.Time) Sample {
	task := func(title, desc string, status model.TaskStatus, p model.Priority, due time.Time) model.Task {
		t := model.NewTask(title)
		t.Description = desc
		t.Priority = p
		t.DueDate = dates.New(due)
		t.SetStatus(status, now)
		t.CreatedAt, t.UpdatedAt = dates.New(now), dates.New(now)
		t.UserID = config.DemoUserID
		return *t
	}
	habit := func(title, desc string) model.Habit {
		h := model.NewHabit(title)
		h.Description = desc
		h.UserID = config.DemoUserID
		return *h
	}
	goal := func(title, desc string) model.Goal {
		g := model.NewGoal(title, model.GoalYearly, now)
		g.Description = desc
		g.UserID = config.DemoUserID
		return *g
	}
	project := func(title, desc string) model.Project {
		p := model.NewProject(title)
		p.Description = desc
		p.Status = model.ProjectActive
		p.UserID = config.DemoUserID
		return *p
	}

	return Sample{
		Tasks: []model.Task{
			task("Review project proposals", "Review and provide feedback on Q1 project proposals", model.TaskPending, model.PriorityHigh, now),
			task("Call team meeting", "Weekly sync with development team", model.TaskCompleted, model.PriorityMedium, now),
			task("Update documentation", "Update API documentation with latest changes", model.TaskPending, model.PriorityLow, now.AddDate(0, 0, 1)),
		},
		Habits: []model.Habit{
			habit("Morning exercise", "30 minutes of exercise"),
			habit("Read for 30 minutes", "Daily reading habit"),
		},
		Goals: []model.Goal{
			goal("Complete the assistant CLI", "Ship the first release of the command line client"),
			goal("Learn Go concurrency", "Get comfortable with errgroup and context cancellation"),
		},
		Projects: []model.Project{
			project("1TaskAssistant CLI", "Terminal companion app"),
			project("Learning Go", "Master backend development"),
		},
	}
}
