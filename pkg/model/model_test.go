package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

func intPtr(i int) *int { return &i }

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	task := NewTask("File taxes")
	task.DueDate = dates.New(yesterday)
	assert.True(t, task.IsOverdue(now))

	task.Status = TaskCompleted
	assert.False(t, task.IsOverdue(now))

	task.Status = TaskPending
	task.DueDate = dates.New(now)
	assert.False(t, task.IsOverdue(now), "due exactly now is not strictly in the past")

	task.DueDate = nil
	assert.False(t, task.IsOverdue(now))
}

func TestTaskSetStatus(t *testing.T) {
	now := time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC)
	task := NewTask("Write report")

	task.SetStatus(TaskInProgress, now)
	assert.Nil(t, task.CompletedAt)

	task.SetStatus(TaskCompleted, now)
	require.True(t, task.CompletedAt.IsSet())
	assert.True(t, task.CompletedAt.Equal(now))

	task.SetStatus(TaskCompleted, now.Add(time.Hour))
	assert.True(t, task.CompletedAt.Equal(now), "re-completing keeps the original stamp")

	task.SetStatus(TaskPending, now)
	assert.Nil(t, task.CompletedAt)
}

func TestTaskIsDueOn(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	task := NewTask("Ship report")
	task.DueDate = dates.New(time.Date(2025, 8, 13, 23, 30, 0, 0, time.UTC))

	assert.True(t, task.IsDueOn(time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)))
	assert.True(t, task.IsDueOn(time.Date(2025, 8, 14, 9, 0, 0, 0, loc)))
	assert.False(t, task.IsDueOn(time.Date(2025, 8, 13, 9, 0, 0, 0, loc)))
}

func TestGoalNormalize(t *testing.T) {
	now := time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC)

	t.Run("weekly with only target_year is rejected", func(t *testing.T) {
		g := &Goal{Title: "Read more", Type: GoalWeekly, TargetYear: intPtr(2025)}

		err := g.Normalize()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidGoal))
		assert.Nil(t, g.TargetYear)
	})

	t.Run("weekly keeps only week_start_date", func(t *testing.T) {
		g := NewGoal("Read more", GoalWeekly, now)
		g.WeekStartDate = dates.New(time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC))
		g.TargetYear = intPtr(2025)
		g.TargetQuarter = intPtr(3)

		require.NoError(t, g.Normalize())
		assert.True(t, g.WeekStartDate.IsSet())
		assert.Nil(t, g.TargetYear)
		assert.Nil(t, g.TargetQuarter)
	})

	t.Run("quarterly", func(t *testing.T) {
		g := NewGoal("Launch beta", GoalQuarterly, now)
		g.TargetQuarter = intPtr(3)
		g.TargetYear = intPtr(2025)
		g.WeekStartDate = dates.New(time.Now())

		require.NoError(t, g.Normalize())
		assert.Nil(t, g.WeekStartDate)

		g.TargetYear = nil
		assert.ErrorIs(t, g.Normalize(), ErrInvalidGoal)
	})

	t.Run("yearly", func(t *testing.T) {
		g := NewGoal("Run a marathon", GoalYearly, now)
		g.TargetYear = intPtr(2025)
		g.TargetQuarter = intPtr(2)

		require.NoError(t, g.Normalize())
		assert.Nil(t, g.TargetQuarter)
		assert.Equal(t, 2025, *g.TargetYear)
	})

	t.Run("unknown type", func(t *testing.T) {
		g := NewGoal("Mystery", GoalType("daily"), now)
		assert.ErrorIs(t, g.Normalize(), ErrInvalidGoal)
	})
}

func TestNewGoalFillsPeriod(t *testing.T) {
	now := time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC)

	weekly := NewGoal("Read more", GoalWeekly, now)
	require.NoError(t, weekly.Normalize())
	assert.True(t, weekly.WeekStartDate.Time.Equal(now))
	assert.Nil(t, weekly.TargetYear)

	quarterly := NewGoal("Launch beta", GoalQuarterly, now)
	require.NoError(t, quarterly.Normalize())
	assert.Equal(t, 1, *quarterly.TargetQuarter)
	assert.Equal(t, 2025, *quarterly.TargetYear)
	assert.Nil(t, quarterly.WeekStartDate)

	yearly := NewGoal("Run a marathon", GoalYearly, now)
	require.NoError(t, yearly.Normalize())
	assert.Equal(t, 2025, *yearly.TargetYear)
	assert.Nil(t, yearly.TargetQuarter)

	kept := &Goal{Type: GoalQuarterly, TargetQuarter: intPtr(3)}
	kept.FillPeriod(now)
	assert.Equal(t, 3, *kept.TargetQuarter)
	assert.Equal(t, 2025, *kept.TargetYear)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(NewTask("ok")))
	require.NoError(t, Validate(NewHabit("ok")))
	require.NoError(t, Validate(NewProject("ok")))

	task := NewTask("")
	assert.Error(t, Validate(task))

	task = NewTask("bad status")
	task.Status = "waiting"
	assert.Error(t, Validate(task))

	habit := NewHabit("zero target")
	habit.TargetCount = 0
	assert.Error(t, Validate(habit))

	goal := NewGoal("over", GoalYearly, time.Now())
	goal.ProgressPercentage = 120
	assert.Error(t, Validate(goal))
}

func TestTaskJSONFromBackend(t *testing.T) {
	in := `{
		"id": "t1",
		"title": "Ship report",
		"status": "in_progress",
		"priority": "high",
		"due_date": "2025-08-13 17:00:00",
		"completed_at": null,
		"tags": ["work", "work"],
		"project_id": "p1",
		"estimated_hours": 2.5
	}`
	var task Task
	require.NoError(t, json.Unmarshal([]byte(in), &task))

	assert.Equal(t, TaskInProgress, task.Status)
	assert.Equal(t, []string{"work", "work"}, task.Tags)
	require.True(t, task.DueDate.IsSet())
	assert.Equal(t, 17, task.DueDate.Hour())
	assert.False(t, task.CompletedAt.IsSet())
	require.NotNil(t, task.EstimatedHours)
	assert.InDelta(t, 2.5, *task.EstimatedHours, 0.001)
}
