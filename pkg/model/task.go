package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of work as stored by the backend.
type Task struct {
	ID          string      `json:"id" validate:"required"`
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description,omitempty"`
	Status      TaskStatus  `json:"status" validate:"oneof=pending in_progress completed cancelled"`
	Priority    Priority    `json:"priority" validate:"oneof=low medium high urgent"`
	DueDate     *dates.Time `json:"due_date,omitempty"`
	CompletedAt *dates.Time `json:"completed_at,omitempty"`
	Tags        []string    `json:"tags"`
	ProjectID   string      `json:"project_id,omitempty"`
	// Links back into the planning hierarchy
	WeeklyGoalID string `json:"weekly_goal_id,omitempty"`
	HabitID      string `json:"habit_id,omitempty"`
	// Accounting
	EstimatedHours *float64    `json:"estimated_hours,omitempty" validate:"omitempty,gte=0"`
	ActualHours    *float64    `json:"actual_hours,omitempty" validate:"omitempty,gte=0"`
	CreatedAt      *dates.Time `json:"created_at,omitempty"`
	UpdatedAt      *dates.Time `json:"updated_at,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
}

// NewTask returns a pending, medium priority task with a fresh id.
func NewTask(title string) *Task {
	return &Task{
		ID:       uuid.NewString(),
		Title:    title,
		Status:   TaskPending,
		Priority: PriorityMedium,
		Tags:     []string{},
	}
}

// SetStatus moves the task to status. Entering completed stamps CompletedAt
// with now and leaving completed clears it.
func (t *Task) SetStatus(status TaskStatus, now time.Time) {
	switch {
	case status == TaskCompleted && t.Status != TaskCompleted:
		t.CompletedAt = dates.New(now)
	case status != TaskCompleted && t.Status == TaskCompleted:
		t.CompletedAt = nil
	}
	t.Status = status
}

// IsOverdue reports whether the due date lies strictly before now and the task is not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == TaskCompleted || !t.DueDate.IsSet() {
		return false
	}
	return t.DueDate.Before(now)
}

// IsDueOn reports whether the task is due on the calendar day of day, in day's location.
func (t *Task) IsDueOn(day time.Time) bool {
	if !t.DueDate.IsSet() {
		return false
	}
	due := t.DueDate.In(day.Location())
	y1, m1, d1 := due.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
