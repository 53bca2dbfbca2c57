package model

import (
	"github.com/google/uuid"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

type HabitStatus string

const (
	HabitActive    HabitStatus = "active"
	HabitPaused    HabitStatus = "paused"
	HabitCompleted HabitStatus = "completed"
	HabitArchived  HabitStatus = "archived"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type Habit struct {
	ID               string      `json:"id" validate:"required"`
	Title            string      `json:"title" validate:"required"`
	Description      string      `json:"description,omitempty"`
	Status           HabitStatus `json:"status" validate:"oneof=active paused completed archived"`
	Frequency        Frequency   `json:"frequency" validate:"oneof=daily weekly monthly"`
	TargetCount      int         `json:"target_count" validate:"gte=1"`
	CurrentCount     int         `json:"current_count" validate:"gte=0"`
	CurrentStreak    int         `json:"current_streak" validate:"gte=0"`
	LongestStreak    int         `json:"longest_streak" validate:"gte=0"`
	TotalCompletions int         `json:"total_completions" validate:"gte=0"`
	ReminderTime     string      `json:"reminder_time,omitempty"`
	Tags             []string    `json:"tags"`
	LastCompletedAt  *dates.Time `json:"last_completed_at,omitempty"`
	UserID           string      `json:"user_id,omitempty"`
}

func NewHabit(title string) *Habit {
	return &Habit{
		ID:          uuid.NewString(),
		Title:       title,
		Status:      HabitActive,
		Frequency:   FrequencyDaily,
		TargetCount: 1,
		Tags:        []string{},
	}
}

// DoneForPeriod reports whether the current period's target has been reached.
func (h *Habit) DoneForPeriod() bool {
	return h.CurrentCount >= h.TargetCount
}
