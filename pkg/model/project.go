package model

import (
	"github.com/google/uuid"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

type Project struct {
	ID                 string        `json:"id" validate:"required"`
	Title              string        `json:"title" validate:"required"`
	Description        string        `json:"description,omitempty"`
	Status             ProjectStatus `json:"status" validate:"oneof=planning active on_hold completed cancelled"`
	Priority           Priority      `json:"priority" validate:"oneof=low medium high urgent"`
	StartDate          *dates.Time   `json:"start_date,omitempty"`
	EndDate            *dates.Time   `json:"end_date,omitempty"`
	ProgressPercentage float64       `json:"progress_percentage" validate:"gte=0,lte=100"`
	Tags               []string      `json:"tags"`
	TaskIDs            []string      `json:"task_ids"`
	YearlyGoalID       string        `json:"yearly_goal_id,omitempty"`
	QuarterlyGoalID    string        `json:"quarterly_goal_id,omitempty"`
	UserID             string        `json:"user_id,omitempty"`
}

func NewProject(title string) *Project {
	return &Project{
		ID:       uuid.NewString(),
		Title:    title,
		Status:   ProjectPlanning,
		Priority: PriorityMedium,
		Tags:     []string{},
		TaskIDs:  []string{},
	}
}
