package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onetaskassistant/onetask/pkg/dates"
)

var ErrInvalidGoal = errors.New("invalid goal")

type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not_started"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
)

type GoalType string

const (
	GoalWeekly    GoalType = "weekly"
	GoalQuarterly GoalType = "quarterly"
	GoalYearly    GoalType = "yearly"
)

// GoalTypes lists the goal types in the order the backend groups them.
var GoalTypes = []GoalType{GoalYearly, GoalQuarterly, GoalWeekly}

// Goal is a weekly, quarterly or yearly goal. The backend does not send the
// type; it follows from the endpoint the goal was read from.
type Goal struct {
	ID                 string      `json:"id" validate:"required"`
	Title              string      `json:"title" validate:"required"`
	Description        string      `json:"description,omitempty"`
	Status             GoalStatus  `json:"status" validate:"oneof=not_started in_progress completed"`
	Type               GoalType    `json:"-"`
	WeekStartDate      *dates.Time `json:"week_start_date,omitempty"`
	TargetQuarter      *int        `json:"target_quarter,omitempty" validate:"omitempty,min=1,max=4"`
	TargetYear         *int        `json:"target_year,omitempty"`
	ProgressPercentage float64     `json:"progress_percentage" validate:"gte=0,lte=100"`
	KeyMetrics         []string    `json:"key_metrics"`
	QuarterlyGoalID    string      `json:"quarterly_goal_id,omitempty"`
	YearlyGoalID       string      `json:"yearly_goal_id,omitempty"`
	TaskIDs            []string    `json:"task_ids,omitempty"`
	CompletedAt        *dates.Time `json:"completed_at,omitempty"`
	UserID             string      `json:"user_id,omitempty"`
}

// NewGoal returns a goal whose period fields are already filled for its
// type, relative to now.
func NewGoal(title string, goalType GoalType, now time.Time) *Goal {
	g := &Goal{
		ID:         uuid.NewString(),
		Title:      title,
		Status:     GoalNotStarted,
		Type:       goalType,
		KeyMetrics: []string{},
	}
	g.FillPeriod(now)
	return g
}

// FillPeriod sets the missing date fields of the goal's type: the week of
// now for weekly goals, quarter 1 for quarterly goals and the year of now
// for quarterly and yearly goals. Fields already set are kept.
func (g *Goal) FillPeriod(now time.Time) {
	switch g.Type {
	case GoalWeekly:
		if !g.WeekStartDate.IsSet() {
			g.WeekStartDate = dates.New(now)
		}
	case GoalQuarterly:
		if g.TargetQuarter == nil {
			q := 1
			g.TargetQuarter = &q
		}
		fallthrough
	case GoalYearly:
		if g.TargetYear == nil {
			y := now.Year()
			g.TargetYear = &y
		}
	}
}

// Normalize enforces that exactly the date fields of the goal's type are set.
// Fields belonging to other types are cleared; a missing required field is an error.
func (g *Goal) Normalize() error {
	switch g.Type {
	case GoalWeekly:
		g.TargetQuarter = nil
		g.TargetYear = nil
		if !g.WeekStartDate.IsSet() {
			return fmt.Errorf("%w: weekly goal %q has no week_start_date", ErrInvalidGoal, g.Title)
		}
	case GoalQuarterly:
		g.WeekStartDate = nil
		if g.TargetQuarter == nil || g.TargetYear == nil {
			return fmt.Errorf("%w: quarterly goal %q needs target_quarter and target_year", ErrInvalidGoal, g.Title)
		}
	case GoalYearly:
		g.WeekStartDate = nil
		g.TargetQuarter = nil
		if g.TargetYear == nil {
			return fmt.Errorf("%w: yearly goal %q has no target_year", ErrInvalidGoal, g.Title)
		}
	default:
		return fmt.Errorf("%w: unknown goal type %q", ErrInvalidGoal, g.Type)
	}
	return nil
}

// ParseGoalType accepts a goal type name as typed on the command line.
func ParseGoalType(s string) (GoalType, error) {
	switch GoalType(s) {
	case GoalWeekly, GoalQuarterly, GoalYearly:
		return GoalType(s), nil
	}
	return "", fmt.Errorf("%w: unknown goal type %q", ErrInvalidGoal, s)
}
