package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

var goalCollections = map[model.GoalType]string{
	model.GoalYearly:    "yearly-goals",
	model.GoalQuarterly: "quarterly-goals",
	model.GoalWeekly:    "weekly-goals",
}

func goalCollection(op string, t model.GoalType) (string, error) {
	collection, ok := goalCollections[t]
	if !ok {
		return "", &Error{Kind: KindInvalidRequest, Op: op, Err: fmt.Errorf("%w: unknown goal type %q", model.ErrInvalidGoal, t)}
	}
	return collection, nil
}

type createGoalRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	WeekStartDate   string   `json:"week_start_date,omitempty"`
	TargetQuarter   *int     `json:"target_quarter,omitempty"`
	TargetYear      *int     `json:"target_year,omitempty"`
	KeyMetrics      []string `json:"key_metrics"`
	QuarterlyGoalID string   `json:"quarterly_goal_id,omitempty"`
	YearlyGoalID    string   `json:"yearly_goal_id,omitempty"`
	UserID          string   `json:"user_id"`
}

// ListGoals reads one goal endpoint and tags every goal with its type.
func (c *Client) ListGoals(ctx context.Context, t model.GoalType) ([]model.Goal, error) {
	op := "list " + string(t) + " goals"
	collection, err := goalCollection(op, t)
	if err != nil {
		return nil, err
	}
	goals, err := doJSON[[]model.Goal](ctx, c, op, http.MethodGet, collection, c.userQuery(), nil)
	if err != nil {
		return nil, err
	}
	for i := range goals {
		goals[i].Type = t
		if err := goals[i].Normalize(); err != nil {
			c.logger.Warn("goal from backend is missing its date fields", zap.String("id", goals[i].ID), zap.Error(err))
		}
	}
	return goals, nil
}

// AllGoals reads the yearly, quarterly and weekly endpoints concurrently.
// Any failure fails the whole read.
func (c *Client) AllGoals(ctx context.Context) ([]model.Goal, error) {
	results := make([][]model.Goal, len(model.GoalTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range model.GoalTypes {
		g.Go(func() error {
			goals, err := c.ListGoals(gctx, t)
			if err != nil {
				return err
			}
			results[i] = goals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Goal
	for _, goals := range results {
		all = append(all, goals...)
	}
	return all, nil
}

// CreateGoal fills the type specific defaults (this week, quarter 1, the
// current year) and posts the goal to its endpoint.
func (c *Client) CreateGoal(ctx context.Context, goal *model.Goal) (*model.Goal, error) {
	op := "create " + string(goal.Type) + " goal"
	collection, err := goalCollection(op, goal.Type)
	if err != nil {
		return nil, err
	}

	g := *goal
	g.FillPeriod(c.now())
	if err := g.Normalize(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Op: op, Err: err}
	}

	req := createGoalRequest{
		Title:           g.Title,
		Description:     g.Description,
		TargetQuarter:   g.TargetQuarter,
		TargetYear:      g.TargetYear,
		KeyMetrics:      g.KeyMetrics,
		QuarterlyGoalID: g.QuarterlyGoalID,
		YearlyGoalID:    g.YearlyGoalID,
		UserID:          c.UserID(),
	}
	if req.KeyMetrics == nil {
		req.KeyMetrics = []string{}
	}
	if g.WeekStartDate.IsSet() {
		req.WeekStartDate = dates.FormatDay(g.WeekStartDate.Time)
	}

	created, err := doJSON[*model.Goal](ctx, c, op, http.MethodPost, collection, nil, req)
	if err != nil {
		return nil, err
	}
	created.Type = g.Type
	return created, nil
}

func (c *Client) UpdateGoal(ctx context.Context, goal *model.Goal) (*model.Goal, error) {
	op := "update " + string(goal.Type) + " goal"
	collection, err := goalCollection(op, goal.Type)
	if err != nil {
		return nil, err
	}
	if err := requireID(op, goal.ID); err != nil {
		return nil, err
	}
	body := *goal
	body.UserID = c.UserID()
	updated, err := doJSON[*model.Goal](ctx, c, op, http.MethodPut, itemPath(collection, goal.ID), c.userQuery(), body)
	if err != nil {
		return nil, err
	}
	updated.Type = goal.Type
	return updated, nil
}

func (c *Client) DeleteGoal(ctx context.Context, t model.GoalType, id string) error {
	op := "delete " + string(t) + " goal"
	collection, err := goalCollection(op, t)
	if err != nil {
		return err
	}
	if err := requireID(op, id); err != nil {
		return err
	}
	return c.doDelete(ctx, op, itemPath(collection, id))
}
