package api

import (
	"context"
	"net/http"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

type createProjectRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	YearlyGoalID    string   `json:"yearly_goal_id,omitempty"`
	QuarterlyGoalID string   `json:"quarterly_goal_id,omitempty"`
	UserID          string   `json:"user_id"`
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	return doJSON[[]model.Project](ctx, c, "list projects", http.MethodGet, "projects", c.userQuery(), nil)
}

func (c *Client) CreateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	req := createProjectRequest{
		Title:           p.Title,
		Description:     p.Description,
		Status:          string(p.Status),
		Priority:        string(p.Priority),
		Tags:            p.Tags,
		YearlyGoalID:    p.YearlyGoalID,
		QuarterlyGoalID: p.QuarterlyGoalID,
		UserID:          c.UserID(),
	}
	if p.StartDate.IsSet() {
		req.StartDate = dates.Format(p.StartDate.Time)
	}
	if p.EndDate.IsSet() {
		req.EndDate = dates.Format(p.EndDate.Time)
	}
	return doJSON[*model.Project](ctx, c, "create project", http.MethodPost, "projects", nil, req)
}

func (c *Client) UpdateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	if err := requireID("update project", p.ID); err != nil {
		return nil, err
	}
	body := *p
	body.UserID = c.UserID()
	return doJSON[*model.Project](ctx, c, "update project", http.MethodPut, itemPath("projects", p.ID), c.userQuery(), body)
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if err := requireID("delete project", id); err != nil {
		return err
	}
	return c.doDelete(ctx, "delete project", itemPath("projects", id))
}
