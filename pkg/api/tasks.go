package api

import (
	"context"
	"net/http"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

type createTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	DueDate        string   `json:"due_date,omitempty"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	ProjectID      string   `json:"project_id,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	UserID         string   `json:"user_id"`
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	return doJSON[[]model.Task](ctx, c, "list tasks", http.MethodGet, "tasks", c.userQuery(), nil)
}

func (c *Client) CreateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	req := createTaskRequest{
		Title:          t.Title,
		Description:    t.Description,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		ProjectID:      t.ProjectID,
		Tags:           t.Tags,
		EstimatedHours: t.EstimatedHours,
		UserID:         c.UserID(),
	}
	if t.DueDate.IsSet() {
		req.DueDate = dates.Format(t.DueDate.Time)
	}
	return doJSON[*model.Task](ctx, c, "create task", http.MethodPost, "tasks", nil, req)
}

func (c *Client) UpdateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	if err := requireID("update task", t.ID); err != nil {
		return nil, err
	}
	body := *t
	body.UserID = c.UserID()
	return doJSON[*model.Task](ctx, c, "update task", http.MethodPut, itemPath("tasks", t.ID), c.userQuery(), body)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := requireID("delete task", id); err != nil {
		return err
	}
	return c.doDelete(ctx, "delete task", itemPath("tasks", id))
}
