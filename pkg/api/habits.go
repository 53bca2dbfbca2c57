package api

import (
	"context"
	"net/http"

	"github.com/onetaskassistant/onetask/pkg/model"
)

type createHabitRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Frequency    string   `json:"frequency"`
	TargetCount  int      `json:"target_count"`
	ReminderTime string   `json:"reminder_time,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	UserID       string   `json:"user_id"`
}

func (c *Client) ListHabits(ctx context.Context) ([]model.Habit, error) {
	return doJSON[[]model.Habit](ctx, c, "list habits", http.MethodGet, "habits", c.userQuery(), nil)
}

func (c *Client) CreateHabit(ctx context.Context, h *model.Habit) (*model.Habit, error) {
	target := h.TargetCount
	if target < 1 {
		target = 1
	}
	req := createHabitRequest{
		Title:        h.Title,
		Description:  h.Description,
		Frequency:    string(h.Frequency),
		TargetCount:  target,
		ReminderTime: h.ReminderTime,
		Tags:         h.Tags,
		UserID:       c.UserID(),
	}
	return doJSON[*model.Habit](ctx, c, "create habit", http.MethodPost, "habits", nil, req)
}

func (c *Client) UpdateHabit(ctx context.Context, h *model.Habit) (*model.Habit, error) {
	if err := requireID("update habit", h.ID); err != nil {
		return nil, err
	}
	body := *h
	body.UserID = c.UserID()
	return doJSON[*model.Habit](ctx, c, "update habit", http.MethodPut, itemPath("habits", h.ID), c.userQuery(), body)
}

func (c *Client) DeleteHabit(ctx context.Context, id string) error {
	if err := requireID("delete habit", id); err != nil {
		return err
	}
	return c.doDelete(ctx, "delete habit", itemPath("habits", id))
}
