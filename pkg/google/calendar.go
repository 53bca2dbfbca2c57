package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/onetaskassistant/onetask/pkg/index"
	"github.com/onetaskassistant/onetask/pkg/model"
)

// Action says what SyncTask did to the calendar.
type Action int

const (
	Unchanged Action = iota
	Created
	Updated
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// Calendar reads and writes events of one Google calendar.
type Calendar struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	logger     *zap.Logger
}

func NewCalendar(srv *calendar.Service, calendarID string, idx *index.EventIndex, logger *zap.Logger) *Calendar {
	if idx == nil {
		idx = index.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calendar{srv: srv, calendarID: calendarID, index: idx, logger: logger.Named("calendar")}
}

func (c *Calendar) ID() string { return c.calendarID }

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone)
}

// SyncTask creates the event mirroring t or patches the existing one.
func (c *Calendar) SyncTask(ctx context.Context, t *model.Task, colorID string, now time.Time) (*calendar.Event, Action, error) {
	target, err := EventFromTask(t, colorID, now)
	if err != nil {
		return nil, Unchanged, err
	}

	existing, err := c.findEvent(ctx, t.ID)
	if err != nil {
		return nil, Unchanged, err
	}

	if existing == nil {
		created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
		if err != nil {
			return nil, Unchanged, fmt.Errorf("creating event for task %s: %w", t.ID, err)
		}
		c.index.Set(t.ID, created.Id)
		return created, Created, nil
	}

	patch, err := Patch(existing, target)
	if err != nil {
		return nil, Unchanged, err
	}
	if patch == nil {
		c.index.Set(t.ID, existing.Id)
		return existing, Unchanged, nil
	}

	updated, err := c.PatchEvent(ctx, existing.Id, patch)
	if err != nil {
		return nil, Unchanged, fmt.Errorf("patching event %s: %w", existing.Id, err)
	}
	c.index.Set(t.ID, updated.Id)
	return updated, Updated, nil
}

// findEvent looks the task's event up through the index first, then by its
// extended property.
func (c *Calendar) findEvent(ctx context.Context, taskID string) (*calendar.Event, error) {
	if eventID := c.index.Get(taskID); eventID != "" {
		ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		switch {
		case err == nil && ev.Status != "cancelled":
			return ev, nil
		case err != nil && !isNotFound(err):
			c.logger.Debug("indexed event lookup failed, searching instead", zap.String("event_id", eventID), zap.Error(err))
		}
		c.index.Remove(taskID)
	}

	ev, err := c.EventByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("searching event for task %s: %w", taskID, err)
	}
	return ev, nil
}

func (c *Calendar) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent removes an event; an event that is already gone is not an error.
func (c *Calendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// ListEvents returns the events starting at or after since.
func (c *Calendar) ListEvents(ctx context.Context, since time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(since.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// EventByTaskID returns the event carrying the task's extended property, or
// nil when there is none.
func (c *Calendar) EventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
