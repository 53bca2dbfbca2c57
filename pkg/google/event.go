package google

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/onetaskassistant/onetask/pkg/model"
)

// TaskIDProperty is the private extended property linking an event to its task.
const TaskIDProperty = "onetask_id"

const defaultDuration = 30 * time.Minute

var ErrUndated = errors.New("task has neither a due date nor a completion time")

func hours(h *float64) time.Duration {
	if h == nil || *h <= 0 {
		return 0
	}
	return time.Duration(*h * float64(time.Hour))
}

// Summary is the event title for t: the task title behind a status marker,
// ✓ for completed, ‣ for in progress and ! for overdue.
func Summary(t *model.Task, now time.Time) string {
	prefix := ""
	switch {
	case t.Status == model.TaskCompleted:
		prefix = "✓"
	case t.Status == model.TaskInProgress:
		prefix = "‣"
	case t.IsOverdue(now):
		prefix = "!"
	}
	if prefix == "" {
		return t.Title
	}
	return prefix + " " + t.Title
}

// EventFromTask converts t into the event that mirrors it. Completed tasks
// end at their completion time; all others start at their due time. The
// event lasts the actual hours, else the estimate, else half an hour.
func EventFromTask(t *model.Task, colorID string, now time.Time) (*calendar.Event, error) {
	if t == nil {
		return nil, errors.New("could not convert nil task")
	}

	est, act := hours(t.EstimatedHours), hours(t.ActualHours)
	duration := defaultDuration
	var start, end time.Time

	switch {
	case t.Status == model.TaskCompleted && (t.CompletedAt.IsSet() || t.DueDate.IsSet()):
		end = t.CompletedAt.Value()
		if end.IsZero() {
			end = t.DueDate.Value()
		}
		if act > 0 {
			duration = act
		} else if est > 0 {
			duration = est
		}
		start = end.Add(-duration)
	case t.DueDate.IsSet():
		start = t.DueDate.Value()
		if est > 0 {
			duration = est
		}
		end = start.Add(duration)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUndated, t.ID)
	}

	return &calendar.Event{
		Summary:     Summary(t, now),
		Description: describe(t, est, act),
		ColorId:     colorID,
		Start:       &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: t.ID},
		},
	}, nil
}

func describe(t *model.Task, est, act time.Duration) string {
	var b strings.Builder

	if len(t.Tags) > 0 {
		for _, tag := range t.Tags {
			fmt.Fprintf(&b, "#%s ", tag)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	if t.ProjectID != "" {
		fmt.Fprintf(&b, "Project: %s\n", t.ProjectID)
	}
	fmt.Fprintf(&b, "ID: %s\n", t.ID)

	if est > 0 || act > 0 {
		b.WriteString("\nAccounting:\n")
		if est > 0 {
			fmt.Fprintf(&b, "• estimated: %s\n", est)
		}
		if act > 0 {
			fmt.Fprintf(&b, "• spent: %s\n", act)
			if diff := act - est; est > 0 && diff > 0 {
				fmt.Fprintf(&b, "• over estimate by: %s\n", diff)
			} else if est > 0 && diff < 0 {
				fmt.Fprintf(&b, "• under estimate by: %s\n", -diff)
			}
		}
	}

	if desc := strings.TrimSpace(t.Description); desc != "" {
		b.WriteString("\nNotes:\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}

// Patch returns the fields of target that differ from existing, or nil when
// the event is already up to date.
func Patch(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	changed := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		changed = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		changed = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		changed = true
	}

	same, err := sameTimes(existing, target)
	if err != nil {
		return nil, err
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		changed = true
	}

	if !changed {
		return nil, nil
	}
	return patch, nil
}

func sameTimes(a, b *calendar.Event) (bool, error) {
	if a.Start == nil || a.End == nil {
		return false, nil
	}
	pairs := [][2]string{
		{a.Start.DateTime, b.Start.DateTime},
		{a.End.DateTime, b.End.DateTime},
	}
	for _, p := range pairs {
		x, err := time.Parse(time.RFC3339, p[0])
		if err != nil {
			return false, fmt.Errorf("parsing event time %q: %w", p[0], err)
		}
		y, err := time.Parse(time.RFC3339, p[1])
		if err != nil {
			return false, fmt.Errorf("parsing event time %q: %w", p[1], err)
		}
		if !x.Equal(y) {
			return false, nil
		}
	}
	return true, nil
}

// TaskID returns the id of the task ev mirrors.
func TaskID(ev *calendar.Event) (string, bool) {
	if ev == nil || ev.ExtendedProperties == nil {
		return "", false
	}
	id, ok := ev.ExtendedProperties.Private[TaskIDProperty]
	return id, ok && id != ""
}
