package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/onetaskassistant/onetask/pkg/colors"
	"github.com/onetaskassistant/onetask/pkg/index"
	"github.com/onetaskassistant/onetask/pkg/model"
	"github.com/onetaskassistant/onetask/pkg/overdue"
)

// Mirror keeps a calendar in step with the task list.
type Mirror struct {
	Calendar *Calendar
	Index    *index.EventIndex
	Colors   *colors.ColorCache
	Pending  *overdue.Table
	Logger   *zap.Logger
}

type Report struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	// Skipped counts tasks without any date to place them on.
	Skipped int
	// NewlyOverdue lists the tasks that fell overdue since the last run.
	NewlyOverdue []overdue.Entry
}

// Run mirrors every dated task, removes events whose task is gone and
// reports the tasks that became overdue since the previous run. Errors on
// single tasks are collected and do not stop the run.
func (m *Mirror) Run(ctx context.Context, tasks []model.Task, now time.Time) (Report, error) {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	report := Report{NewlyOverdue: m.Pending.Sweep(now)}
	seen := make(map[string]bool, len(tasks))
	var errs []error

	for i := range tasks {
		t := &tasks[i]
		seen[t.ID] = true

		ev, action, err := m.Calendar.SyncTask(ctx, t, m.Colors.ColorID(t.ProjectID, now), now)
		if errors.Is(err, ErrUndated) {
			report.Skipped++
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch action {
		case Created:
			report.Created++
		case Updated:
			report.Updated++
		default:
			report.Unchanged++
		}
		m.Pending.Track(t, ev.Id, ev.Summary, now)
	}

	for _, taskID := range m.Index.TaskIDs() {
		if seen[taskID] {
			continue
		}
		if err := m.Calendar.DeleteEvent(ctx, m.Index.Get(taskID)); err != nil {
			errs = append(errs, fmt.Errorf("deleting event of removed task %s: %w", taskID, err))
			continue
		}
		m.Index.Remove(taskID)
		m.Pending.Remove(taskID)
		report.Deleted++
	}

	logger.Info("calendar mirrored",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
		zap.Int("newly_overdue", len(report.NewlyOverdue)),
	)
	return report, errors.Join(errs...)
}

// Save persists the index, colour cache and pending table.
func (m *Mirror) Save() error {
	return errors.Join(m.Index.Save(), m.Colors.Save(), m.Pending.Save())
}
