// Package overdue tracks mirrored tasks that are still pending so the sync
// can notice the moment they fall overdue.
package overdue

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/onetaskassistant/onetask/pkg/model"
)

const FileName = "pending_tasks.json"

type Entry struct {
	TaskID  string    `json:"task_id"`
	EventID string    `json:"event_id"`
	Summary string    `json:"summary"`
	Due     time.Time `json:"due"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	// Path is where Save writes; empty keeps the table in memory only.
	Path  string `json:"-"`
	mu    sync.Mutex
	dirty bool
}

func New() *Table {
	return &Table{Entries: make(map[string]Entry)}
}

func Open(path string) (*Table, error) {
	t := New()
	t.Path = path

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return nil, err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return t, nil
}

func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty || t.Path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records a pending task due in the future. Anything else is dropped
// from the table.
func (t *Table) Track(task *model.Task, eventID, summary string, now time.Time) {
	if task.Status != model.TaskPending || !task.DueDate.IsSet() || !task.DueDate.After(now) {
		t.Remove(task.ID)
		return
	}

	due := task.DueDate.Value()
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.Entries[task.ID]
	if ok && old.Due.Equal(due) && old.EventID == eventID && old.Summary == summary {
		return
	}
	t.Entries[task.ID] = Entry{TaskID: task.ID, EventID: eventID, Summary: summary, Due: due}
	t.dirty = true
}

func (t *Table) Remove(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.Entries[taskID]; ok {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep removes and returns the entries whose due time is before now,
// earliest first.
func (t *Table) Sweep(now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var swept []Entry
	for id, e := range t.Entries {
		if e.Due.Before(now) {
			swept = append(swept, e)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	slices.SortFunc(swept, func(a, b Entry) int { return a.Due.Compare(b.Due) })
	return swept
}

// Filter returns the overdue tasks in tasks, earliest due first.
func Filter(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task
	for i := range tasks {
		if tasks[i].IsOverdue(now) {
			out = append(out, tasks[i])
		}
	}
	slices.SortStableFunc(out, func(a, b model.Task) int {
		return a.DueDate.Compare(b.DueDate.Time)
	})
	return out
}
