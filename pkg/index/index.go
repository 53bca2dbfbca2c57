// Package index remembers which calendar event mirrors which task, so a sync
// can fetch the event directly instead of searching for it.
package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const FileName = "events.json"

type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	// Path is where Save writes; empty keeps the index in memory only.
	Path  string `json:"-"`
	mu    sync.RWMutex
	dirty bool
}

func New() *EventIndex {
	return &EventIndex{Mappings: make(map[string]string)}
}

// Open loads the index at path. A missing file yields an empty index that
// will be created on the first Save.
func Open(path string) (*EventIndex, error) {
	idx := New()
	idx.Path = path

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(idx); err != nil {
		return nil, err
	}
	if idx.Mappings == nil {
		idx.Mappings = make(map[string]string)
	}
	return idx, nil
}

func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty || idx.Path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the event id for taskID, or "" when none is known.
func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[taskID] != eventID {
		idx.Mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.Mappings[taskID]; ok {
		delete(idx.Mappings, taskID)
		idx.dirty = true
	}
}

// TaskIDs returns the indexed task ids in sorted order.
func (idx *EventIndex) TaskIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.Mappings))
	for id := range idx.Mappings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
