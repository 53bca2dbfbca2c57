// Package colors hands out Google Calendar event colours per project and
// recycles the least recently used one once all are taken.
package colors

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	FileName = "project_colors.json"

	// NoProject is the colour for tasks outside any project (graphite).
	NoProject = "8"

	// paletteSize is the number of event colours Google Calendar defines.
	paletteSize = 11
)

type ProjectState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

type ColorCache struct {
	Projects map[string]*ProjectState `json:"projects"`
	// Path is where Save writes; empty keeps the cache in memory only.
	Path  string `json:"-"`
	mu    sync.Mutex
	dirty bool
}

func New() *ColorCache {
	return &ColorCache{Projects: make(map[string]*ProjectState)}
}

// Open loads the cache at path; a missing file yields an empty cache.
func Open(path string) (*ColorCache, error) {
	c := New()
	c.Path = path

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	if c.Projects == nil {
		c.Projects = make(map[string]*ProjectState)
	}
	return c, nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.Path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(c); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the colour of projectID, assigning one on first use.
func (c *ColorCache) ColorID(projectID string, now time.Time) string {
	if projectID == "" {
		return NoProject
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Projects[projectID]; ok {
		state.LastUsed = now
		c.dirty = true
		return state.ColorID
	}
	return c.assign(projectID, now)
}

func (c *ColorCache) assign(projectID string, now time.Time) string {
	used := make(map[string]bool, len(c.Projects))
	for _, s := range c.Projects {
		used[s.ColorID] = true
	}

	colorID := ""
	for i := 1; i <= paletteSize; i++ {
		if id := strconv.Itoa(i); !used[id] {
			colorID = id
			break
		}
	}

	if colorID == "" {
		var oldest string
		for p, s := range c.Projects {
			if oldest == "" || s.LastUsed.Before(c.Projects[oldest].LastUsed) {
				oldest = p
			}
		}
		colorID = c.Projects[oldest].ColorID
		delete(c.Projects, oldest)
	}

	c.Projects[projectID] = &ProjectState{ColorID: colorID, LastUsed: now}
	c.dirty = true
	return colorID
}
