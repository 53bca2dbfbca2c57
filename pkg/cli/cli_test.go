package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onetaskassistant/onetask/pkg/config"
	"github.com/onetaskassistant/onetask/pkg/model"
)

// fakeBackend serves the REST API and the chat endpoint under /api.
type fakeBackend struct {
	mu       sync.Mutex
	tasks    []model.Task
	requests []string
	chat     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	switch {
	case path == "health":
		w.WriteHeader(http.StatusOK)
	case path == "tasks" && r.Method == http.MethodGet:
		reply(f.tasks)
	case path == "tasks" && r.Method == http.MethodPost:
		var body struct {
			Title    string `json:"title"`
			Priority string `json:"priority"`
			Status   string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		t := model.Task{ID: "cccc3333", Title: body.Title, Status: model.TaskStatus(body.Status), Priority: model.Priority(body.Priority), Tags: []string{}}
		f.tasks = append(f.tasks, t)
		reply(t)
	case strings.HasPrefix(path, "tasks/") && r.Method == http.MethodPut:
		var t model.Task
		_ = json.NewDecoder(r.Body).Decode(&t)
		reply(t)
	case strings.HasPrefix(path, "tasks/") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case path == "habits", path == "projects", strings.HasSuffix(path, "-goals"):
		reply([]any{})
	case path == "chat":
		reply(map[string]string{"response": f.chat})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) saw(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == req {
			return true
		}
	}
	return false
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tasks: []model.Task{
			{ID: "aaaa1111", Title: "Ship report", Status: model.TaskPending, Priority: model.PriorityHigh, Tags: []string{"work"}},
			{ID: "bbbb2222", Title: "Water plants", Status: model.TaskPending, Priority: model.PriorityLow, Tags: []string{}},
		},
		chat: "Focus on **Ship report** first.",
	}
}

// writeConfig points a fresh config file at baseURL and returns its path.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("api:\n  base_url: %s\nlog:\n  file: %s\n", baseURL, filepath.Join(dir, "onetask.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, app := NewRootCmd()
	defer app.Close()
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func startBackend(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return backend, writeConfig(t, srv.URL+"/api")
}

func TestHealth(t *testing.T) {
	_, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")
}

func TestTasksList(t *testing.T) {
	backend, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tasks (2)")
	assert.Contains(t, stdout, "Ship report")
	assert.Contains(t, stdout, "#work")
	assert.True(t, backend.saw("GET /api/weekly-goals"))
}

func TestTasksListOfflineShowsSampleData(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	cfg := writeConfig(t, srv.URL+"/api")

	stdout, stderr, err := run(t, cfg, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "showing sample data")
	assert.Contains(t, stdout, "Review project proposals")
}

func TestTasksAdd(t *testing.T) {
	backend, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "tasks", "add", "Write", "tests", "--priority", "urgent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Write tests")
	assert.True(t, backend.saw("POST /api/tasks"))
}

func TestTasksAddRejectsUnknownPriority(t *testing.T) {
	backend, cfg := startBackend(t)
	_, _, err := run(t, cfg, "tasks", "add", "Write", "--priority", "someday")
	require.Error(t, err)
	assert.False(t, backend.saw("POST /api/tasks"))
}

func TestTasksStatusByPrefix(t *testing.T) {
	backend, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "tasks", "status", "aaaa", "completed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[x]")
	assert.True(t, backend.saw("PUT /api/tasks/aaaa1111"))
}

func TestTasksRm(t *testing.T) {
	backend, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "tasks", "rm", "bbbb")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted task bbbb2222")
	assert.True(t, backend.saw("DELETE /api/tasks/bbbb2222"))
}

func TestContextJSON(t *testing.T) {
	_, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "context", "--json")
	require.NoError(t, err)

	var decoded struct {
		Tasks    []map[string]any `json:"tasks"`
		Metadata map[string]any   `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Len(t, decoded.Tasks, 2)
	assert.NotEmpty(t, decoded.Metadata)
}

func TestChatRaw(t *testing.T) {
	backend, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "chat", "--raw", "what", "now?")
	require.NoError(t, err)
	assert.Equal(t, "Focus on **Ship report** first.\n", stdout)
	assert.True(t, backend.saw("POST /api/chat"))
	assert.True(t, backend.saw("GET /api/tasks"), "context fetched before sending")
}

func TestChatEmptyMessage(t *testing.T) {
	_, cfg := startBackend(t)
	_, _, err := run(t, cfg, "chat", "--raw")
	assert.Error(t, err)
}

func TestConfigSetCalendar(t *testing.T) {
	_, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "config", "set-calendar", "Work", "--enable")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Work")

	loaded, err := config.LoadFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Work", loaded.Calendar.Name)
	assert.True(t, loaded.Calendar.Enabled)
}

func TestLogoutResetsToDemoUser(t *testing.T) {
	_, cfg := startBackend(t)
	stdout, _, err := run(t, cfg, "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed out.")

	loaded, err := config.LoadFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.DemoUserID, loaded.User.ID)

	stdout, _, err = run(t, cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, config.DemoUserName)
}

func TestResolveID(t *testing.T) {
	tasks := []model.Task{{ID: "abc1"}, {ID: "abc2"}, {ID: "xyz"}}

	id, err := resolveID("task", tasks, taskID, "xy")
	require.NoError(t, err)
	assert.Equal(t, "xyz", id)

	id, err = resolveID("task", tasks, taskID, "abc1")
	require.NoError(t, err)
	assert.Equal(t, "abc1", id)

	_, err = resolveID("task", tasks, taskID, "abc")
	assert.ErrorContains(t, err, "matches 2 tasks")

	_, err = resolveID("task", tasks, taskID, "nope")
	assert.Error(t, err)
}
