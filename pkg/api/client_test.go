package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeBackend) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), opts ...Option) (*Client, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{handler: handler}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithUserID("user-1"), WithHTTPClient(srv.Client())}, opts...)
	c, err := NewClient(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c, backend
}

func respond(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.True(t, IsKind(err, KindInvalidRequest))

	_, err = NewClient("://missing-scheme")
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestListTasks(t *testing.T) {
	body := `[{"id":"t1","title":"Ship report","status":"pending","priority":"high","due_date":"2025-08-13 17:00:00+00:00","tags":[]}]`
	c, backend := newTestClient(t, respond(http.StatusOK, body),
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"})))

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Ship report", tasks[0].Title)
	assert.True(t, tasks[0].DueDate.Equal(time.Date(2025, 8, 13, 17, 0, 0, 0, time.UTC)))

	req := backend.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/tasks", req.Path)
	assert.Equal(t, "user_id=user-1", req.Query)
	assert.Equal(t, "Bearer secret", req.Auth)
}

func TestNoTokenSendsNoAuthorization(t *testing.T) {
	c, backend := newTestClient(t, respond(http.StatusOK, `[]`))
	_, err := c.ListHabits(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backend.last().Auth)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"http status", http.StatusInternalServerError, `{"error":"boom"}`, KindHTTPStatus},
		{"empty body", http.StatusOK, ``, KindNoResponseBody},
		{"null body", http.StatusOK, `null`, KindNoResponseBody},
		{"wrong shape", http.StatusOK, `{"tasks":[]}`, KindDecodeFailure},
		{"html page", http.StatusOK, `<html>gateway</html>`, KindDecodeFailure},
		{"bad date", http.StatusOK, `[{"id":"t","title":"x","due_date":"tomorrow"}]`, KindDecodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, respond(tt.status, tt.body))
			_, err := c.ListTasks(context.Background())
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, "list tasks", apiErr.Op)
			if tt.kind == KindHTTPStatus {
				assert.Equal(t, tt.status, StatusCode(err))
			}
		})
	}
}

func TestResponseBodyIsCapped(t *testing.T) {
	big := `[{"id":"t1","title":"` + strings.Repeat("a", 64) + `"}]`
	c, _ := newTestClient(t, respond(http.StatusOK, big), WithMaxResponseBytes(32))
	_, err := c.ListTasks(context.Background())
	assert.True(t, IsKind(err, KindDecodeFailure))
	assert.ErrorIs(t, err, ErrResponseTooLarge)

	c, _ = newTestClient(t, respond(http.StatusOK, big), WithMaxResponseBytes(int64(len(big))))
	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)
	_, err = c.ListProjects(context.Background())
	assert.True(t, IsKind(err, KindTransport))
	assert.True(t, IsTransport(err))
}

func TestTimeoutIsTransport(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	err := c.Health(context.Background())
	assert.True(t, IsKind(err, KindTransport))
}

func TestHealth(t *testing.T) {
	c, backend := newTestClient(t, respond(http.StatusOK, `{"status":"ok"}`))
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, "/api/health", backend.last().Path)
	assert.Empty(t, backend.last().Query)

	c, _ = newTestClient(t, respond(http.StatusServiceUnavailable, ``))
	assert.True(t, IsKind(c.Health(context.Background()), KindHTTPStatus))
}

func TestDeleteStatuses(t *testing.T) {
	for status, ok := range map[int]bool{
		http.StatusOK:         true,
		http.StatusNoContent:  true,
		http.StatusAccepted:   false,
		http.StatusNotFound:   false,
		http.StatusBadRequest: false,
	} {
		c, backend := newTestClient(t, respond(status, ``))
		err := c.DeleteTask(context.Background(), "t 1")
		if ok {
			assert.NoError(t, err, status)
		} else {
			assert.True(t, IsKind(err, KindHTTPStatus), status)
		}
		req := backend.last()
		assert.Equal(t, http.MethodDelete, req.Method)
		assert.Equal(t, "/api/tasks/t 1", req.Path)
		assert.Equal(t, "user_id=user-1", req.Query)
	}
}

func TestDeleteRequiresID(t *testing.T) {
	c, _ := newTestClient(t, respond(http.StatusOK, ``))
	assert.True(t, IsKind(c.DeleteHabit(context.Background(), " "), KindInvalidRequest))
}

func TestCreateTaskBody(t *testing.T) {
	c, backend := newTestClient(t, respond(http.StatusCreated, `{"id":"srv-1","title":"Ship report","status":"pending","priority":"high","tags":[]}`))

	task := model.NewTask("Ship report")
	task.Priority = model.PriorityHigh
	task.DueDate = dates.New(time.Date(2025, 8, 13, 19, 0, 0, 0, time.FixedZone("CEST", 2*60*60)))

	created, err := c.CreateTask(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)

	req := backend.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/tasks", req.Path)
	assert.Equal(t, "user-1", req.Body["user_id"])
	assert.Equal(t, "2025-08-13T17:00:00Z", req.Body["due_date"])
	assert.Equal(t, "high", req.Body["priority"])
	assert.Equal(t, "pending", req.Body["status"])
}

func TestUpdateTaskSendsWireDates(t *testing.T) {
	c, backend := newTestClient(t, respond(http.StatusOK, `{"id":"t1","title":"Ship","status":"completed","priority":"low","tags":[]}`))

	task := model.NewTask("Ship")
	task.ID = "t1"
	task.SetStatus(model.TaskCompleted, time.Date(2025, 8, 13, 13, 58, 11, 0, time.UTC))

	_, err := c.UpdateTask(context.Background(), task)
	require.NoError(t, err)

	req := backend.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/tasks/t1", req.Path)
	assert.Equal(t, "user_id=user-1", req.Query)
	assert.Equal(t, "2025-08-13T13:58:11Z", req.Body["completed_at"])
	assert.Equal(t, "user-1", req.Body["user_id"])
}

func TestAllGoalsTagsTypes(t *testing.T) {
	c, backend := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/yearly-goals":
			_, _ = io.WriteString(w, `[{"id":"y","title":"Y","status":"in_progress","target_year":2025,"target_quarter":2,"key_metrics":[]}]`)
		case "/api/quarterly-goals":
			_, _ = io.WriteString(w, `[{"id":"q","title":"Q","status":"not_started","target_quarter":3,"target_year":2025,"key_metrics":[]}]`)
		case "/api/weekly-goals":
			_, _ = io.WriteString(w, `[{"id":"w","title":"W","status":"completed","week_start_date":"2025-08-11","key_metrics":["5 runs"]}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	goals, err := c.AllGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 3)

	byID := map[string]model.Goal{}
	for _, g := range goals {
		byID[g.ID] = g
	}
	assert.Equal(t, model.GoalYearly, byID["y"].Type)
	assert.Nil(t, byID["y"].TargetQuarter, "yearly goals keep only target_year")
	assert.Equal(t, model.GoalQuarterly, byID["q"].Type)
	assert.Equal(t, model.GoalWeekly, byID["w"].Type)
	assert.Equal(t, []string{"5 runs"}, byID["w"].KeyMetrics)
	assert.Len(t, backend.requests, 3)
}

func TestAllGoalsFailsOnAnyEndpoint(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/weekly-goals" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	_, err := c.AllGoals(context.Background())
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestCreateGoalDefaults(t *testing.T) {
	now := time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC)
	c, backend := newTestClient(t, respond(http.StatusCreated, `{"id":"g","title":"G","status":"not_started","key_metrics":[]}`),
		WithClock(func() time.Time { return now }))

	t.Run("weekly", func(t *testing.T) {
		created, err := c.CreateGoal(context.Background(), &model.Goal{Title: "Run", Type: model.GoalWeekly})
		require.NoError(t, err)
		assert.Equal(t, model.GoalWeekly, created.Type)

		req := backend.last()
		assert.Equal(t, "/api/weekly-goals", req.Path)
		assert.Equal(t, "2025-08-13", req.Body["week_start_date"])
		assert.NotContains(t, req.Body, "target_year")
	})

	t.Run("quarterly", func(t *testing.T) {
		_, err := c.CreateGoal(context.Background(), &model.Goal{Title: "Beta", Type: model.GoalQuarterly})
		require.NoError(t, err)

		req := backend.last()
		assert.Equal(t, "/api/quarterly-goals", req.Path)
		assert.EqualValues(t, 1, req.Body["target_quarter"])
		assert.EqualValues(t, 2025, req.Body["target_year"])
		assert.NotContains(t, req.Body, "week_start_date")
	})

	t.Run("yearly drops foreign fields", func(t *testing.T) {
		g := &model.Goal{Title: "Marathon", Type: model.GoalYearly}
		q := 4
		g.TargetQuarter = &q
		_, err := c.CreateGoal(context.Background(), g)
		require.NoError(t, err)

		req := backend.last()
		assert.Equal(t, "/api/yearly-goals", req.Path)
		assert.EqualValues(t, 2025, req.Body["target_year"])
		assert.NotContains(t, req.Body, "target_quarter")
		assert.Equal(t, "user-1", req.Body["user_id"])
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := c.CreateGoal(context.Background(), &model.Goal{Title: "?", Type: model.GoalType("daily")})
		assert.True(t, IsKind(err, KindInvalidRequest))
		assert.ErrorIs(t, err, model.ErrInvalidGoal)
	})
}

func TestSetUserIDScopesLaterRequests(t *testing.T) {
	c, backend := newTestClient(t, respond(http.StatusOK, `[]`))
	c.SetUserID("oid-2")
	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user_id=oid-2", backend.last().Query)
}
