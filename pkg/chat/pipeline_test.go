package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
	"github.com/onetaskassistant/onetask/pkg/rag"
)

type memoryBackend struct {
	tasks    []model.Task
	habits   []model.Habit
	goals    []model.Goal
	projects []model.Project
	err      error
}

func (m *memoryBackend) UserID() string { return "user-1" }

func (m *memoryBackend) ListTasks(context.Context) ([]model.Task, error) {
	return m.tasks, m.err
}

func (m *memoryBackend) ListHabits(context.Context) ([]model.Habit, error) {
	return m.habits, nil
}

func (m *memoryBackend) AllGoals(context.Context) ([]model.Goal, error) {
	return m.goals, nil
}

func (m *memoryBackend) ListProjects(context.Context) ([]model.Project, error) {
	return m.projects, nil
}

func sampleBackend() *memoryBackend {
	due := dates.New(time.Date(2025, 8, 13, 17, 0, 0, 0, time.UTC))
	return &memoryBackend{
		tasks: []model.Task{{
			ID: "t1", Title: "Ship report", Status: model.TaskPending,
			Priority: model.PriorityHigh, DueDate: due,
		}},
		projects: []model.Project{{ID: "p1", Title: "Launch", Status: model.ProjectActive}},
		habits:   []model.Habit{{ID: "h1", Title: "Meditate", Status: model.HabitActive, TargetCount: 1}},
	}
}

type chatCall struct {
	Header http.Header
	Body   chatRequest
}

type chatServer struct {
	mu      sync.Mutex
	calls   []chatCall
	handler http.HandlerFunc
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	b, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(b, &body)
	s.mu.Lock()
	s.calls = append(s.calls, chatCall{Header: r.Header.Clone(), Body: body})
	s.mu.Unlock()
	s.handler(w, r)
}

func newPipeline(t *testing.T, backend Backend, handler http.HandlerFunc, mutate func(*Config)) (*Pipeline, *chatServer) {
	t.Helper()
	srv := &chatServer{handler: handler}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := Config{
		BaseURL:    ts.URL + "/api",
		Backend:    backend,
		HTTPClient: ts.Client(),
		Builder:    rag.NewBuilder(time.UTC),
		Now:        func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	return p, srv
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestSendHeadersAndBody(t *testing.T) {
	p, srv := newPipeline(t, sampleBackend(), reply(http.StatusOK, `{"response":"Focus on Ship report."}`), func(c *Config) {
		c.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})
	})

	res, err := p.Send(context.Background(), "What should I focus on?", nil)
	require.NoError(t, err)
	assert.Equal(t, KindJSON, res.Kind)
	assert.Equal(t, "Focus on Ship report.", res.Response.Response)

	require.Len(t, srv.calls, 1)
	call := srv.calls[0]
	assert.Equal(t, "application/json", call.Header.Get("Content-Type"))
	assert.Equal(t, "true", call.Header.Get("X-Use-RAG-Context"))
	assert.Equal(t, "MANDATORY", call.Header.Get("X-Context-Required"))
	assert.Equal(t, "RAG-ENABLED", call.Header.Get("X-Chat-Mode"))
	assert.Equal(t, "cli", call.Header.Get("X-Client-Source"))
	assert.NotEmpty(t, call.Header.Get("X-Request-ID"))
	assert.Equal(t, "Bearer tok", call.Header.Get("Authorization"))

	assert.Equal(t, "user-1", call.Body.UserID)
	assert.Contains(t, call.Body.Prompt, "CURRENT USER DATA:")
	assert.Contains(t, call.Body.Prompt, "Ship report [Priority: high] (due: 2025-08-13T17:00:00Z)")
	assert.Contains(t, call.Body.Prompt, "USER QUESTION: What should I focus on?")
}

func TestSendPlainTextAndFallback(t *testing.T) {
	p, _ := newPipeline(t, sampleBackend(), reply(http.StatusOK, "Sure, here's your answer"), nil)
	res, err := p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, KindPlainText, res.Kind)
	assert.Equal(t, "Sure, here's your answer", res.Response.Response)

	p, _ = newPipeline(t, sampleBackend(), reply(http.StatusBadGateway, "<html>bad gateway</html>"), nil)
	res, err = p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, KindFallback, res.Kind)
	assert.Equal(t, FallbackMessage("hi"), res.Response.Response)
}

func TestSendEmptyBodyIsDecodeFailure(t *testing.T) {
	var states []State
	p, _ := newPipeline(t, sampleBackend(), reply(http.StatusOK, ""), func(c *Config) {
		c.Observer = func(s State) { states = append(states, s) }
	})
	_, err := p.Send(context.Background(), "hi", nil)
	assert.True(t, IsDecode(err))
	assert.Equal(t, FailedDecode, states[len(states)-1])
}

func TestSendFetchFailureUsesEmptyContext(t *testing.T) {
	backend := sampleBackend()
	backend.err = errors.New("backend down")

	p, srv := newPipeline(t, backend, reply(http.StatusOK, `{"response":"ok"}`), nil)
	_, err := p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)

	require.Len(t, srv.calls, 1)
	prompt := srv.calls[0].Body.Prompt
	assert.Contains(t, prompt, "NO PRODUCTIVITY DATA YET")
	assert.NotContains(t, prompt, "Ship report")
}

func TestSendUsesProvidedContext(t *testing.T) {
	backend := &memoryBackend{err: errors.New("must not be called")}
	rctx := rag.NewBuilder(time.UTC).Build(rag.Input{
		Tasks: []model.Task{{ID: "x", Title: "Provided task", Status: model.TaskPending, Priority: model.PriorityLow}},
	}, fixedNow)

	p, srv := newPipeline(t, backend, reply(http.StatusOK, `{"response":"ok"}`), nil)
	_, err := p.Send(context.Background(), "hi", rctx)
	require.NoError(t, err)
	assert.Contains(t, srv.calls[0].Body.Prompt, "Provided task")
}

func TestSendObserverSequence(t *testing.T) {
	var states []State
	p, _ := newPipeline(t, sampleBackend(), reply(http.StatusOK, `{"response":"ok"}`), func(c *Config) {
		c.Observer = func(s State) { states = append(states, s) }
	})
	_, err := p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []State{Composing, ContextFetch, Sending, AwaitingResponse, Succeeded}, states)
}

func TestSendRetriesOnceAfterNetworkFailure(t *testing.T) {
	var hits atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		_, _ = io.WriteString(w, `{"response":"second time lucky"}`)
	}

	p, _ := newPipeline(t, sampleBackend(), handler, func(c *Config) { c.Retry = 1 })
	res, err := p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", res.Response.Response)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSendWithoutRetryFailsOnNetworkError(t *testing.T) {
	p, _ := newPipeline(t, sampleBackend(), reply(http.StatusOK, "unused"), func(c *Config) {
		c.BaseURL = "http://127.0.0.1:1"
	})
	_, err := p.Send(context.Background(), "hi", nil)
	assert.True(t, IsNetwork(err))
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	handler := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}

	var states []State
	p, _ := newPipeline(t, sampleBackend(), handler, func(c *Config) {
		c.Timeout = 50 * time.Millisecond
		c.Observer = func(s State) { states = append(states, s) }
	})
	_, err := p.Send(context.Background(), "hi", rag.NewBuilder(time.UTC).Build(rag.Input{}, fixedNow))
	assert.True(t, IsNetwork(err))
	assert.Equal(t, FailedNetwork, states[len(states)-1])
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	var states []State
	p, srv := newPipeline(t, sampleBackend(), reply(http.StatusOK, `{"response":"ok"}`), func(c *Config) {
		c.Observer = func(s State) { states = append(states, s) }
	})
	_, err := p.Send(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, srv.calls)
	assert.Empty(t, states, "nothing is composed for an empty message")
}

func TestNewPipelineRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "http://[::1", "not a url", "/relative/only"} {
		_, err := NewPipeline(Config{BaseURL: base, Backend: sampleBackend()})
		assert.ErrorIs(t, err, ErrInvalidRequest, base)
	}

	p, err := NewPipeline(Config{BaseURL: "https://chat.example.com/api/", Backend: sampleBackend()})
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/api/chat", p.endpoint)
}

func TestSendOversizedBodyIsDecodeFailure(t *testing.T) {
	var states []State
	p, srv := newPipeline(t, sampleBackend(), reply(http.StatusOK, strings.Repeat("x", 64)), func(c *Config) {
		c.MaxResponseBytes = 16
		c.Retry = 1
		c.Observer = func(s State) { states = append(states, s) }
	})
	_, err := p.Send(context.Background(), "hi", nil)
	assert.True(t, IsDecode(err))
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.Len(t, srv.calls, 1, "not retried")
	assert.Equal(t, FailedDecode, states[len(states)-1])
}

func TestSendBodyAtLimitIsAccepted(t *testing.T) {
	p, _ := newPipeline(t, sampleBackend(), reply(http.StatusOK, strings.Repeat("y", 16)), func(c *Config) {
		c.MaxResponseBytes = 16
	})
	res, err := p.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, KindPlainText, res.Kind)
}

func TestBuildPromptTags(t *testing.T) {
	rctx := rag.NewBuilder(time.UTC).Build(rag.Input{
		Projects: []model.Project{{ID: "p1", Title: "Launch", Status: model.ProjectActive}},
		Goals:    []model.Goal{{ID: "g1", Title: "Run a marathon", Type: model.GoalYearly}},
		Habits:   []model.Habit{{ID: "h1", Title: "Meditate", TargetCount: 1}},
	}, fixedNow)

	prompt := BuildPrompt("How is the LAUNCH going?", rctx, fixedNow)
	assert.Contains(t, prompt, `[Referenced project: "Launch"]`)
	assert.NotContains(t, prompt, "[Current date:")

	prompt = BuildPrompt("Did I meditate today?", rctx, fixedNow)
	assert.Contains(t, prompt, `[Referenced habit: "Meditate"]`)
	assert.Contains(t, prompt, "[Current date: 2025-08-13 (Wednesday)]")

	prompt = BuildPrompt("What is due this week for run a marathon?", rctx, fixedNow)
	assert.Contains(t, prompt, `[Referenced goal: "Run a marathon"]`)
	assert.Contains(t, prompt, "[Current date: 2025-08-13 (Wednesday)]")

	prompt = BuildPrompt("Hello there", rctx, fixedNow)
	assert.False(t, strings.Contains(prompt, "[Referenced"))
	assert.True(t, strings.HasPrefix(prompt, "You are a productivity assistant"))
	assert.True(t, strings.HasSuffix(prompt, "from the provided context."))
}

func TestBuildPromptReferencesWholeCollections(t *testing.T) {
	projects := make([]model.Project, rag.PayloadLimit+10)
	for i := range projects {
		projects[i] = model.Project{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Site %d rebuild", i)}
	}
	long := strings.Repeat("quarterly ", 20) + "review"
	rctx := rag.NewBuilder(time.UTC).Build(rag.Input{
		Projects: projects,
		Goals:    []model.Goal{{ID: "g1", Title: long, Type: model.GoalYearly}},
	}, fixedNow)

	prompt := BuildPrompt("Any blockers on site 57 rebuild?", rctx, fixedNow)
	assert.Contains(t, prompt, `[Referenced project: "Site 57 rebuild"]`)

	prompt = BuildPrompt("Remind me about the "+long, rctx, fixedNow)
	assert.Contains(t, prompt, fmt.Sprintf("[Referenced goal: %q]", long))
}
