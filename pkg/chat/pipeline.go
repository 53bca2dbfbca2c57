package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/onetaskassistant/onetask/pkg/metrics"
	"github.com/onetaskassistant/onetask/pkg/model"
	"github.com/onetaskassistant/onetask/pkg/rag"
)

const (
	DefaultTimeout          = 45 * time.Second
	DefaultClientSource     = "cli"
	DefaultMaxResponseBytes = 4 << 20
)

var (
	ErrEmptyMessage = errors.New("chat message is empty")

	// ErrInvalidRequest marks a request that could not be built. Never retried.
	ErrInvalidRequest   = errors.New("invalid chat request")
	ErrResponseTooLarge = errors.New("chat response too large")
)

// Backend supplies the data a context is built from when the caller has none.
type Backend interface {
	UserID() string
	ListTasks(ctx context.Context) ([]model.Task, error)
	ListHabits(ctx context.Context) ([]model.Habit, error)
	AllGoals(ctx context.Context) ([]model.Goal, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
}

type Config struct {
	// BaseURL of the chat service; requests go to BaseURL + "/chat".
	BaseURL string
	Backend Backend

	HTTPClient  *http.Client
	TokenSource oauth2.TokenSource
	Builder     *rag.Builder
	Logger      *zap.Logger

	// Timeout bounds each attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Retry is the number of extra attempts after a network failure (0 or 1).
	Retry        int
	ClientSource string

	// MaxResponseBytes caps the body read. Defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64

	// Observer, when set, is told about every state change. An empty message
	// reports no state at all, and a request that cannot be built stops
	// without a terminal state.
	Observer func(State)
	Now      func() time.Time
}

type Pipeline struct {
	cfg      Config
	endpoint string
	logger   *zap.Logger
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: chat base url is required", ErrInvalidRequest)
	}
	if cfg.Backend == nil {
		return nil, errors.New("chat backend is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host in %q", ErrInvalidRequest, cfg.BaseURL)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Builder == nil {
		cfg.Builder = rag.NewBuilder(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Retry = min(max(cfg.Retry, 0), 1)
	if cfg.ClientSource == "" {
		cfg.ClientSource = DefaultClientSource
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		cfg:      cfg,
		endpoint: u.JoinPath("chat").String(),
		logger:   cfg.Logger.Named("chat"),
	}, nil
}

func (p *Pipeline) observe(s State) {
	if p.cfg.Observer != nil {
		p.cfg.Observer(s)
	}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id"`
}

// Send runs one chat exchange. When rctx is nil the context is fetched from
// the backend first; a failed fetch degrades to the empty context instead of
// aborting. Network failures are retried once unless the caller's context ended.
// An oversized body ends in FailedDecode without a retry.
func (p *Pipeline) Send(ctx context.Context, message string, rctx *rag.Context) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	p.observe(Composing)

	if rctx == nil {
		p.observe(ContextFetch)
		rctx = p.FetchContext(ctx)
	} else {
		metrics.IncrementContextBuild("provided")
	}

	userID := p.cfg.Backend.UserID()
	payload, err := json.Marshal(chatRequest{Prompt: BuildPrompt(message, rctx, p.now()), UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var body []byte
	for attempt := 0; attempt <= p.cfg.Retry; attempt++ {
		body, err = p.post(ctx, payload)
		if err == nil || ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrResponseTooLarge) {
			break
		}
		if attempt < p.cfg.Retry {
			p.logger.Warn("chat request failed, retrying", zap.Error(err))
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRequest):
		return nil, err
	case errors.Is(err, ErrResponseTooLarge):
		p.observe(FailedDecode)
		metrics.RecordChatLatency(FailedDecode.String(), time.Since(start))
		return nil, &Error{State: FailedDecode, Err: err}
	default:
		p.observe(FailedNetwork)
		metrics.RecordChatLatency(FailedNetwork.String(), time.Since(start))
		return nil, &Error{State: FailedNetwork, Err: err}
	}

	result, err := Classify(body, message, userID, p.now())
	if err != nil {
		p.observe(FailedDecode)
		metrics.RecordChatLatency(FailedDecode.String(), time.Since(start))
		return nil, err
	}

	if result.Kind == KindFallback {
		p.logger.Warn("chat service returned an error page, using fallback reply")
	}
	p.observe(Succeeded)
	metrics.IncrementChatResponse(result.Kind.String())
	metrics.RecordChatLatency(Succeeded.String(), time.Since(start))
	return result, nil
}

func (p *Pipeline) now() time.Time {
	now := p.cfg.Now()
	if loc := p.cfg.Builder.Location; loc != nil {
		now = now.In(loc)
	}
	return now
}

// FetchContext reads tasks, habits, goals and projects concurrently and
// builds a context from them. If any read fails the context is built from
// empty collections.
func (p *Pipeline) FetchContext(ctx context.Context) *rag.Context {
	var in rag.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Tasks, err = p.cfg.Backend.ListTasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Habits, err = p.cfg.Backend.ListHabits(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Goals, err = p.cfg.Backend.AllGoals(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Projects, err = p.cfg.Backend.ListProjects(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		p.logger.Warn("context fetch failed, continuing without user data", zap.Error(err))
		metrics.IncrementContextBuild("empty_fallback")
		return p.cfg.Builder.Build(rag.Input{}, p.now())
	}

	p.logger.Debug("context fetched",
		zap.Int("tasks", len(in.Tasks)),
		zap.Int("habits", len(in.Habits)),
		zap.Int("goals", len(in.Goals)),
		zap.Int("projects", len(in.Projects)),
	)
	metrics.IncrementContextBuild("fetched")
	return p.cfg.Builder.Build(in, p.now())
}

// post performs one attempt and returns the raw body whatever the status.
func (p *Pipeline) post(ctx context.Context, payload []byte) ([]byte, error) {
	p.observe(Sending)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Use-RAG-Context", "true")
	req.Header.Set("X-Context-Required", "MANDATORY")
	req.Header.Set("X-Chat-Mode", "RAG-ENABLED")
	req.Header.Set("X-Client-Source", p.cfg.ClientSource)
	req.Header.Set("X-Request-ID", requestID)
	if p.cfg.TokenSource != nil {
		if tok, err := p.cfg.TokenSource.Token(); err == nil {
			tok.SetAuthHeader(req)
		} else {
			p.logger.Warn("no bearer token for chat", zap.Error(err))
		}
	}

	p.observe(AwaitingResponse)
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if int64(len(body)) > p.cfg.MaxResponseBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, p.cfg.MaxResponseBytes)
	}
	p.logger.Debug("chat response",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return body, nil
}
