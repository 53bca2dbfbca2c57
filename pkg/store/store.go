// Package store holds the client's view of the user's productivity data and
// keeps it in step with the backend.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/onetaskassistant/onetask/pkg/api"
	"github.com/onetaskassistant/onetask/pkg/auth"
	"github.com/onetaskassistant/onetask/pkg/config"
	"github.com/onetaskassistant/onetask/pkg/model"
	"github.com/onetaskassistant/onetask/pkg/rag"
)

const DefaultHealthTTL = 30 * time.Second

// ErrOffline is returned by Sync when the backend health check fails.
var ErrOffline = errors.New("backend unavailable")

// Backend is the remote API the store reads from and writes through.
type Backend interface {
	UserID() string
	SetUserID(id string)
	Health(ctx context.Context) error

	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, t *model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	ListHabits(ctx context.Context) ([]model.Habit, error)
	CreateHabit(ctx context.Context, h *model.Habit) (*model.Habit, error)
	UpdateHabit(ctx context.Context, h *model.Habit) (*model.Habit, error)
	DeleteHabit(ctx context.Context, id string) error

	ListGoals(ctx context.Context, t model.GoalType) ([]model.Goal, error)
	CreateGoal(ctx context.Context, g *model.Goal) (*model.Goal, error)
	UpdateGoal(ctx context.Context, g *model.Goal) (*model.Goal, error)
	DeleteGoal(ctx context.Context, t model.GoalType, id string) error

	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) (*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

var _ Backend = (*api.Client)(nil)

type Collection string

const (
	CollectionTasks    Collection = "tasks"
	CollectionHabits   Collection = "habits"
	CollectionGoals    Collection = "goals"
	CollectionProjects Collection = "projects"
	CollectionUser     Collection = "user"
	CollectionAll      Collection = "all"
)

type EventKind int

const (
	// EventChanged follows any local change to a collection.
	EventChanged EventKind = iota + 1
	EventSynced
	// EventOffline means the health check failed and current data was kept.
	EventOffline
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventSynced:
		return "synced"
	case EventOffline:
		return "offline"
	case EventError:
		return "error"
	}
	return "unknown"
}

type Event struct {
	Kind       EventKind
	Collection Collection
	Err        error
}

type User struct {
	ID       string
	Name     string
	LoggedIn bool
}

type Options struct {
	Logger *zap.Logger
	// SampleData seeds demo content when the backend is unreachable on first sync.
	SampleData bool
	// HealthTTL is how long a health check result is reused.
	HealthTTL time.Duration
	Now       func() time.Time
}

// Store is safe for concurrent use. Subscribers are called synchronously,
// after the store's lock is released, in subscription order.
type Store struct {
	backend Backend
	logger  *zap.Logger
	health  *cache.Cache
	sample  bool
	now     func() time.Time

	mu       sync.RWMutex
	tasks    []model.Task
	habits   []model.Habit
	goals    []model.Goal
	projects []model.Project
	user     User
	synced   bool
	isSample bool

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

type subscription struct {
	id int
	fn func(Event)
}

func New(backend Backend, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HealthTTL <= 0 {
		opts.HealthTTL = DefaultHealthTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := backend.UserID()
	if id == "" {
		id = config.DemoUserID
		backend.SetUserID(id)
	}
	return &Store{
		backend: backend,
		logger:  opts.Logger.Named("store"),
		health:  cache.New(opts.HealthTTL, 2*opts.HealthTTL),
		sample:  opts.SampleData,
		now:     opts.Now,
		user:    User{ID: id, Name: config.DemoUserName, LoggedIn: id != config.DemoUserID},
	}
}

// Subscribe registers fn for every event and returns a func that removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
	}
}

func (s *Store) emit(e Event) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(e)
	}
}

// Snapshot is a copy of the store's data at one instant.
type Snapshot struct {
	Tasks    []model.Task
	Habits   []model.Habit
	Goals    []model.Goal
	Projects []model.Project
	User     User
	// Sample is set while demo content is shown.
	Sample bool
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tasks:    slices.Clone(s.tasks),
		Habits:   slices.Clone(s.habits),
		Goals:    slices.Clone(s.goals),
		Projects: slices.Clone(s.projects),
		User:     s.user,
		Sample:   s.isSample,
	}
}

// RAGInput hands the snapshot to the context builder.
func (snap Snapshot) RAGInput() rag.Input {
	return rag.Input{
		Tasks:    snap.Tasks,
		Habits:   snap.Habits,
		Goals:    snap.Goals,
		Projects: snap.Projects,
	}
}

func (s *Store) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// HandleError reports err to subscribers unless it is an auth failure the
// user cannot act on; those are only logged.
func (s *Store) HandleError(err error) {
	if err == nil {
		return
	}
	if auth.IsNonActionable(err) {
		s.logger.Info("suppressed non-actionable error", zap.Error(err))
		return
	}
	s.logger.Warn("store error", zap.Error(err))
	s.emit(Event{Kind: EventError, Collection: CollectionAll, Err: err})
}

// Login switches the store to userID. Compound Microsoft account ids
// ("oid.tid") are reduced to the object id the backend keys data by.
func (s *Store) Login(userID, name string) {
	id := auth.SimpleUserID(userID)
	s.mu.Lock()
	s.user = User{ID: id, Name: name, LoggedIn: true}
	s.synced = false
	s.mu.Unlock()

	s.backend.SetUserID(id)
	s.health.Flush()
	s.logger.Info("logged in", zap.String("user_id", id))
	s.emit(Event{Kind: EventChanged, Collection: CollectionUser})
}

// Logout returns to the demo user and reloads the sample data.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = User{ID: config.DemoUserID, Name: config.DemoUserName}
	s.synced = false
	s.loadSampleLocked()
	s.mu.Unlock()

	s.backend.SetUserID(config.DemoUserID)
	s.health.Flush()
	s.emit(Event{Kind: EventChanged, Collection: CollectionUser})
	s.emit(Event{Kind: EventChanged, Collection: CollectionAll})
}

// LoadSampleData replaces every collection with demo content.
func (s *Store) LoadSampleData() {
	s.mu.Lock()
	s.loadSampleLocked()
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Collection: CollectionAll})
}

func (s *Store) loadSampleLocked() {
	d := SampleData(s.now())
	s.tasks, s.habits, s.goals, s.projects = d.Tasks, d.Habits, d.Goals, d.Projects
	s.isSample = true
}
