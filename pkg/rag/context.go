package rag

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

// PayloadLimit caps each collection in the structured payload.
const PayloadLimit = 50

// Input is the set of collections a context is built from.
type Input struct {
	Tasks    []model.Task
	Habits   []model.Habit
	Goals    []model.Goal
	Projects []model.Project
}

// Empty reports whether all four collections are empty.
func (in Input) Empty() bool {
	return len(in.Tasks) == 0 && len(in.Habits) == 0 && len(in.Goals) == 0 && len(in.Projects) == 0
}

type TaskView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

type HabitView struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Frequency       string   `json:"frequency"`
	TargetCount     int      `json:"target_count"`
	CurrentCount    int      `json:"current_count"`
	Status          string   `json:"status"`
	Tags            []string `json:"tags"`
	StreakCount     int      `json:"streak_count"`
	LastCompletedAt string   `json:"last_completed_at,omitempty"`
}

type GoalView struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category"`
	Status             string   `json:"status"`
	ProgressPercentage float64  `json:"progress_percentage"`
	Milestones         []string `json:"milestones"`
}

type ProjectView struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	Status              string `json:"status"`
	Priority            string `json:"priority"`
	TasksCount          int    `json:"tasks_count"`
	CompletedTasksCount int    `json:"completed_tasks_count"`
}

// Metadata aggregates counts over the full collections, not the capped views.
type Metadata struct {
	TotalTasks     int    `json:"total_tasks"`
	CompletedTasks int    `json:"completed_tasks"`
	OverdueTasks   int    `json:"overdue_tasks"`
	TotalHabits    int    `json:"total_habits"`
	ActiveHabits   int    `json:"active_habits"`
	TotalGoals     int    `json:"total_goals"`
	ActiveGoals    int    `json:"active_goals"`
	TotalProjects  int    `json:"total_projects"`
	ActiveProjects int    `json:"active_projects"`
	GeneratedAt    string `json:"context_generated_at"`
	Timezone       string `json:"user_timezone"`
}

// Context is a read-only snapshot of the user's productivity state.
type Context struct {
	Tasks    []TaskView    `json:"tasks"`
	Habits   []HabitView   `json:"habits"`
	Goals    []GoalView    `json:"goals"`
	Projects []ProjectView `json:"projects"`
	Metadata Metadata      `json:"metadata"`
	// Summary is the rendered natural-language form sent inside chat prompts.
	Summary string `json:"-"`

	// refs holds every project, goal and habit title, unclipped and uncapped.
	refs []Reference
}

// Reference names a project, goal or habit a chat message may mention.
type Reference struct {
	Kind  string
	Title string
}

// FindReference returns the first project, goal or habit, scanned in that
// order and in collection order, whose title appears in message regardless
// of case. A context that was not produced by Build falls back to its views.
func (c *Context) FindReference(message string) (Reference, bool) {
	refs := c.refs
	if refs == nil {
		refs = c.viewReferences()
	}
	lower := strings.ToLower(message)
	for _, r := range refs {
		t := strings.TrimSpace(r.Title)
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return r, true
		}
	}
	return Reference{}, false
}

func (c *Context) viewReferences() []Reference {
	refs := make([]Reference, 0, len(c.Projects)+len(c.Goals)+len(c.Habits))
	for _, p := range c.Projects {
		refs = append(refs, Reference{Kind: "project", Title: p.Title})
	}
	for _, g := range c.Goals {
		refs = append(refs, Reference{Kind: "goal", Title: g.Title})
	}
	for _, h := range c.Habits {
		refs = append(refs, Reference{Kind: "habit", Title: h.Title})
	}
	return refs
}

func references(in Input) []Reference {
	refs := make([]Reference, 0, len(in.Projects)+len(in.Goals)+len(in.Habits))
	for i := range in.Projects {
		refs = append(refs, Reference{Kind: "project", Title: in.Projects[i].Title})
	}
	for i := range in.Goals {
		refs = append(refs, Reference{Kind: "goal", Title: in.Goals[i].Title})
	}
	for i := range in.Habits {
		refs = append(refs, Reference{Kind: "habit", Title: in.Habits[i].Title})
	}
	return refs
}

// Payload returns the JSON encoding of the structured record.
func (c *Context) Payload() ([]byte, error) {
	return json.Marshal(c)
}

// Empty reports whether the context was built from no data at all.
func (c *Context) Empty() bool {
	m := c.Metadata
	return m.TotalTasks == 0 && m.TotalHabits == 0 && m.TotalGoals == 0 && m.TotalProjects == 0
}

// Builder assembles contexts. Location is used for the timestamp and the
// timezone identifier; nil means time.Local.
type Builder struct {
	Location *time.Location
}

func NewBuilder(loc *time.Location) *Builder {
	return &Builder{Location: loc}
}

// Build derives a context from in at instant now. Work is linear in the size
// of in; the rendered summary has a fixed upper bound regardless.
func (b *Builder) Build(in Input, now time.Time) *Context {
	loc := b.Location
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	counts := countProjectTasks(in.Tasks, in.Projects)

	ctx := &Context{
		Tasks:    taskViews(in.Tasks),
		Habits:   habitViews(in.Habits),
		Goals:    goalViews(in.Goals),
		Projects: projectViews(in.Projects, counts),
		Metadata: buildMetadata(in, now, loc),
		refs:     references(in),
	}
	ctx.Summary = renderSummary(in, ctx.Metadata, counts)
	return ctx
}

func buildMetadata(in Input, now time.Time, loc *time.Location) Metadata {
	m := Metadata{
		TotalTasks:    len(in.Tasks),
		TotalHabits:   len(in.Habits),
		TotalGoals:    len(in.Goals),
		TotalProjects: len(in.Projects),
		GeneratedAt:   dates.Format(now),
		Timezone:      timezoneName(now, loc),
	}
	for i := range in.Tasks {
		t := &in.Tasks[i]
		if t.Status == model.TaskCompleted {
			m.CompletedTasks++
		}
		if t.IsOverdue(now) {
			m.OverdueTasks++
		}
	}
	for i := range in.Habits {
		if in.Habits[i].Status == model.HabitActive {
			m.ActiveHabits++
		}
	}
	for i := range in.Goals {
		if in.Goals[i].Status == model.GoalInProgress {
			m.ActiveGoals++
		}
	}
	for i := range in.Projects {
		if in.Projects[i].Status == model.ProjectActive {
			m.ActiveProjects++
		}
	}
	return m
}

// timezoneName prefers the IANA name; time.Local reports "Local", so the
// zone abbreviation is used instead.
func timezoneName(now time.Time, loc *time.Location) string {
	if name := loc.String(); name != "" && name != "Local" {
		return name
	}
	abbr, _ := now.Zone()
	return abbr
}

type taskCount struct {
	total     int
	completed int
}

// countProjectTasks counts, per project, the union of the project's task_ids
// and the tasks whose project_id points at it. Only the first PayloadLimit
// projects are counted since nothing past them is rendered.
func countProjectTasks(tasks []model.Task, projects []model.Project) map[string]taskCount {
	if len(projects) == 0 {
		return nil
	}
	limit := min(len(projects), PayloadLimit)
	wanted := make(map[string]bool, limit)
	for i := 0; i < limit; i++ {
		wanted[projects[i].ID] = true
	}

	status := make(map[string]model.TaskStatus, len(tasks))
	byProject := make(map[string][]string)
	for i := range tasks {
		t := &tasks[i]
		status[t.ID] = t.Status
		if t.ProjectID != "" && wanted[t.ProjectID] {
			byProject[t.ProjectID] = append(byProject[t.ProjectID], t.ID)
		}
	}

	counts := make(map[string]taskCount, limit)
	for i := 0; i < limit; i++ {
		p := &projects[i]
		seen := make(map[string]bool, len(p.TaskIDs)+len(byProject[p.ID]))
		var c taskCount
		add := func(id string) {
			if seen[id] {
				return
			}
			seen[id] = true
			c.total++
			if status[id] == model.TaskCompleted {
				c.completed++
			}
		}
		for _, id := range p.TaskIDs {
			add(id)
		}
		for _, id := range byProject[p.ID] {
			add(id)
		}
		counts[p.ID] = c
	}
	return counts
}

func formatOptional(t *dates.Time) string {
	if !t.IsSet() {
		return ""
	}
	return dates.Format(t.Time)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func taskViews(tasks []model.Task) []TaskView {
	n := min(len(tasks), PayloadLimit)
	views := make([]TaskView, 0, n)
	for i := 0; i < n; i++ {
		t := &tasks[i]
		views = append(views, TaskView{
			ID:          t.ID,
			Title:       clip(t.Title),
			Description: clip(t.Description),
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			DueDate:     formatOptional(t.DueDate),
			ProjectID:   t.ProjectID,
			Tags:        nonNil(t.Tags),
			CreatedAt:   formatOptional(t.CreatedAt),
			CompletedAt: formatOptional(t.CompletedAt),
		})
	}
	return views
}

func habitViews(habits []model.Habit) []HabitView {
	n := min(len(habits), PayloadLimit)
	views := make([]HabitView, 0, n)
	for i := 0; i < n; i++ {
		h := &habits[i]
		views = append(views, HabitView{
			ID:              h.ID,
			Title:           clip(h.Title),
			Description:     clip(h.Description),
			Frequency:       string(h.Frequency),
			TargetCount:     h.TargetCount,
			CurrentCount:    h.CurrentCount,
			Status:          string(h.Status),
			Tags:            nonNil(h.Tags),
			StreakCount:     h.CurrentStreak,
			LastCompletedAt: formatOptional(h.LastCompletedAt),
		})
	}
	return views
}

func goalViews(goals []model.Goal) []GoalView {
	n := min(len(goals), PayloadLimit)
	views := make([]GoalView, 0, n)
	for i := 0; i < n; i++ {
		g := &goals[i]
		views = append(views, GoalView{
			ID:                 g.ID,
			Title:              clip(g.Title),
			Description:        clip(g.Description),
			Category:           string(g.Type),
			Status:             string(g.Status),
			ProgressPercentage: g.ProgressPercentage,
			Milestones:         nonNil(g.KeyMetrics),
		})
	}
	return views
}

func projectViews(projects []model.Project, counts map[string]taskCount) []ProjectView {
	n := min(len(projects), PayloadLimit)
	views := make([]ProjectView, 0, n)
	for i := 0; i < n; i++ {
		p := &projects[i]
		c := counts[p.ID]
		views = append(views, ProjectView{
			ID:                  p.ID,
			Title:               clip(p.Title),
			Description:         clip(p.Description),
			Status:              string(p.Status),
			Priority:            string(p.Priority),
			TasksCount:          c.total,
			CompletedTasksCount: c.completed,
		})
	}
	return views
}
