package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/model"
)

const (
	pendingLimit    = 5
	inProgressLimit = 3
	completedLimit  = 3
	sectionLimit    = 5

	// maxFieldRunes bounds every title and description written to the summary.
	maxFieldRunes = 160
)

// clip flattens s to one line and truncates it to maxFieldRunes.
func clip(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		s = strings.Join(strings.Fields(s), " ")
	}
	if utf8.RuneCountInString(s) <= maxFieldRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxFieldRunes-1]) + "…"
}

func renderSummary(in Input, meta Metadata, counts map[string]taskCount) string {
	var sb strings.Builder

	if in.Empty() {
		writeNoData(&sb)
	}
	writeTasks(&sb, in.Tasks)
	writeProjects(&sb, in.Projects, counts)
	writeGoals(&sb, in.Goals)
	writeHabits(&sb, in.Habits)
	writeStats(&sb, meta)

	return sb.String()
}

func writeNoData(sb *strings.Builder) {
	sb.WriteString("NO PRODUCTIVITY DATA YET:\n")
	sb.WriteString("• The user has not created any tasks, projects, goals or habits.\n")
	sb.WriteString("• This is real, current data: the account is empty, not unavailable.\n")
	sb.WriteString("• Help the user get started, for example by suggesting a first task, a daily habit or a goal for this week.\n")
	sb.WriteString("\n")
}

func writeTasks(sb *strings.Builder, tasks []model.Task) {
	if len(tasks) == 0 {
		return
	}

	var (
		pending, inProgress []*model.Task
		recent              []*model.Task
		nPending, nProgress int
		nCompleted          int
	)
	for i := range tasks {
		t := &tasks[i]
		switch t.Status {
		case model.TaskPending:
			nPending++
			if len(pending) < pendingLimit {
				pending = append(pending, t)
			}
		case model.TaskInProgress:
			nProgress++
			if len(inProgress) < inProgressLimit {
				inProgress = append(inProgress, t)
			}
		case model.TaskCompleted:
			nCompleted++
			recent = keepRecent(recent, t)
		}
	}

	fmt.Fprintf(sb, "TASKS (%d total):\n", len(tasks))

	if nPending > 0 {
		fmt.Fprintf(sb, "• Pending Tasks (%d):\n", nPending)
		for _, t := range pending {
			due := ""
			if t.DueDate.IsSet() {
				due = fmt.Sprintf(" (due: %s)", dates.Format(t.DueDate.Time))
			}
			fmt.Fprintf(sb, "  - %s [Priority: %s]%s\n", clip(t.Title), t.Priority, due)
		}
		if nPending > pendingLimit {
			fmt.Fprintf(sb, "  ... and %d more pending tasks\n", nPending-pendingLimit)
		}
	}

	if nProgress > 0 {
		fmt.Fprintf(sb, "• In Progress (%d):\n", nProgress)
		for _, t := range inProgress {
			fmt.Fprintf(sb, "  - %s\n", clip(t.Title))
		}
		if nProgress > inProgressLimit {
			fmt.Fprintf(sb, "  ... and %d more in progress\n", nProgress-inProgressLimit)
		}
	}

	if nCompleted > 0 {
		titles := make([]string, 0, len(recent))
		for _, t := range recent {
			titles = append(titles, clip(t.Title))
		}
		fmt.Fprintf(sb, "• Recently Completed (%d): %s\n", nCompleted, strings.Join(titles, ", "))
	}
	sb.WriteString("\n")
}

// keepRecent keeps the completedLimit most recently completed tasks, newest
// first. Tasks without a completion stamp rank last; ties keep input order.
func keepRecent(recent []*model.Task, t *model.Task) []*model.Task {
	stamp := t.CompletedAt.Value()
	pos := len(recent)
	for pos > 0 && stamp.After(recent[pos-1].CompletedAt.Value()) {
		pos--
	}
	if pos >= completedLimit {
		return recent
	}
	if len(recent) < completedLimit {
		recent = append(recent, nil)
	}
	copy(recent[pos+1:], recent[pos:len(recent)-1])
	recent[pos] = t
	return recent
}

func writeProjects(sb *strings.Builder, projects []model.Project, counts map[string]taskCount) {
	if len(projects) == 0 {
		return
	}
	fmt.Fprintf(sb, "PROJECTS (%d total):\n", len(projects))
	for i := 0; i < min(len(projects), sectionLimit); i++ {
		p := &projects[i]
		info := ""
		if c := counts[p.ID]; c.total > 0 {
			info = fmt.Sprintf(" (%d/%d tasks complete)", c.completed, c.total)
		}
		fmt.Fprintf(sb, "• %s [Status: %s]%s\n", clip(p.Title), p.Status, info)
		if p.Description != "" {
			fmt.Fprintf(sb, "  Description: %s\n", clip(p.Description))
		}
	}
	if len(projects) > sectionLimit {
		fmt.Fprintf(sb, "... and %d more projects\n", len(projects)-sectionLimit)
	}
	sb.WriteString("\n")
}

func writeGoals(sb *strings.Builder, goals []model.Goal) {
	if len(goals) == 0 {
		return
	}
	fmt.Fprintf(sb, "GOALS (%d total):\n", len(goals))
	for i := 0; i < min(len(goals), sectionLimit); i++ {
		g := &goals[i]
		info := ""
		if g.ProgressPercentage > 0 {
			info = fmt.Sprintf(" (%d%% complete)", int(g.ProgressPercentage))
		}
		fmt.Fprintf(sb, "• %s [Status: %s]%s\n", clip(g.Title), g.Status, info)
		if g.Description != "" {
			fmt.Fprintf(sb, "  %s\n", clip(g.Description))
		}
	}
	if len(goals) > sectionLimit {
		fmt.Fprintf(sb, "... and %d more goals\n", len(goals)-sectionLimit)
	}
	sb.WriteString("\n")
}

func writeHabits(sb *strings.Builder, habits []model.Habit) {
	if len(habits) == 0 {
		return
	}
	fmt.Fprintf(sb, "HABITS (%d total):\n", len(habits))
	for i := 0; i < min(len(habits), sectionLimit); i++ {
		h := &habits[i]
		streak := ""
		if h.CurrentStreak > 0 {
			streak = fmt.Sprintf(" (streak: %d)", h.CurrentStreak)
		}
		fmt.Fprintf(sb, "• %s [Progress: %d/%d]%s\n", clip(h.Title), h.CurrentCount, h.TargetCount, streak)
	}
	if len(habits) > sectionLimit {
		fmt.Fprintf(sb, "... and %d more habits\n", len(habits)-sectionLimit)
	}
	sb.WriteString("\n")
}

func writeStats(sb *strings.Builder, m Metadata) {
	sb.WriteString("SUMMARY:\n")
	fmt.Fprintf(sb, "• Total Tasks: %d (%d completed, %d overdue)\n", m.TotalTasks, m.CompletedTasks, m.OverdueTasks)
	fmt.Fprintf(sb, "• Active Projects: %d/%d\n", m.ActiveProjects, m.TotalProjects)
	fmt.Fprintf(sb, "• Active Goals: %d/%d\n", m.ActiveGoals, m.TotalGoals)
	fmt.Fprintf(sb, "• Active Habits: %d/%d\n", m.ActiveHabits, m.TotalHabits)
	fmt.Fprintf(sb, "• Context generated: %s (%s)\n", m.GeneratedAt, m.Timezone)
}
