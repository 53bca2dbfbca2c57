package cli

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/onetaskassistant/onetask/pkg/model"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted  = ac("240", "243")
	colorAccent = ac("#5a56e0", "#7571f9")

	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleID      = lipgloss.NewStyle().Foreground(colorMuted).Width(10)
	styleOK      = lipgloss.NewStyle().Foreground(ac("28", "42"))
	styleWarn    = lipgloss.NewStyle().Foreground(ac("130", "214"))
	styleError   = lipgloss.NewStyle().Foreground(ac("160", "203"))

	priorityStyles = map[model.Priority]lipgloss.Style{
		model.PriorityLow:    styleMuted,
		model.PriorityMedium: lipgloss.NewStyle(),
		model.PriorityHigh:   styleWarn,
		model.PriorityUrgent: styleError.Bold(true),
	}
)

// shortID keeps list output narrow; commands accept unique prefixes.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func heading(w io.Writer, title string, count int) {
	fmt.Fprintln(w, styleHeading.Render(fmt.Sprintf("%s (%d)", title, count)))
}

func row(w io.Writer, id string, cols ...string) {
	fmt.Fprintln(w, styleID.Render(shortID(id))+strings.Join(cols, "  "))
}

func taskMarker(s model.TaskStatus) string {
	switch s {
	case model.TaskCompleted:
		return "[x]"
	case model.TaskInProgress:
		return "[~]"
	case model.TaskCancelled:
		return "[-]"
	}
	return "[ ]"
}

func renderTask(w io.Writer, t *model.Task, now time.Time) {
	cols := []string{taskMarker(t.Status), priorityStyles[t.Priority].Render(t.Title)}
	if t.DueDate.IsSet() {
		due := "due " + t.DueDate.Local().Format("Mon Jan 2 15:04")
		if t.IsOverdue(now) {
			due = styleError.Render(due)
		} else {
			due = styleMuted.Render(due)
		}
		cols = append(cols, due)
	}
	if len(t.Tags) > 0 {
		cols = append(cols, styleMuted.Render("#"+strings.Join(t.Tags, " #")))
	}
	row(w, t.ID, cols...)
}

func renderHabit(w io.Writer, h *model.Habit) {
	progress := fmt.Sprintf("%d/%d %s", h.CurrentCount, h.TargetCount, h.Frequency)
	if h.DoneForPeriod() {
		progress = styleOK.Render(progress)
	}
	row(w, h.ID, h.Title, progress, styleMuted.Render(fmt.Sprintf("streak %d", h.CurrentStreak)))
}

func renderGoal(w io.Writer, g *model.Goal) {
	period := string(g.Type)
	switch {
	case g.Type == model.GoalWeekly && g.WeekStartDate.IsSet():
		period = "week of " + g.WeekStartDate.Format("Jan 2")
	case g.Type == model.GoalQuarterly && g.TargetQuarter != nil && g.TargetYear != nil:
		period = fmt.Sprintf("Q%d %d", *g.TargetQuarter, *g.TargetYear)
	case g.Type == model.GoalYearly && g.TargetYear != nil:
		period = fmt.Sprintf("%d", *g.TargetYear)
	}
	row(w, g.ID, g.Title, styleMuted.Render(period), fmt.Sprintf("%.0f%%", g.ProgressPercentage))
}

func renderProject(w io.Writer, p *model.Project) {
	row(w, p.ID, priorityStyles[p.Priority].Render(p.Title), styleMuted.Render(string(p.Status)), fmt.Sprintf("%.0f%%", p.ProgressPercentage))
}

// renderMarkdown renders chat replies for the terminal. A fixed style is
// used because auto detection queries the terminal and can block.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	style := "light"
	if lipgloss.HasDarkBackground() {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return md
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return rendered
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
