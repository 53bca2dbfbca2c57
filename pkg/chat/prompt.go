package chat

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/onetaskassistant/onetask/pkg/dates"
	"github.com/onetaskassistant/onetask/pkg/rag"
)

var temporalPattern = regexp.MustCompile(`(?i)\b(today|this\s+week|due)\b`)

// BuildPrompt wraps message with the instructional preamble and the context
// summary, then appends reference and date tags when the message calls for them.
func BuildPrompt(message string, ctx *rag.Context, now time.Time) string {
	var prompt strings.Builder

	writePreamble(&prompt)
	writeUserData(&prompt, ctx)
	writeQuestion(&prompt, message)
	writeTags(&prompt, message, ctx, now)

	return prompt.String()
}

func writePreamble(prompt *strings.Builder) {
	prompt.WriteString("You are a productivity assistant with access to the user's current productivity data. ")
	prompt.WriteString("Use this data to provide specific, helpful answers about their tasks, habits, goals, and projects. ")
	prompt.WriteString("The data below is complete and current: never claim that you cannot access the user's data.\n\n")
}

func writeUserData(prompt *strings.Builder, ctx *rag.Context) {
	prompt.WriteString("CURRENT USER DATA:\n")
	prompt.WriteString(strings.TrimRight(ctx.Summary, "\n"))
	prompt.WriteString("\n\n")
}

func writeQuestion(prompt *strings.Builder, message string) {
	prompt.WriteString("USER QUESTION: ")
	prompt.WriteString(message)
	prompt.WriteString("\n\n")
	prompt.WriteString("Please provide a helpful response using the specific data above. ")
	prompt.WriteString("Reference actual task names, project titles, goal details, and habit information from the provided context.")
}

func writeTags(prompt *strings.Builder, message string, ctx *rag.Context, now time.Time) {
	var tags []string
	if ref, ok := ctx.FindReference(message); ok {
		tags = append(tags, fmt.Sprintf("[Referenced %s: %q]", ref.Kind, ref.Title))
	}
	if temporalPattern.MatchString(message) {
		tags = append(tags, fmt.Sprintf("[Current date: %s (%s)]", dates.FormatDay(now), now.Weekday()))
	}
	if len(tags) == 0 {
		return
	}
	prompt.WriteString("\n\n")
	prompt.WriteString(strings.Join(tags, "\n"))
}
