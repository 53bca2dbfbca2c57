package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onetaskassistant/onetask/pkg/chat"
	"github.com/onetaskassistant/onetask/pkg/metrics"
	"github.com/onetaskassistant/onetask/pkg/overdue"
	"github.com/onetaskassistant/onetask/pkg/rag"
)

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull everything from the backend, then mirror tasks if the calendar is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.store.Sync(cmd.Context())
			if err != nil {
				return err
			}
			snap := app.store.Snapshot()
			fmt.Fprintf(out(cmd), "%s %d tasks, %d habits, %d goals, %d projects\n",
				styleOK.Render("synced"), len(snap.Tasks), len(snap.Habits), len(snap.Goals), len(snap.Projects))

			if !app.cfg.Calendar.Enabled {
				return nil
			}
			return app.mirrorCalendar(cmd, snap)
		},
	}
}

func newContextCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the context the assistant receives",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			rctx := rag.NewBuilder(nil).Build(app.store.Snapshot().RAGInput(), app.now())
			metrics.IncrementContextBuild("store")

			if !asJSON {
				fmt.Fprint(out(cmd), rctx.Summary)
				return nil
			}
			enc := json.NewEncoder(out(cmd))
			enc.SetIndent("", "  ")
			return enc.Encode(rctx)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured record instead of the summary")
	return cmd
}

func newOverdueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List tasks past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.syncStore(cmd); err != nil {
				return err
			}
			now := app.now()
			tasks := overdue.Filter(app.store.Snapshot().Tasks, now)
			heading(out(cmd), "Overdue", len(tasks))
			for i := range tasks {
				renderTask(out(cmd), &tasks[i], now)
			}
			return nil
		},
	}
}

func newChatCmd(app *App) *cobra.Command {
	var (
		raw     bool
		local   bool
		verbose bool
		width   int
	)

	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Ask the assistant about your tasks, habits, goals and projects",
		Long:  strings.TrimSpace(`
Sends one message to the assistant together with a summary of your data.
Without arguments the message is read from standard input.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			if message == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				message = string(b)
			}

			cfg := chat.Config{
				BaseURL:     app.cfg.Chat.BaseURL,
				Backend:     app.client,
				TokenSource: app.tokens,
				Logger:      app.logger,
				Timeout:     app.cfg.Chat.Timeout,
				Retry:       *app.cfg.Chat.Retry,
				Now:         app.now,
			}
			if verbose {
				cfg.Observer = func(s chat.State) {
					fmt.Fprintln(cmd.ErrOrStderr(), styleMuted.Render("· "+s.String()))
				}
			}
			pipeline, err := chat.NewPipeline(cfg)
			if err != nil {
				return err
			}

			var rctx *rag.Context
			if local {
				if err := app.syncStore(cmd); err != nil {
					return err
				}
				rctx = rag.NewBuilder(nil).Build(app.store.Snapshot().RAGInput(), app.now())
			}

			result, err := pipeline.Send(cmd.Context(), message, rctx)
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				return err
			case chat.IsNetwork(err):
				return fmt.Errorf("could not reach the assistant: %w", err)
			case err != nil:
				return fmt.Errorf("the assistant's reply could not be read: %w", err)
			}

			reply := result.Response.Response
			if !raw {
				reply = renderMarkdown(reply, width)
			}
			fmt.Fprintln(out(cmd), strings.TrimRight(reply, "\n"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the reply without markdown rendering")
	cmd.Flags().BoolVar(&local, "local", false, "Build the context from the synced store instead of letting the pipeline fetch it")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each request state to stderr")
	cmd.Flags().IntVar(&width, "width", terminalWidth(), "Wrap width for rendered replies")
	return cmd
}

// terminalWidth reads COLUMNS, falling back to 80.
func terminalWidth() int {
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return w
	}
	return 80
}
