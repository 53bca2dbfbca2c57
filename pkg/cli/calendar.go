package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onetaskassistant/onetask/pkg/auth"
	"github.com/onetaskassistant/onetask/pkg/colors"
	"github.com/onetaskassistant/onetask/pkg/google"
	"github.com/onetaskassistant/onetask/pkg/index"
	"github.com/onetaskassistant/onetask/pkg/overdue"
	"github.com/onetaskassistant/onetask/pkg/store"
)

func newCalendarCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Mirror tasks into a Google Calendar",
	}
	cmd.AddCommand(newCalendarAuthCmd(app))
	cmd.AddCommand(newCalendarSyncCmd(app))
	return cmd
}

func (app *App) googleProvider(cmd *cobra.Command) (*auth.Provider, error) {
	p, err := auth.NewGoogle(app.dir, app.cfg.Auth.RedirectPort, app.logger, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	p.OpenBrowser = openBrowser
	return p, nil
}

func newCalendarAuthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar, replacing any saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.googleProvider(cmd)
			if err != nil {
				return err
			}
			if err := p.SignOut(); err != nil {
				app.logger.Warn("could not remove the old calendar token", zap.Error(err))
			}
			if _, err := p.Authorize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s calendar access granted, token saved in %s\n", styleOK.Render("ok"), app.dir)
			return nil
		},
	}
}

func newCalendarSyncCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror every dated task into the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" {
				app.cfg.Calendar.Name = name
			}
			err := app.store.Sync(cmd.Context())
			if errors.Is(err, store.ErrOffline) {
				return fmt.Errorf("not mirroring: %w", err)
			}
			if err != nil {
				return err
			}
			return app.mirrorCalendar(cmd, app.store.Snapshot())
		},
	}

	cmd.Flags().StringVar(&name, "calendar", "", "Calendar name (overrides calendar.name)")
	return cmd
}

// mirrorCalendar pushes the snapshot's tasks into the configured calendar.
// Sample data is never mirrored.
func (app *App) mirrorCalendar(cmd *cobra.Command, snap store.Snapshot) error {
	if snap.Sample {
		return errors.New("not mirroring sample data")
	}
	ctx := cmd.Context()

	p, err := app.googleProvider(cmd)
	if err != nil {
		return err
	}
	hc, err := p.Client(ctx)
	if err != nil {
		return err
	}

	idx, err := index.Open(filepath.Join(app.dir, index.FileName))
	if err != nil {
		return fmt.Errorf("loading event index: %w", err)
	}
	cc, err := colors.Open(filepath.Join(app.dir, colors.FileName))
	if err != nil {
		return fmt.Errorf("loading project colours: %w", err)
	}
	pending, err := overdue.Open(filepath.Join(app.dir, overdue.FileName))
	if err != nil {
		return fmt.Errorf("loading pending tasks: %w", err)
	}

	cal, err := google.Open(ctx, hc, app.cfg.Calendar.Name, idx, app.logger)
	if err != nil {
		return err
	}
	mirror := &google.Mirror{Calendar: cal, Index: idx, Colors: cc, Pending: pending, Logger: app.logger}

	report, runErr := mirror.Run(ctx, snap.Tasks, app.now())
	if err := mirror.Save(); err != nil {
		app.logger.Warn("could not save calendar caches", zap.Error(err))
	}

	fmt.Fprintf(out(cmd), "%s %q: %d created, %d updated, %d unchanged, %d deleted, %d undated\n",
		styleOK.Render("mirrored"), app.cfg.Calendar.Name,
		report.Created, report.Updated, report.Unchanged, report.Deleted, report.Skipped)
	for _, e := range report.NewlyOverdue {
		fmt.Fprintln(out(cmd), styleError.Render("now overdue: "+e.Summary))
	}
	return runErr
}
