// Package cli is the onetask command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/onetaskassistant/onetask/pkg/api"
	"github.com/onetaskassistant/onetask/pkg/auth"
	"github.com/onetaskassistant/onetask/pkg/config"
	"github.com/onetaskassistant/onetask/pkg/logging"
	"github.com/onetaskassistant/onetask/pkg/store"
)

// App carries the dependencies every command shares. They are built once
// per invocation in the root command's pre-run hook.
type App struct {
	ConfigPath  string
	MetricsAddr string
	LogLevel    string

	cfg       *config.Config
	dir       string
	logger    *zap.Logger
	client    *api.Client
	store     *store.Store
	microsoft *auth.Provider
	tokens    oauth2.TokenSource
	metrics   *http.Server
	now       func() time.Time
}

// NewRootCmd builds the command tree. Call the App's Close once the command
// has run.
func NewRootCmd() (*cobra.Command, *App) {
	app := &App{now: time.Now}

	cmd := &cobra.Command{
		Use:           "onetask",
		Short:         "Tasks, habits, goals and projects with a chat assistant that knows them",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Sign in with your Microsoft account
  onetask login

  # What is on today?
  onetask tasks list --today

  # Ask the assistant
  onetask chat what should I focus on this week
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file (default ~/.config/onetask/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Console log level (overrides log.level)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newHealthCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newContextCmd(app))
	cmd.AddCommand(newChatCmd(app))
	cmd.AddCommand(newOverdueCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newHabitsCmd(app))
	cmd.AddCommand(newGoalsCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newCalendarCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd, app
}

// Execute runs the root command until it finishes or the process is
// interrupted, and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, app := NewRootCmd()
	defer app.Close()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), styleError.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func (app *App) setup(cmd *cobra.Command) error {
	var err error
	if app.ConfigPath == "" {
		if app.cfg, err = config.Load(); err != nil {
			return err
		}
		if app.ConfigPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	} else if app.cfg, err = config.LoadFrom(app.ConfigPath); err != nil {
		return err
	}
	app.dir = filepath.Dir(app.ConfigPath)

	level := app.cfg.Log.Level
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	app.logger, err = logging.New(logging.Options{File: app.cfg.Log.File, Level: level, Dev: app.cfg.Log.Dev})
	if err != nil {
		return err
	}
	app.logger = app.logger.With(zap.String("command", cmd.CommandPath()))

	if app.MetricsAddr != "" {
		app.serveMetrics()
	}

	app.microsoft = auth.NewMicrosoft(app.cfg.Auth, app.dir, app.logger, cmd.ErrOrStderr())
	app.microsoft.OpenBrowser = openBrowser

	opts := []api.Option{
		api.WithUserID(app.cfg.User.ID),
		api.WithLogger(app.logger),
		api.WithTimeout(app.cfg.API.Timeout),
	}
	if ts, err := app.microsoft.TokenSource(cmd.Context()); err == nil {
		app.tokens = ts
		opts = append(opts, api.WithTokenSource(ts))
	} else if !auth.IsNonActionable(err) {
		app.logger.Warn("cached sign-in unusable", zap.Error(err))
	}
	if app.client, err = api.NewClient(app.cfg.API.BaseURL, opts...); err != nil {
		return err
	}

	app.store = store.New(app.client, store.Options{
		Logger:     app.logger,
		SampleData: app.cfg.UseSampleData(),
		Now:        app.now,
	})
	if app.cfg.User.ID != config.DemoUserID {
		app.store.Login(app.cfg.User.ID, app.cfg.User.Name)
	}
	app.store.Subscribe(func(e store.Event) {
		if e.Kind == store.EventError {
			fmt.Fprintln(cmd.ErrOrStderr(), styleWarn.Render("! "+e.Err.Error()))
		}
	})
	return nil
}

// Close stops the metrics listener and flushes the logger.
func (app *App) Close() {
	if app.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = app.metrics.Shutdown(ctx)
	}
	if app.logger != nil {
		_ = app.logger.Sync()
	}
}

func (app *App) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	app.metrics = &http.Server{Addr: app.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Warn("metrics listener stopped", zap.String("addr", app.MetricsAddr), zap.Error(err))
		}
	}()
}

// syncStore refreshes the store and tells the user when the data shown is
// not the backend's.
func (app *App) syncStore(cmd *cobra.Command) error {
	err := app.store.Sync(cmd.Context())
	if errors.Is(err, store.ErrOffline) {
		note := "backend unavailable"
		if app.store.Snapshot().Sample {
			note += ", showing sample data"
		}
		fmt.Fprintln(cmd.ErrOrStderr(), styleMuted.Render(note))
		return nil
	}
	return err
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
