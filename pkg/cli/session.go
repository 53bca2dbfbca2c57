package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onetaskassistant/onetask/pkg/auth"
	"github.com/onetaskassistant/onetask/pkg/config"
)

func newLoginCmd(app *App) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Microsoft account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if noBrowser {
				app.microsoft.OpenBrowser = nil
			}

			tok, err := app.microsoft.Authorize(ctx)
			if err != nil {
				if auth.IsCode(err, auth.CodeConsentCancelled) {
					fmt.Fprintln(out(cmd), styleMuted.Render("Sign-in cancelled."))
					return nil
				}
				return err
			}

			identity, err := auth.ParseIDToken(tok.IDToken)
			if err != nil {
				return err
			}

			name := identity.Name
			if hc, err := app.microsoft.Client(ctx); err == nil {
				if profile, err := auth.FetchProfile(ctx, hc, auth.GraphMeURL); err == nil {
					name = profile.FirstName()
				} else {
					app.logger.Info("profile unavailable, using the id token name", zap.Error(err))
				}
			}

			ts, err := app.microsoft.TokenSource(ctx)
			if err != nil {
				return err
			}
			app.tokens = ts
			app.client.SetTokenSource(ts)
			app.store.Login(identity.AccountID(), name)

			user := app.store.User()
			app.cfg.User = config.UserConfig{ID: user.ID, Name: user.Name}
			if err := config.SaveTo(app.ConfigPath, app.cfg); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Signed in as %s (%s)\n", styleHeading.Render(user.Name), user.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the sign-in URL")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and return to the demo user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.store.HandleError(app.microsoft.SignOut())
			app.tokens = nil
			app.client.SetTokenSource(nil)
			app.store.Logout()

			app.cfg.User = config.UserConfig{ID: config.DemoUserID, Name: config.DemoUserName}
			if err := config.SaveTo(app.ConfigPath, app.cfg); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user := app.store.User()
			status := styleMuted.Render("demo")
			if user.LoggedIn {
				status = styleOK.Render("signed in")
				if _, err := app.microsoft.Stored(); err != nil {
					status = styleWarn.Render("signed in, token missing: run onetask login")
				}
			}
			fmt.Fprintf(out(cmd), "%s  %s  %s\n", user.Name, styleMuted.Render(user.ID), status)
			return nil
		},
	}
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client.Health(cmd.Context()); err != nil {
				return fmt.Errorf("backend %s is unhealthy: %w", app.cfg.API.BaseURL, err)
			}
			fmt.Fprintf(out(cmd), "%s %s\n", styleOK.Render("ok"), app.cfg.API.BaseURL)
			return nil
		},
	}
}
