package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onetaskassistant/onetask/pkg/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, defaults and environment included",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(out(cmd), styleMuted.Render("# "+app.ConfigPath))
			enc := yaml.NewEncoder(out(cmd))
			enc.SetIndent(2)
			if err := enc.Encode(app.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	var enable bool
	setCalendar := &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the Google Calendar tasks are mirrored into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.cfg.Calendar.Name = args[0]
			if cmd.Flags().Changed("enable") {
				app.cfg.Calendar.Enabled = enable
			}
			if err := config.SaveTo(app.ConfigPath, app.cfg); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Default calendar set to: %s\n", args[0])
			return nil
		},
	}
	setCalendar.Flags().BoolVar(&enable, "enable", false, "Also turn mirroring after each sync on or off")

	cmd.AddCommand(show, setCalendar)
	return cmd
}
