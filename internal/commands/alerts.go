package commands

import (
	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/resources"
)

// NewAlertsCmd creates the alerts command group.
func NewAlertsCmd() *cobra.Command {
	var flags readFlags
	var unread bool

	run := func(cmd *cobra.Command, flags readFlags) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		res := read(cmd.Context(), flags, app.Hub.Alerts, app.Hub.AlertsIfFresh)
		if unread && res.Success {
			kept := make([]resources.Alert, 0, len(res.Data))
			for _, a := range res.Data {
				if !a.Read {
					kept = append(kept, a)
				}
			}
			res.Data = kept
		}
		return respond(app, res, plural(len(res.Data), "alert", "alerts"))
	}

	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"alert", "notifications"},
		Short:   "List your alerts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags)
		},
	}
	flags.register(cmd)
	cmd.PersistentFlags().BoolVar(&unread, "unread", false, "Only unread alerts")

	var listFlags readFlags
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your alerts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, listFlags)
		},
	}
	listFlags.register(list)
	cmd.AddCommand(list)

	return cmd
}
