package commands

import (
	"github.com/spf13/cobra"
)

// NewCentersCmd creates the centers command group.
func NewCentersCmd() *cobra.Command {
	var flags readFlags

	cmd := &cobra.Command{
		Use:     "centers",
		Aliases: []string{"center", "service-centers"},
		Short:   "List service centers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCentersList(cmd, flags)
		},
	}
	flags.register(cmd)

	var listFlags readFlags
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List service centers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCentersList(cmd, listFlags)
		},
	}
	listFlags.register(list)
	cmd.AddCommand(list)

	return cmd
}

func runCentersList(cmd *cobra.Command, flags readFlags) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	res := read(cmd.Context(), flags, app.Hub.ServiceCenters, app.Hub.ServiceCentersIfFresh)
	return respond(app, res, plural(len(res.Data), "service center", "service centers"))
}
