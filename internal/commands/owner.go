package commands

import (
	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/output"
)

// NewOwnerCmd creates the owner command group.
func NewOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage the service centers you own",
	}

	var flags readFlags
	bookings := &cobra.Command{
		Use:   "bookings",
		Short: "List bookings across your centers",
		Long: `List bookings across your centers.

Unlike the customer views there is no offline placeholder: with no network
and nothing cached the command fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			// The server has the final say; this only saves a round trip.
			if user, ok, err := app.Session.User(); err == nil && ok && user.Role != "" && !user.IsOwner() {
				return output.ErrForbidden("Owner bookings require an owner account")
			}

			res := read(cmd.Context(), flags, app.Hub.OwnerBookings, app.Hub.OwnerBookingsIfFresh)
			return respond(app, res, plural(len(res.Data), "booking", "bookings"))
		},
	}
	flags.register(bookings)
	cmd.AddCommand(bookings)

	return cmd
}
