package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/dateparse"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/resources"
)

// NewBookingsCmd creates the bookings command group.
func NewBookingsCmd() *cobra.Command {
	var flags readFlags

	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "List, create, and cancel your bookings",
		Long: `List, create, and cancel your bookings.

Without a subcommand, lists your bookings. The list is served from the cache
when one exists and refreshed in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingsList(cmd, flags)
		},
	}
	flags.register(cmd)

	cmd.AddCommand(
		newBookingsListCmd(),
		newBookingsCreateCmd(),
		newBookingsCancelCmd(),
	)
	return cmd
}

func newBookingsListCmd() *cobra.Command {
	var flags readFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your bookings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingsList(cmd, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runBookingsList(cmd *cobra.Command, flags readFlags) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	res := read(cmd.Context(), flags, app.Hub.Bookings, app.Hub.BookingsIfFresh)
	return respond(app, res, plural(len(res.Data), "booking", "bookings"))
}

func newBookingsCreateCmd() *cobra.Command {
	var req resources.BookingRequest
	var at string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book a wash",
		Long: `Book a wash at a service center.

--at accepts RFC 3339 timestamps or expressions such as "tomorrow 9am",
"fri 14:30", or "2026-03-02 10:00". Times without a zone are local.`,
		Example: `  washbay bookings create --center c1 --service "Full wash" --at "tomorrow 10:00"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			slot, err := dateparse.ParseSlot(at, app.Clock.Now().Local())
			if err != nil {
				return output.ErrUsageHint("Invalid --at: "+err.Error(), `Try "tomorrow 10:00" or 2026-03-02T10:00:00Z`)
			}
			req.ScheduledAt = slot.Format(time.RFC3339)

			res := app.Hub.CreateBooking(cmd.Context(), req)
			if !res.Success {
				return res.Err
			}

			summary := "Booked " + req.Service + " for " + slot.Format("Mon Jan 2 15:04")
			if res.Data.ID != "" {
				summary += " (booking " + res.Data.ID + ")"
			}
			return app.OK(res.Data, output.WithSummary(summary))
		},
	}

	cmd.Flags().StringVarP(&req.CenterID, "center", "c", "", "Service center ID")
	cmd.Flags().StringVarP(&req.Service, "service", "s", "", "Service to book")
	cmd.Flags().StringVar(&at, "at", "", "Slot to book")
	cmd.Flags().StringVar(&req.Vehicle, "vehicle", "", "Vehicle plate or description")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Notes for the center")
	_ = cmd.MarkFlagRequired("center")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func newBookingsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			res := app.Hub.CancelBooking(cmd.Context(), args[0])
			if !res.Success {
				return res.Err
			}

			booking := res.Data
			if booking.ID == "" {
				booking = resources.Booking{ID: args[0], Status: "cancelled"}
			}
			return app.OK(booking, output.WithSummary("Cancelled booking "+args[0]))
		},
	}
}
