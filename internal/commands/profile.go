package commands

import (
	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/resources"
)

// NewProfileCmd creates the profile command group.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"me"},
		Short:   "Show or edit your profile",
	}

	cmd.AddCommand(newProfileShowCmd(), newProfileEditCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Long:  "Show the profile stored at login. --refresh reloads it from the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if refresh {
				res := app.Hub.Profile(cmd.Context())
				if !res.Success {
					return res.Err
				}
				return app.OK(res.Data, output.WithSummary(res.Data.Name), output.WithSource(res.Source.String()))
			}

			user, ok, err := app.Session.User()
			if err != nil {
				return err
			}
			if !ok {
				return output.ErrAuth("No stored profile")
			}
			return app.OK(user, output.WithSummary(user.Name))
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Reload the profile from the server")
	return cmd
}

func newProfileEditCmd() *cobra.Command {
	var update resources.ProfileUpdate

	cmd := &cobra.Command{
		Use:     "edit",
		Short:   "Edit your profile",
		Example: `  washbay profile edit --phone "+1 555 0100"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if update == (resources.ProfileUpdate{}) {
				return output.ErrUsage("Nothing to change: pass --name, --email, or --phone")
			}

			res := app.Hub.EditProfile(cmd.Context(), update)
			if !res.Success {
				return res.Err
			}
			return app.OK(res.Data, output.WithSummary("Profile updated"))
		},
	}

	cmd.Flags().StringVar(&update.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&update.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&update.Phone, "phone", "", "Phone number")
	return cmd
}
