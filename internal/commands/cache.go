package commands

import (
	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/output"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the local cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the age and freshness of each cached resource",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := requireApp(cmd)
				if err != nil {
					return err
				}

				status := app.Hub.CacheStatus(app.Clock.Now())
				cached := 0
				for _, s := range status {
					if s.Cached {
						cached++
					}
				}
				return app.OK(status,
					output.WithSummary(plural(cached, "resource cached", "resources cached")),
					output.WithMeta("backend", app.StateBackend),
				)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached resource",
			Long:  "Remove every cached resource. The session is kept; use auth logout to remove it.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := requireApp(cmd)
				if err != nil {
					return err
				}

				if err := app.Hub.ClearCache(); err != nil {
					return err
				}
				return app.OK(map[string]string{"status": "cleared"}, output.WithSummary("Cache cleared"))
			},
		},
	)

	return cmd
}
