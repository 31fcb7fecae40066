// Package commands implements the CLI commands.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/appctx"
	"github.com/washbay/washbay-cli/internal/data"
	"github.com/washbay/washbay-cli/internal/output"
)

// loginHint is appended to fallback notices caused by a rejected session.
const loginHint = "Run: washbay auth login"

func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// readFlags select how a read command consults the cache.
type readFlags struct {
	refresh   bool
	freshOnly bool
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "Skip the cache and wait for the network")
	cmd.Flags().BoolVar(&f.freshOnly, "fresh-only", false, "Use the cache only while it is within its TTL")
	cmd.MarkFlagsMutuallyExclusive("refresh", "fresh-only")
}

// read dispatches to the accessor mode selected by f.
func read[T any](ctx context.Context, f readFlags,
	fetch func(context.Context, bool) data.Result[T],
	ifFresh func(context.Context) data.Result[T],
) data.Result[T] {
	if f.freshOnly {
		return ifFresh(ctx)
	}
	return fetch(ctx, f.refresh)
}

// respond writes a read result. Failures become the command error;
// fallbacks succeed with a notice naming the underlying failure.
func respond[T any](app *appctx.App, res data.Result[T], summary string) error {
	if !res.Success {
		return res.Err
	}

	opts := []output.ResponseOption{
		output.WithSummary(summary),
		output.WithSource(res.Source.String()),
	}
	if notice := fallbackNotice(res, app.Clock.Now()); notice != "" {
		opts = append(opts, output.WithNotice(notice))
	}
	if !res.CapturedAt.IsZero() {
		opts = append(opts, output.WithMeta("captured_at", res.CapturedAt.Format(time.RFC3339)))
	}
	if res.Refreshing {
		opts = append(opts, output.WithMeta("refreshing", true))
	}
	return app.OK(res.Data, opts...)
}

func fallbackNotice[T any](res data.Result[T], now time.Time) string {
	reason := "unknown error"
	if res.Err != nil {
		reason = res.Err.Message
	}

	var notice string
	switch res.Source {
	case data.SourceStale:
		notice = fmt.Sprintf("Showing cached data from %s ago; refresh failed: %s", formatAge(now.Sub(res.CapturedAt)), reason)
	case data.SourceDefault:
		notice = "Nothing cached yet; refresh failed: " + reason
	default:
		return ""
	}
	if res.Err.IsAuth() {
		notice += ". " + loginHint
	}
	return notice
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
