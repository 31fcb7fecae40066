package cli

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/washbay/washbay-cli/internal/appctx"
	"github.com/washbay/washbay-cli/internal/commands"
	"github.com/washbay/washbay-cli/internal/config"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/version"
)

// refreshGrace bounds how long the process waits for background refreshes
// before exiting.
const refreshGrace = 12 * time.Second

// NewRootCmd creates the root cobra command. Extra app options are passed
// to appctx.NewApp.
func NewRootCmd(opts ...appctx.Option) *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "washbay",
		Short:         "Book and manage car washes from the terminal",
		Long:          "washbay books washes, tracks your bookings, and keeps working from its cache when the network does not.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app := appctx.NewApp(cfg, flags, append([]appctx.Option{
				appctx.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			}, opts...)...)
			app.Logger.Debug("config loaded",
				"base_url", cfg.BaseURL, "base_url_source", cfg.SourceOf("base_url"),
				"cache_dir", cfg.CacheDir, "state", app.StateBackend, "secrets", app.SecretsBackend)

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)
	registerGlobalFlags(cmd.PersistentFlags(), &flags)

	cmd.AddCommand(
		commands.NewAuthCmd(),
		commands.NewBookingsCmd(),
		commands.NewCentersCmd(),
		commands.NewAlertsCmd(),
		commands.NewOwnerCmd(),
		commands.NewProfileCmd(),
		commands.NewCacheCmd(),
		commands.NewVersionCmd(),
	)

	return cmd
}

func registerGlobalFlags(fs *pflag.FlagSet, flags *appctx.GlobalFlags) {
	// Output format flags
	fs.BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	fs.BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	fs.BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")

	// Context flags
	fs.StringVar(&flags.BaseURL, "base-url", "", "washbay API base URL (e.g., localhost:3000/api)")
	fs.StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	// Behavior flags
	fs.BoolVarP(&flags.Verbose, "verbose", "v", false, "Log requests and cache decisions to stderr")
	fs.BoolVar(&flags.Stats, "stats", false, "Show sync statistics")
	fs.BoolVar(&flags.NoKeyring, "no-keyring", false, "Store the token in a file instead of the system keyring")
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...appctx.Option) int {
	cmd := NewRootCmd(opts...)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteContextC(ctx)

	var app *appctx.App
	if executedCmd != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		defer func() {
			if cerr := app.Close(refreshGrace); cerr != nil {
				app.Logger.Warn("closing storage failed", "error", cerr)
			}
		}()
	}

	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	jsonFlag, _ := pf.GetBool("json")
	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	}
	_ = output.New(output.Options{Format: format, Writer: stdout}).Err(err)
	return apiErr.ExitCode()
}

var shorthandPattern = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns cobra's parse errors into usage errors with
// consistent wording.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}
	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if m := shorthandPattern.FindStringSubmatch(msg); len(m) > 1 {
			return output.ErrUsage("Unknown option: " + m[1])
		}
	}
	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: washbay --help")
	}
	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}
	if strings.Contains(msg, "arg(s), received") {
		return output.ErrUsage(msg)
	}
	if strings.HasPrefix(msg, "required flag(s) ") {
		return output.ErrUsage(msg)
	}
	if strings.HasPrefix(msg, "if any flags in the group") {
		return output.ErrUsage(msg)
	}

	return err
}
