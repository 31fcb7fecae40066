package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/resources"
	"github.com/washbay/washbay-cli/internal/session"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Sign in to washbay, sign out, and inspect the stored session.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var email, token string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in with email and password, or adopt an existing bearer token.

Any data cached for a previous account is discarded.`,
		Example: `  washbay auth login --email ana@example.com
  echo "$PASSWORD" | washbay auth login --email ana@example.com --password-stdin
  washbay auth login --token "$WASHBAY_API_TOKEN"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if token != "" {
				if email != "" || passwordStdin {
					return output.ErrUsage("--token cannot be combined with --email or --password-stdin")
				}
				res := app.Hub.LoginWithToken(cmd.Context(), token)
				if !res.Success {
					return res.Err
				}
				return app.OK(res.Data, output.WithSummary(loggedInSummary(res.Data)))
			}

			if email == "" {
				return output.ErrUsageHint("--email is required", "Pass --email, or --token to use an existing token")
			}
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			res := app.Hub.Login(cmd.Context(), resources.Credentials{Email: email, Password: password})
			if !res.Success {
				return res.Err
			}
			return app.OK(res.Data, output.WithSummary(loggedInSummary(res.Data)))
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&token, "token", "", "Use an existing bearer token")

	return cmd
}

func loggedInSummary(p session.Profile) string {
	name := p.Name
	if name == "" {
		name = p.Email
	}
	if name == "" {
		return "Logged in"
	}
	return "Logged in as " + name
}

// readPassword reads from stdin when asked to, otherwise prompts on the
// terminal without echo.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", output.ErrUsage("empty password on stdin")
		}
		return password, nil
	}

	fd := os.Stdin.Fd()
	if !term.IsTerminal(fd) {
		return "", output.ErrUsageHint("no terminal to prompt for a password", "Use --password-stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(raw) == 0 {
		return "", output.ErrUsage("empty password")
	}
	return string(raw), nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Long: `Remove the stored token and profile, and discard every cached resource tied to the session.

A token supplied through WASHBAY_TOKEN is not stored and stays in effect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if err := app.Hub.Logout(cmd.Context()); err != nil {
				return err
			}

			opts := []output.ResponseOption{output.WithSummary("Successfully logged out")}
			if app.Session.TokenSource() == "env" {
				opts = append(opts, output.WithNotice(session.TokenEnv+" is still set; requests keep using that token until it is unset"))
			}
			return app.OK(map[string]string{
				"status": "logged_out",
			}, opts...)
		},
	}
}

// authStatus is the output of auth status.
type authStatus struct {
	Authenticated bool             `json:"authenticated"`
	TokenSource   string           `json:"token_source,omitempty"`
	ExpiresAt     string           `json:"expires_at,omitempty"`
	User          *session.Profile `json:"user,omitempty"`
	Storage       string           `json:"storage"`
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			tok, ok, err := app.Session.Token(cmd.Context())
			if err != nil {
				return err
			}
			st := authStatus{Authenticated: ok, Storage: app.SecretsBackend}
			if !ok {
				return app.OK(st, output.WithSummary("Not logged in"))
			}

			st.TokenSource = app.Session.TokenSource()
			if exp, ok := session.Expiry(tok); ok {
				st.ExpiresAt = exp.UTC().Format(time.RFC3339)
			}
			if user, ok, err := app.Session.User(); err == nil && ok {
				st.User = &user
			}

			summary := "Logged in"
			if st.User != nil {
				summary = loggedInSummary(*st.User)
			}
			if st.TokenSource == "env" {
				summary += " (token from " + session.TokenEnv + ")"
			}
			return app.OK(st, output.WithSummary(summary))
		},
	}
}
