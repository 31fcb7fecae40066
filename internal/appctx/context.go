// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/cache"
	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/config"
	"github.com/washbay/washbay-cli/internal/data"
	"github.com/washbay/washbay-cli/internal/kv"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/resources"
	"github.com/washbay/washbay-cli/internal/session"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock

	// Storage. StateBackend and SecretsBackend name the backend in use.
	State          kv.Store
	Secrets        kv.Store
	StateBackend   string
	SecretsBackend string

	Client  *api.Client
	Session *session.Store
	Syncer  *data.Syncer
	Hub     *resources.Hub
	Output  *output.Writer

	// Flags holds the global flag values
	Flags GlobalFlags

	stdout  io.Writer
	stderr  io.Writer
	closers []io.Closer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool // Force ANSI styled output (even when piped)

	// Context flags
	BaseURL  string
	CacheDir string

	// Behavior flags
	Verbose   bool
	Stats     bool
	NoKeyring bool
}

// Overrides converts the flags into config overrides.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	return config.FlagOverrides{
		BaseURL:   f.BaseURL,
		CacheDir:  f.CacheDir,
		NoKeyring: f.NoKeyring,
		Stats:     f.Stats,
		Verbose:   f.Verbose,
	}
}

// Option configures NewApp.
type Option func(*options)

type options struct {
	httpClient *http.Client
	clock      clock.Clock
	state      kv.Store
	secrets    kv.Store
	secretsDir string
	stdout     io.Writer
	stderr     io.Writer
	getenv     func(string) string
}

// WithHTTPClient sets the transport used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock sets the clock shared by every component.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStores bypasses backend selection.
func WithStores(state, secrets kv.Store) Option {
	return func(o *options) { o.state, o.secrets = state, secrets }
}

// WithSecretsDir sets where the plaintext credentials fallback lives.
func WithSecretsDir(dir string) Option {
	return func(o *options) { o.secretsDir = dir }
}

// WithOutput redirects command output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) { o.stdout, o.stderr = stdout, stderr }
}

// WithGetenv replaces os.Getenv for the session token override.
func WithGetenv(fn func(string) string) Option {
	return func(o *options) { o.getenv = fn }
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, flags GlobalFlags, opts ...Option) *App {
	o := options{
		clock:      clock.Real(),
		secretsDir: config.GlobalConfigDir(),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		getenv:     os.Getenv,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config: cfg,
		Clock:  o.clock,
		Flags:  flags,
		Logger: newLogger(cfg.VerboseEnabled(), o.stderr),
		stdout: o.stdout,
		stderr: o.stderr,
	}

	if o.state != nil {
		a.State, a.StateBackend = o.state, "custom"
	} else {
		a.openState(cfg.CacheDir)
	}
	if o.secrets != nil {
		a.Secrets, a.SecretsBackend = o.secrets, "custom"
	} else {
		a.openSecrets(o.secretsDir, cfg.NoKeyring)
	}

	a.Session = session.NewStore(a.Secrets, a.State,
		session.WithClock(a.Clock),
		session.WithLogger(a.Logger),
		session.WithGetenv(o.getenv),
	)

	clientOpts := []api.Option{
		api.WithTokenSource(a.Session),
		api.WithClock(a.Clock),
		api.WithLogger(a.Logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	a.Client = api.NewClient(cfg.BaseURL, clientOpts...)

	c := cache.New(a.State, cache.WithClock(a.Clock), cache.WithLogger(a.Logger))
	a.Syncer = data.NewSyncer(c, a.Client,
		data.WithClock(a.Clock),
		data.WithLogger(a.Logger),
		data.WithMetrics(data.NewMetrics()),
	)
	a.Hub = resources.NewHub(a.Syncer, a.Session,
		resources.WithTimings(Timings(cfg)),
		resources.WithLogger(a.Logger),
	)

	a.Output = output.New(output.Options{Format: a.format(), Writer: a.stdout})
	return a
}

// Timings converts config overrides into resource timings.
func Timings(cfg *config.Config) map[string]resources.Timing {
	out := make(map[string]resources.Timing, len(cfg.Resources))
	for name, o := range cfg.Resources {
		out[name] = resources.Timing{TTL: o.TTL, Timeout: o.Timeout}
	}
	return out
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openState prefers bbolt, then a locked JSON file, then memory.
func (a *App) openState(dir string) {
	db, err := kv.OpenBolt(filepath.Join(dir, kv.BoltFileName))
	if err == nil {
		a.State, a.StateBackend = db, "bolt"
		a.closers = append(a.closers, db)
		return
	}
	a.Logger.Warn("state database unavailable, using file store", "error", err)

	if err := os.MkdirAll(dir, 0o700); err == nil {
		a.State, a.StateBackend = kv.NewFile(filepath.Join(dir, "state.json")), "file"
		return
	}
	a.Logger.Warn("cache directory unusable, nothing will persist", "dir", dir)
	a.State, a.StateBackend = kv.NewMemory(), "memory"
}

// openSecrets prefers the system keyring, then a 0600 credentials file.
func (a *App) openSecrets(dir string, noKeyring bool) {
	if !noKeyring && kv.KeyringAvailable(kv.KeyringService) {
		a.Secrets, a.SecretsBackend = kv.NewKeyring(kv.KeyringService), "keyring"
		return
	}
	a.Secrets, a.SecretsBackend = kv.NewFile(filepath.Join(dir, "credentials.json")), "file"
}

func (a *App) format() output.Format {
	switch {
	case a.Flags.Quiet:
		return output.FormatQuiet
	case a.Flags.JSON:
		return output.FormatJSON
	case a.Flags.Styled:
		return output.FormatStyled
	}
	switch a.Config.Format {
	case "json":
		return output.FormatJSON
	case "quiet":
		return output.FormatQuiet
	case "styled":
		return output.FormatStyled
	}
	return output.FormatAuto
}

// Stdout returns the command output writer.
func (a *App) Stdout() io.Writer { return a.stdout }

// Stderr returns the diagnostics writer.
func (a *App) Stderr() io.Writer { return a.stderr }

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.statsEnabled() {
		opts = append(opts, output.WithMeta("stats", a.Syncer.Metrics().Summary()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}
	if a.statsEnabled() && !a.isMachineOutput() {
		a.printStatsToStderr()
	}
	return nil
}

func (a *App) statsEnabled() bool {
	return a.Flags.Stats || a.Config.StatsEnabled()
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	return a.Flags.Quiet || a.Config.Format == "quiet"
}

func (a *App) printStatsToStderr() {
	if summary := a.Syncer.Metrics().Summary(); summary != "" {
		fmt.Fprintf(a.stderr, "\nStats: %s\n", summary)
	}
}

// Close waits for background refreshes, bounded by timeout, then closes
// the storage backends. Refreshes still running are abandoned.
func (a *App) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		a.Syncer.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		a.Logger.Debug("abandoning background refreshes", "after", timeout)
		// the bolt handle stays open; refreshes may still write to it
		return nil
	}

	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
