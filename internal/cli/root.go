// Package cli implements the orderdesk command tree. Every command that shows
// a view navigates to it through the authorization gate first.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/orderdesk/internal/client/apiclient"
	"github.com/99minutos/orderdesk/internal/client/app"
	"github.com/99minutos/orderdesk/internal/client/authz"
	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/redis"
	"github.com/99minutos/orderdesk/internal/infrastructure/sessionstore"
	"github.com/99minutos/orderdesk/internal/pkg/config"
	"github.com/99minutos/orderdesk/pkg/logger"
)

var (
	ErrLoginRequired = errors.New("login required")
	ErrAdminRequired = errors.New("admin privileges required")
)

// Env carries the process-level collaborators. Store and Logger are optional
// and replace the configured backend and the global logger.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Store  ports.SessionStore
	Logger *zerolog.Logger
}

type globalFlags struct {
	apiURL         string
	envFile        string
	sessionBackend string
	sessionFile    string
	logLevel       string
	jsonOutput     bool
}

// runtime is the state shared by the commands of one invocation.
type runtime struct {
	env   Env
	flags globalFlags

	cfg    *config.Config
	log    zerolog.Logger
	app    *app.App
	closer io.Closer
}

// Execute runs the CLI against the real process environment.
func Execute() error {
	return Run(context.Background(), Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}, os.Args[1:])
}

// Run executes one invocation with args and releases what it opened.
func Run(ctx context.Context, env Env, args []string) error {
	rt := &runtime{env: env}
	root := rt.rootCommand()
	root.SetArgs(args)
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	err := root.ExecuteContext(ctx)
	rt.teardown()

	var authzErr *domain.AuthorizationError
	if errors.As(err, &authzErr) {
		return fmt.Errorf("session rejected by the server, log in again: %w", err)
	}
	return err
}

func (rt *runtime) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "orderdesk",
		Short: "Client for the orders and users API",
		Long: `orderdesk manages orders and, for administrators, user accounts.

The session survives between invocations in the configured session store.

Environment Variables:
  ORDERDESK_API_URL          API base URL (default: http://localhost:8001)
  ORDERDESK_SESSION_BACKEND  file, redis or memory (default: file)
  ORDERDESK_SESSION_FILE     session file path for the file backend
  ORDERDESK_REDIS_ADDR       Redis address for the redis backend
  ORDERDESK_REDIS_PASSWORD   Redis password for the redis backend`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&rt.flags.apiURL, "api-url", "", "API base URL (overrides ORDERDESK_API_URL)")
	f.StringVar(&rt.flags.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	f.StringVar(&rt.flags.sessionBackend, "session-backend", "", "session store: file, redis or memory")
	f.StringVar(&rt.flags.sessionFile, "session-file", "", "session file for the file backend")
	f.StringVar(&rt.flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	f.BoolVar(&rt.flags.jsonOutput, "json", false, "output JSON instead of tables")

	root.AddCommand(
		rt.loginCommand(),
		rt.logoutCommand(),
		rt.whoamiCommand(),
		rt.openCommand(),
		rt.ordersCommand(),
		rt.usersCommand(),
	)
	return root
}

// setup loads configuration, opens the session store and restores the
// persisted session. It never contacts the API.
func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx, rt.flags.envFile)
	if err != nil {
		return err
	}
	if rt.flags.apiURL != "" {
		cfg.APIURL = rt.flags.apiURL
	}
	if rt.flags.sessionBackend != "" {
		cfg.Session.Backend = rt.flags.sessionBackend
	}
	if rt.flags.sessionFile != "" {
		cfg.Session.File = rt.flags.sessionFile
	}
	if rt.flags.logLevel != "" {
		cfg.LogLevel = rt.flags.logLevel
	}
	rt.cfg = cfg

	if rt.env.Logger != nil {
		rt.log = *rt.env.Logger
	} else {
		rt.log = logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Pretty:  cfg.LogPretty,
			Output:  rt.env.Stderr,
			Service: "orderdesk",
		})
	}

	store := rt.env.Store
	if store == nil {
		s, closer, err := sessionstore.Open(ctx, sessionstore.Options{
			Backend:  cfg.Session.Backend,
			FilePath: cfg.Session.File,
			Redis: redis.Config{
				Addr:     cfg.Session.RedisAddr,
				Password: cfg.Session.RedisPassword,
				DB:       cfg.Session.RedisDB,
				Timeout:  cfg.HTTPTimeout,
			},
			RedisPrefix: cfg.Session.RedisPrefix,
		})
		if err != nil {
			return err
		}
		store, rt.closer = s, closer
	}

	var a *app.App
	client := apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithLogger(rt.log.With().Str("component", "apiclient").Logger()),
		apiclient.WithTokenSource(apiclient.TokenSourceFunc(func() string {
			return a.Sessions().Token()
		})),
	)
	a = app.New(client, store, rt.log)
	rt.app = a

	if err := a.Start(ctx); err != nil {
		rt.log.Warn().Err(err).Msg("starting logged out")
	}
	return nil
}

func (rt *runtime) teardown() {
	if rt.app != nil {
		rt.app.Close()
	}
	if rt.closer != nil {
		if err := rt.closer.Close(); err != nil {
			rt.log.Warn().Err(err).Msg("closing session store")
		}
	}
}

// enter navigates to path and fails when the gate redirected elsewhere.
func (rt *runtime) enter(path string) error {
	t := rt.app.Open(path)
	switch t.Decision {
	case authz.Allow:
		return nil
	case authz.RedirectLogin:
		return fmt.Errorf("%s: %w, run `orderdesk login`", t.Requested.Path, ErrLoginRequired)
	default:
		return fmt.Errorf("%s: %w", t.Requested.Path, ErrAdminRequired)
	}
}

func (rt *runtime) stdout() io.Writer {
	if rt.env.Stdout == nil {
		return io.Discard
	}
	return rt.env.Stdout
}

func (rt *runtime) stderr() io.Writer {
	if rt.env.Stderr == nil {
		return io.Discard
	}
	return rt.env.Stderr
}

func (rt *runtime) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.stdout(), string(data))
	return err
}

func (rt *runtime) table() *tabwriter.Writer {
	return tabwriter.NewWriter(rt.stdout(), 0, 0, 2, ' ', 0)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
