package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MrEthical07/keynotify"
	"github.com/MrEthical07/keynotify/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalFlags struct {
	apiURL        string
	storage       string
	redisAddr     string
	redisEmbedded bool
	logLevel      string
	timeout       time.Duration
}

// app is the per-invocation client and the resources to release after the command.
type app struct {
	client  *keynotify.Client
	cleanup []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "keynotify",
		Short: "Sign in to the keyword notification service and manage alerts",
		Long: `keynotify is a client for the keyword notification service.

It signs you in, keeps your token in the configured store, and edits the
notification settings attached to your account. Configuration is read from
KEYNOTIFY_* environment variables and an optional .env file; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "API base URL (overrides KEYNOTIFY_API_URL)")
	pf.StringVar(&flags.storage, "storage", "", "durable token store: file, memory or redis")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "redis address for --storage redis")
	pf.BoolVar(&flags.redisEmbedded, "redis-embedded", false, "run an in-process redis for --storage redis")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-attempt request timeout")

	connect := func(cmd *cobra.Command) error {
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		if flags.redisEmbedded {
			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("start embedded redis: %w", err)
			}
			a.cleanup = append(a.cleanup, mr.Close)
			cfg.Storage.Backend = keynotify.StorageRedis
			cfg.Storage.RedisAddr = mr.Addr()
		}

		logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
		b := keynotify.New().WithConfig(cfg).WithLogger(logger)
		if cfg.Audit.Enabled {
			b = b.WithAuditSink(keynotify.NewJSONWriterSink(cmd.ErrOrStderr()))
		}
		client, err := b.Build()
		if err != nil {
			return err
		}
		a.client = client
		a.cleanup = append(a.cleanup, func() { _ = client.Close() })
		return nil
	}

	rootCmd.AddCommand(
		loginCmd(a, connect),
		logoutCmd(a, connect),
		statusCmd(a, connect),
		checkCmd(a, connect),
		settingsCmd(a, connect),
		baseCmd(a, connect),
		serveCmd(a, connect),
		resealCmd(a, connect),
		lintCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig layers flags over the environment.
func loadConfig(flags *globalFlags) (keynotify.Config, error) {
	cfg, err := keynotify.LoadConfigFromEnv()
	if err != nil {
		return keynotify.Config{}, err
	}
	if flags.apiURL != "" {
		cfg.BaseURL = flags.apiURL
	}
	if flags.storage != "" {
		cfg.Storage.Backend = keynotify.StorageBackend(flags.storage)
	}
	if flags.redisAddr != "" {
		cfg.Storage.RedisAddr = flags.redisAddr
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.timeout > 0 {
		cfg.Timeout = flags.timeout
	}
	return cfg, nil
}

type connectFunc func(cmd *cobra.Command) error

// withClient connects before fn and releases the client after it, whatever fn returns.
func withClient(a *app, connect connectFunc, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := connect(cmd); err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args)
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
