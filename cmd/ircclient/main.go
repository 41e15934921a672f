package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/omochice/toy-irc-client/internal/client"
	"github.com/omochice/toy-irc-client/internal/config"
	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/internal/logging"
	"github.com/omochice/toy-irc-client/internal/metrics"
	"github.com/omochice/toy-irc-client/internal/relay"
	"github.com/omochice/toy-irc-client/internal/transcript"
)

var exampleUsage = strings.TrimSpace(`
  ircclient --server irc.libera.chat --nick gopher
  ircclient --transport ws --url wss://web.libera.chat/webirc --nick gopher
  ircclient transcript session.pb
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: Error: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "ircclient",
		Short:         "Connect to an IRC server, print what it sends, and answer its PINGs",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile, err := resolveConfig(&cfg, cfgPath, changed)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logging.New(cfg.LogLevel, stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cfgFile, changed, stdout, log)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.ircclient/config.toml)")
	flags.StringVar(&cfg.Server, "server", cfg.Server, "server host name")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "server port")
	flags.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport to use (tcp or ws)")
	flags.StringVar(&cfg.URL, "url", cfg.URL, "WebSocket URL for the ws transport")
	flags.StringVar(&cfg.Nick, "nick", cfg.Nick, "nickname to register")
	flags.StringVar(&cfg.RealName, "realname", cfg.RealName, "real name sent in USER")
	flags.IntVar(&cfg.MinReadSize, "min-read", cfg.MinReadSize, "smallest buffer offered to a single receive")
	flags.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection timeout (0 disables)")
	flags.StringVar(&cfg.Framing, "framing", cfg.Framing, "line terminator matching (lenient or strict)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.Transcript, "transcript", cfg.Transcript, "append every line sent and received to this file")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	flags.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "publish received lines to this NATS server")
	flags.StringVar(&cfg.NATSSubject, "nats-subject", cfg.NATSSubject, fmt.Sprintf("NATS subject for received lines (default %q)", config.DefaultNATSSubject))

	root.AddCommand(newTranscriptCommand(stdout))
	return root
}

// resolveConfig layers the config file and environment under the flags that
// were set explicitly. It returns the config file in use, if any.
func resolveConfig(cfg *config.Config, cfgPath string, changed map[string]bool) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}

	if cfgFile != "" && config.FileExists(cfgFile) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	} else if cfgPath != "" {
		return "", fmt.Errorf("config file %s not found", cfgPath)
	} else {
		cfgFile = ""
	}

	if err := config.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}
	return cfgFile, nil
}

func run(ctx context.Context, cfg config.Config, cfgFile string, changed map[string]bool, stdout io.Writer, log zerolog.Logger) error {
	m := metrics.New()
	opts := []client.Option{
		client.WithLogger(log),
		client.WithMetrics(m),
		client.WithDisplay(irc.NewWriterDisplay(stdout)),
	}

	if cfg.NATSURL != "" {
		nc, err := relay.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Warn().Err(err).Msg("failed to drain nats connection")
			}
		}()
		opts = append(opts, client.WithDisplay(relay.New(nc, cfg.NATSSubject, log)))
	}

	c, err := client.New(cfg, opts...)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfgFile != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go watchLogLevel(watchCtx, cfgFile, changed, log)
	}

	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("interrupted, connection closed")
		return nil
	}
	return err
}

func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// watchLogLevel applies log_level changes from the config file at runtime,
// unless --log-level was given.
func watchLogLevel(ctx context.Context, path string, changed map[string]bool, log zerolog.Logger) {
	err := config.Watch(ctx, path, func(fc config.FileConfig, err error) {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to reload config")
			return
		}
		if changed["log-level"] || fc.LogLevel == "" {
			return
		}
		if err := logging.SetLevel(fc.LogLevel); err != nil {
			log.Warn().Err(err).Msg("ignoring log level from config")
			return
		}
		log.Info().Str("level", fc.LogLevel).Msg("log level reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("config watcher stopped")
	}
}

func newTranscriptCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <file>",
		Short: "Print a transcript recorded with --transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open transcript: %w", err)
			}
			defer f.Close()

			_, err = transcript.Dump(stdout, transcript.NewReader(f))
			return err
		},
	}
}
