package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/niels/sparrow/pkg/activity"
	"github.com/niels/sparrow/pkg/config"
	"github.com/niels/sparrow/pkg/demo"
	"github.com/niels/sparrow/pkg/dispatch"
	"github.com/niels/sparrow/pkg/listener"
	"github.com/niels/sparrow/pkg/logging"
	"github.com/niels/sparrow/pkg/output"
	"github.com/niels/sparrow/pkg/retry"
	"github.com/niels/sparrow/pkg/version"
	"github.com/niels/sparrow/pkg/wirelog"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	prefixes    []string
	debug       bool
	showVersion bool
	noColor     bool
	dump        bool
	logExchange bool
	cfg         *config.Config
)

// NewRootCmd creates the root command for sparrow
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Serves a JSON payload for every request received on the first configured prefix.
`, version.AppName, version.Description),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg = config.LoadOrDefault(configPath)
			} else {
				cfg = config.LoadDefault()
				config.ApplyEnv(cfg)
			}
			if len(prefixes) > 0 {
				cfg.Server.Prefixes = prefixes
			}

			logging.InitGlobalLogger(debug, cfg)
			logging.InfoWith("Initializing sparrow", map[string]interface{}{
				"config":   configPath,
				"prefixes": cfg.Server.Prefixes,
			})

			if logExchange {
				if err := wirelog.InitGlobalLogger(true, cfg.Logging.ExchangeLogPath); err != nil {
					return fmt.Errorf("failed to initialize exchange logger: %w", err)
				}
				logging.InfoWith("Exchange logging enabled", map[string]interface{}{
					"path": cfg.Logging.ExchangeLogPath,
				})
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer closeLoggers()

			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runServer(ctx, cmd.OutOrStdout(), cfg); err != nil {
				logging.ErrorWith("Server failed", map[string]interface{}{"error": err})
				return err
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringArrayVarP(&prefixes, "prefix", "p", nil, "Listen prefix such as http://localhost:11231/ (repeatable, only the first is bound)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().BoolVar(&dump, "dump", false, "Print every request with its headers and body")
	rootCmd.PersistentFlags().BoolVar(&logExchange, "log-exchange", false, "Append every request and response summary to the exchange log")

	return rootCmd
}

func closeLoggers() {
	if err := wirelog.InitGlobalLogger(false, ""); err != nil {
		logging.WarnWith("Failed to close exchange log", map[string]interface{}{"error": err})
	}
	if err := logging.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
}

// lockedWriter serialises writes from concurrent handlers
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// dumpingDispatcher prints each request before handing it on
type dumpingDispatcher struct {
	next      demo.Dispatcher
	out       io.Writer
	formatter *output.TerminalFormatter
}

func (d *dumpingDispatcher) Dispatch(ctx context.Context, c *listener.Context) error {
	var buf bytes.Buffer
	buf.WriteString(d.formatter.FormatRequest(c.Request, false))
	if err := d.formatter.WriteBody(&buf, c.Request.Body(), c.Request.Header("Content-Type")); err != nil {
		logging.WarnWith("Failed to render request body", map[string]interface{}{"error": err})
	}
	_, _ = d.out.Write(buf.Bytes())
	return d.next.Dispatch(ctx, c)
}

func runServer(ctx context.Context, stdout io.Writer, cfg *config.Config) error {
	out := &lockedWriter{w: stdout}
	log := logging.WithComponent("listener")

	l := listener.New().
		WithTimeout(time.Duration(cfg.Server.Timeout) * time.Second).
		WithConnErrorHook(func(remote string, err error) {
			log.Warn().Str("remote", remote).Err(err).Msg("Connection dropped")
		})

	for _, prefix := range cfg.Server.Prefixes {
		if err := l.AddPrefix(prefix); err != nil {
			return fmt.Errorf("invalid prefix: %w", err)
		}
	}

	opts := retry.FromConfig(cfg)
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWith("Failed to bind, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
			"error":   err,
		})
	}
	if err := retry.Do(ctx, l.Start, opts); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	log.Info().Str("addr", l.Addr().String()).Msg("Listener started")

	tracker := activity.NewConsoleTracker().WithWriter(out).WithColor(!noColor)
	tracker.Start(fmt.Sprintf("%s (%s)", l.Prefixes()[0], l.Addr()))

	handler := demo.NewHandler(cfg.Demo)
	dispatcher := dispatch.NewDispatcher(cfg, handler.Handle).
		WithTracker(tracker).
		WithResultCallback(func(id int64, c *listener.Context, err error) {
			logging.DebugWith("Request handled", map[string]interface{}{
				"id":     id,
				"method": c.Request.HTTPMethod(),
				"path":   c.Request.Path(),
				"status": c.Response.StatusCode,
			})
			if err := wirelog.LogExchange(id, c, err); err != nil {
				logging.WarnWith("Failed to write exchange log", map[string]interface{}{"error": err})
			}
		})

	var next demo.Dispatcher = dispatcher
	if dump {
		next = &dumpingDispatcher{next: dispatcher, out: out, formatter: output.NewTerminalFormatter(!noColor)}
	}

	serveErr := demo.Serve(ctx, l, next)

	logging.Info("Shutting down")
	l.Stop()
	dispatcher.Wait()
	l.Shutdown()
	tracker.Finish()

	return serveErr
}
