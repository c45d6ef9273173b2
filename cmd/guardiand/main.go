// Command guardiand runs the Behavioral Guardian daemon: it ingests
// newline-delimited telemetry on stdin (or from the path given to --input),
// drives one analysis tick per sample, and serves the latest snapshot and
// control surface over HTTP. Subcommands let an operator poke the running
// daemon's guardian memory without restarting it. Grounded on the
// teacher's cmd/root.go flag surface and engine/daemon.go's signal
// handling and pidfile lifecycle, rebuilt on cobra (listed in go.mod but
// unused by the teacher) instead of the stdlib flag package.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hostguardian/guardian/config"
	"github.com/hostguardian/guardian/guardian"
	"github.com/hostguardian/guardian/httpapi"
	"github.com/hostguardian/guardian/ingest"
	"github.com/hostguardian/guardian/metrics"
	"github.com/hostguardian/guardian/model"
	"github.com/hostguardian/guardian/notify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "guardiand: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guardiand",
		Short: "Behavioral Guardian: on-host process anomaly detection",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newTrustCmd())
	root.AddCommand(newDangerousCmd())
	root.AddCommand(newIgnoreCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newRunCmd() *cobra.Command {
	var inputPath string
	var httpAddr string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon: ingest telemetry, analyze, serve HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer func() { _ = logger.Sync() }()

			cfg := config.Load(logger)
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			pidPath := filepath.Join(cfg.DataDir, "guardiand.pid")
			if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600); err != nil {
				return fmt.Errorf("write pid file: %w", err)
			}
			defer os.Remove(pidPath)

			rec := metrics.New()
			notifier := notify.New(cfg.Alerts, logger)

			g := guardian.New(guardian.Config{
				BaselinePath:     cfg.BaselinePath(),
				MemoryPath:       cfg.MemoryPath(),
				AuditPath:        cfg.AuditPath(),
				BaselineAlpha:    cfg.BaselineAlpha,
				FingerprintAlpha: cfg.FingerprintAlpha,
				Sink:             notifier,
				Metrics:          rec,
				Logger:           logger,
			})
			g.Load()
			defer g.Shutdown()

			server := httpapi.NewServer(g, logger, rec.Handler())
			httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Handler()}
			go func() {
				logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			in, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			intake := make(chan model.TelemetryMessage, 1)
			reader := ingest.NewReader(logger, func(reason, line string) {
				logger.Warn("dropped telemetry line", zap.String("reason", reason))
			})

			ingestDone := make(chan error, 1)
			go func() { ingestDone <- reader.Run(ctx, in, intake) }()

			logger.Info("guardiand started", zap.Int("pid", os.Getpid()), zap.String("datadir", cfg.DataDir))

			for {
				select {
				case <-ctx.Done():
					logger.Info("shutting down")
					_ = httpSrv.Close()
					return nil
				case err := <-ingestDone:
					if err != nil && err != context.Canceled {
						logger.Error("ingest stopped", zap.Error(err))
					}
					_ = httpSrv.Close()
					return err
				case msg := <-intake:
					g.Tick(msg)
				}
			}
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "-", "telemetry NDJSON source path, or - for stdin")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "override the configured HTTP bind address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "reserved for a future standalone metrics listener")
	return cmd
}

func openInput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the running daemon's learning phase and guardian memory",
		RunE:  postControl("/v1/control/reset", ""),
	}
}

func newTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust NAME",
		Short: "Mark a process name as trusted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postControl("/v1/control/trust/"+args[0], "")(cmd, args)
		},
	}
}

func newDangerousCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dangerous NAME",
		Short: "Mark a process name as dangerous",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postControl("/v1/control/dangerous/"+args[0], "")(cmd, args)
		},
	}
}

func newIgnoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore NAME",
		Short: "Mark a process name as ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postControl("/v1/control/ignore/"+args[0], "")(cmd, args)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the running daemon's latest snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(nil)
			resp, err := http.Get("http://" + cfg.HTTPAddr + "/v1/snapshot")
			if err != nil {
				return fmt.Errorf("contact daemon: %w", err)
			}
			defer resp.Body.Close()
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
}

// postControl issues a control-plane POST against the locally configured
// daemon and reports the result.
func postControl(path, body string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(nil)
		resp, err := http.Post("http://"+cfg.HTTPAddr+path, "application/json", nil)
		if err != nil {
			return fmt.Errorf("contact daemon: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
}
