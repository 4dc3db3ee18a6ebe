package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/api"
	"github.com/sells-group/saturn/internal/monitoring"
	"github.com/sells-group/saturn/internal/svr"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("record") {
			cfg.Server.Record, _ = cmd.Flags().GetBool("record")
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		eng, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck
		svr.RegisterMetrics()

		opts := api.Options{CORSOrigins: cfg.Server.CORSOrigins}
		if cfg.Server.Record {
			st, err := openMigratedStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			rec := api.NewRecorder(st, api.RecorderOptions{})
			defer rec.Close()
			opts.Recorder = rec

			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, eng),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(eng, opts),
			ReadHeaderTimeout: 5 * time.Second,
		}
		return listenAndServe(ctx, srv, time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	},
}

// listenAndServe runs srv until ctx is done, then drains it within timeout.
func listenAndServe(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

func init() {
	addModelDirFlag(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().Bool("record", false, "persist served results to the store (default from config)")
	rootCmd.AddCommand(serveCmd)
}
