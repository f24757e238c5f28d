package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mmrzaf/mockdata/internal/api"
	"github.com/mmrzaf/mockdata/internal/config"
	"github.com/mmrzaf/mockdata/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/metrics"
)

func serveCmd(cfg *config.Config) *cobra.Command {
	var bindAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.NewLogger(logLevel).WithComponent("api_main")
			m := metrics.New()

			svc, closeFn, err := newService(logger, m, cfg.OutputDir)
			if err != nil {
				logger.Errorw("startup.failed", map[string]any{"error": err, "stage": "init_run_repo"})
				return err
			}
			defer closeFn()

			mux := http.NewServeMux()
			api.NewHandler(ctx, schemas.NewFileRepository(schemasDir), svc).Routes(mux)
			mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

			srv := &http.Server{
				Addr:              bindAddr,
				Handler:           api.WithLogging(logger.WithComponent("http"), mux),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Infow("startup.listening", map[string]any{"bind": bindAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("startup.failed", map[string]any{"error": err, "stage": "listen"})
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bindAddr, "bind", cfg.BindAddr, "Bind address")
	return cmd
}
