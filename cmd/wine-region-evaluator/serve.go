package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/wine-region-evaluator/internal/api/http"
	"github.com/i474232898/wine-region-evaluator/internal/observability"
	"github.com/i474232898/wine-region-evaluator/internal/scheduler"
)

var (
	servePort        int
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the ingestion scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, observability.NewMetrics())
		if err != nil {
			return err
		}
		defer env.Close()

		if !serveNoScheduler {
			sched := scheduler.New(cfg.IngestInterval, cfg.IngestInterval, env.Service)
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()
		}

		app := httpapi.NewApp(env.Service, httpapi.AppConfig{
			ReadTimeout:  cfg.HTTPTimeout,
			WriteTimeout: cfg.HTTPTimeout,
			Defaults: httpapi.Defaults{
				ViabilityYears:   cfg.ViabilityYears,
				PerformanceYears: cfg.PerformanceYears,
			},
		})

		port := cfg.Port
		if servePort > 0 {
			port = strconv.Itoa(servePort)
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("starting server", zap.String("port", port))
			errCh <- app.Listen(":" + port)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zap.L().Error("error during shutdown", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve the API without periodic ingestion")
	rootCmd.AddCommand(serveCmd)
}
