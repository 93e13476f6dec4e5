package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/config"
	"github.com/yourusername/headerproof/internal/grpc"
	"github.com/yourusername/headerproof/internal/prover"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC prover service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		svc, err := newProver(store, prover.NewMetrics(reg))
		if err != nil {
			return err
		}

		if cfg.Metrics.Listen != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			metricsServer := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			go func() {
				logger.Info().Str("addr", cfg.Metrics.Listen).Msg("metrics listening")
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("metrics server failed")
				}
			}()
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = metricsServer.Shutdown(shutdownCtx)
			}()
		}

		server := grpc.NewServer(svc, logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.GRPC.Listen)
		}()

		logger.Info().
			Str("prover", svc.Address()).
			Str("image_id", svc.ImageID().String()).
			Msg("prover ready")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		server.Stop()
		return nil
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("grpc-listen", "127.0.0.1:50051", "gRPC listen address")
	flags.String("metrics-listen", "", "prometheus listen address, empty to disable")

	bindFlags(flags, map[string]string{
		config.KeyGRPCListen:    "grpc-listen",
		config.KeyMetricsListen: "metrics-listen",
	})
}
