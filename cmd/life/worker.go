package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"uk.ac.bris.cs/distlife/gol"
)

// workerCmd serves one band of a distributed run
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve a worker for a distributed run",
	Long: `Starts a worker that a coordinator ("life run --worker-addr") reaches over RPC.
The same address serves /metrics and /healthz.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		listen, _ := cmd.Flags().GetString("listen")

		registry := prometheus.NewRegistry()
		worker := gol.NewWorker(logger)
		defer worker.Close()
		service := gol.NewWorkerService(worker, gol.NewMetrics(registry))
		handler, err := gol.NewWorkerHandler(service, registry)
		if err != nil {
			return err
		}

		listener, err := net.Listen("tcp", listen)
		if err != nil {
			return err
		}
		server := &http.Server{Handler: handler}
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker server stopped", "error", err)
			}
		}()
		logger.Info("worker listening", "addr", listener.Addr().String())

		// Wait for a shutdown request from the coordinator or a signal
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case <-ctx.Done():
			logger.Info("signal received, shutting down")
		case <-service.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringP("listen", "l", ":2000", "Address to serve RPC, /metrics and /healthz on")
}
