package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"uk.ac.bris.cs/distlife/gol"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [grid-file]",
	Short: "Evolve a grid and print the final generation",
	Long: `Reads a grid ("N G" header followed by N rows, 'x' alive) from the given file
or from stdin when the file is "-" or omitted, runs G generations and prints the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, &cfg); err != nil {
			return err
		}

		path := "-"
		if len(args) > 0 {
			path = args[0]
		}
		grid, generations, err := readGridFile(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("generations") {
			generations, _ = cmd.Flags().GetInt("generations")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		trace, _ := cmd.Flags().GetBool("trace")
		result, _ := cmd.Flags().GetBool("result")
		return runGrid(ctx, cmd.OutOrStdout(), logger, cfg, grid, generations, trace, result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 1, "Number of workers (capped at the number of rows)")
	cmd.Flags().IntP("threads", "t", 1, "Routines per worker")
	cmd.Flags().IntP("generations", "g", 0, "Override the generation count from the grid header")
	cmd.Flags().StringSlice("worker-addr", nil, "Addresses of remote workers; in-process workers when empty")
	cmd.Flags().Bool("shutdown-workers", false, "Ask remote workers to exit when the run ends")
	cmd.Flags().Duration("step-timeout", 0, "Deadline for a single generation (0 disables)")
	cmd.Flags().Duration("run-timeout", 0, "Deadline for the whole run (0 disables)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().String("redis-addr", "", "Also store emitted grids in Redis")
	cmd.Flags().String("redis-key", "", "Key prefix for grids stored in Redis")
	cmd.Flags().Bool("trace", false, "Print the initial grid and every generation")
	cmd.Flags().Bool("result", false, `Print a "Final:" header before the final grid`)
}

// Flags override values from the configuration file
func applyRunFlags(cmd *cobra.Command, cfg *gol.Config) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("threads") {
		cfg.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("worker-addr") {
		cfg.WorkerAddrs, _ = flags.GetStringSlice("worker-addr")
		if !flags.Changed("workers") {
			cfg.Workers = len(cfg.WorkerAddrs)
		}
	}
	if flags.Changed("shutdown-workers") {
		cfg.ShutdownWorkers, _ = flags.GetBool("shutdown-workers")
	}
	if flags.Changed("step-timeout") {
		cfg.StepTimeout, _ = flags.GetDuration("step-timeout")
	}
	if flags.Changed("run-timeout") {
		cfg.RunTimeout, _ = flags.GetDuration("run-timeout")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("redis-key") {
		cfg.Redis.Key, _ = flags.GetString("redis-key")
	}
	return cfg.Validate()
}

func readGridFile(stdin io.Reader, path string) (*gol.Grid, int, error) {
	if path == "-" {
		return gol.ReadGrid(stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	return gol.ReadGrid(file)
}

func runGrid(ctx context.Context, out io.Writer, logger *slog.Logger, cfg gol.Config,
	grid *gol.Grid, generations int, trace, result bool) error {

	registry := prometheus.NewRegistry()
	metrics := gol.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer server.Close()
	}

	// Sinks for emitted grids
	header := func(generation int) string { return fmt.Sprintf("%d ----------", generation) }
	traceSinks := gol.MultiSink{gol.TextSink{W: out, Header: header}}
	finalText := gol.TextSink{W: out}
	if result {
		finalText.Header = func(int) string { return "Final:" }
	}
	finalSinks := gol.MultiSink{finalText}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()
		sink := gol.NewRedisSink(client, cfg.Redis.Key, cfg.Redis.TTL)
		traceSinks = append(traceSinks, sink)
		finalSinks = append(finalSinks, sink)
	}

	opts := []gol.Option{
		gol.WithLogger(logger),
		gol.WithMetrics(metrics),
		gol.WithStepTimeout(cfg.StepTimeout),
		gol.WithRunTimeout(cfg.RunTimeout),
	}
	var traceErr error
	if trace {
		if err := (gol.TextSink{W: out, Header: func(int) string { return "Initial:" }}).Emit(ctx, 0, grid); err != nil {
			return err
		}
		opts = append(opts, gol.WithObserver(func(generation int, g *gol.Grid) {
			if err := traceSinks.Emit(ctx, generation, g); err != nil && traceErr == nil {
				traceErr = err
			}
		}))
	}

	dialer := cfg.Dialer(gol.LocalDialer{Logger: logger})
	final, err := gol.Run(ctx, grid, gol.Params{
		Generations: generations,
		Workers:     cfg.Workers,
		Threads:     cfg.Threads,
	}, dialer, opts...)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if traceErr != nil {
		return traceErr
	}
	return finalSinks.Emit(ctx, generations, final)
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return server
}
