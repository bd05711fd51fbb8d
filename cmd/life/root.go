package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"uk.ac.bris.cs/distlife/gol"
	"uk.ac.bris.cs/distlife/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "life",
	Short: "life runs Conway's Game of Life across a pool of workers",
	Long: `life partitions a square grid into row bands, evaluates each band on its own worker
and exchanges ghost rows between generations. Workers run in-process or as
separate "life worker" processes reached over RPC.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}

// Load the configuration file and apply the persistent flags over it
func loadConfig(cmd *cobra.Command) (gol.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := gol.LoadConfig(path)
	if err != nil {
		return cfg, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(level, cfg.LogJSON), nil
}
