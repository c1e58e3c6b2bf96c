package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/logging"
)

var (
	configPath string
	logger     *zap.Logger
	rootCmd    = &cobra.Command{
		Use:   "watchlab",
		Short: "Watchlab - timed browser experiments with packet capture",
		Long: `Watchlab runs repeated, timed browser experiments while capturing network
traffic at the packet level. Each run drives a scripted visitation sequence
through the configured channels and produces a packet capture, an HTTP
traffic log and a synchronized event timeline.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(logging.FromEnv())
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logging.Sync(logger)
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
