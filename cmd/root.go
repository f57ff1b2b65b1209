package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/internal/tracing"
)

var version = "dev"

var (
	cfg             *config.Config
	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:     "landuse-cli",
	Short:   "Remote-sensing land-use suitability profiles",
	Long:    "Builds per-AOI statistic profiles from remote-sensing layers, scores them for greenspace, industrial and residential use, and asks an LLM for planning recommendations.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		shutdown, err := tracing.Init(cmd.Context(), version)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := shutdownTracing(context.Background()); err != nil {
			zap.L().Warn("tracing shutdown failed", zap.Error(err))
		}
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
