package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Bid-multiplier engine",
	Long:  "Turns predicted user SVR into calibrated, capped bid multipliers. Scores single requests, request files and benchmark datasets, and serves the engine over HTTP. Also predicts click-through and win probabilities.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
