package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orderdesk",
	Short: "Purchase order extraction pipeline for furniture retailers",
	Long:  "Routes incoming retailer order emails to branch profiles, extracts structured orders via Claude models, applies deterministic corrections and exports manufacturer XML.",
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
