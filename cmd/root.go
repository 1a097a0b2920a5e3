package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "facture-cli",
	Short: "French energy invoice extraction pipeline",
	Long:  "Ingests supplier invoice drops, OCRs and normalizes them into one record per metering point, deduplicates by reference and exports to broker formats, Notion and Salesforce.",
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
