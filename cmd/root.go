package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pfmtransfer",
	Short: "Transfer DNA-binding profiles between similar transcription factors",
	Long:  "Selects characterized factors similar to a query, filters outlier profiles, merges the rest into a transferred PFM and evaluates transfer quality.",
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
