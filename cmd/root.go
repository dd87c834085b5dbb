package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-data/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vehicle-data",
	Short: "Cost-aware UK vehicle data lookups",
	Long:  "Resolves vehicle data by registration from a local cache or paid providers (DVLA, DVSA MOT, SWS) within a per-call cost ceiling, recording every provider call in a cost ledger.",
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
