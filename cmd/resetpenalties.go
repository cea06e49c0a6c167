package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmallet07/rideflow/config"
	"github.com/pmallet07/rideflow/core/penalty"
	"github.com/pmallet07/rideflow/infra/logger"
	"github.com/pmallet07/rideflow/infra/redisstore"
)

var resetPenaltiesCmd = &cobra.Command{
	Use:   "reset-penalties",
	Short: "Zero all non-VIP driver rejection counters once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = store.Close() }()
		tracker := penalty.NewTracker(store, logger.New("penalty"), nil)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return tracker.ResetAllRejectionCounts(ctx)
	},
}

func init() {
	rootCmd.AddCommand(resetPenaltiesCmd)
}
