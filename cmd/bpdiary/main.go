// Command bpdiary serves the blood-pressure diary and offers a few
// maintenance commands against the same stores.
package main

import (
	"fmt"
	"os"

	"bpdiary/internal/config"
	"bpdiary/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "bpdiary",
	Short: "Blood-pressure diary: time slots, reminders and daily summaries",
	Long: `bpdiary keeps a set of daily measurement time slots, reminds the owner
when a tracked slot comes up and reconciles the slots against blood-pressure
and heart-rate samples from a health store.

Configuration is read from the environment (ADDR, SLOT_STORE, HEALTH_STORE,
DATABASE_URL, REDIS_*, MQTT_*, OIDC_*, LOG_LEVEL, ...).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(recordCmd)
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "bpdiary")
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
