package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chaincommand",
	Short: "Autonomous supply chain decision engine",
	Long: `ChainCommand runs a layered roster of supply chain agents over a
simulated product portfolio: operational agents scan for anomalies and
market signals, tactical agents replenish stock and manage suppliers,
and strategic agents forecast and plan. Costly actions escalate to a
human approval gate.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml or $HOME/.config/chaincommand/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.InitViper(viper.GetString("config"))
}

// loadConfigAndLogger builds the runtime config and its logger.
// The caller owns the logger and must Close it.
func loadConfigAndLogger() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
