package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/newthinker/marketbias/internal/config"
	"github.com/newthinker/marketbias/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "marketbias",
	Short: "marketbias - daily directional bias for Indian index futures",
	Long: `marketbias scores the daily directional bias of NIFTY and BANKNIFTY from
multi-timeframe trend structure, previous-day range, opening gap, intraday
momentum and keyword-scored news, and serves the result over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv populates the environment from a dotenv file. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadConfig reads configuration, falling back to defaults without --config.
// Callers validate after applying flag overrides.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// newLogger builds the process logger; --debug wins over the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if debug || cfg == nil {
		return logger.New(debug)
	}
	return logger.Build(logger.Options{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
}
