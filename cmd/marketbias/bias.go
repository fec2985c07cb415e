package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/marketbias/internal/app"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/spf13/cobra"
)

var (
	biasJSON     bool
	biasProvider string
)

var biasCmd = &cobra.Command{
	Use:   "bias [INDEX...]",
	Short: "Compute the current bias once and print it",
	Example: `  marketbias bias
  marketbias bias NIFTY --provider live
  marketbias bias --json`,
	RunE: runBias,
}

func init() {
	biasCmd.Flags().BoolVar(&biasJSON, "json", false, "print snapshots as JSON")
	biasCmd.Flags().StringVar(&biasProvider, "provider", "", "override the configured data source")
	rootCmd.AddCommand(biasCmd)
}

func runBias(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if biasProvider != "" {
		cfg.Source.Provider = biasProvider
	}
	if len(args) > 0 {
		indices := make([]string, 0, len(args))
		for _, arg := range args {
			idx, err := core.ParseIndex(arg)
			if err != nil {
				return err
			}
			indices = append(indices, string(idx))
		}
		cfg.Indices = indices
	}
	cfg.Metrics.Enabled = false
	if err := validate(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	run, err := a.RunOnce(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if biasJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	blocks := make([]string, 0, len(run.Snapshots))
	for _, snap := range run.Snapshots {
		blocks = append(blocks, renderSnapshot(snap))
	}
	fmt.Fprintln(out, strings.Join(blocks, "\n"))
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("run %s (%s)", run.ID, run.Duration.Round(time.Millisecond))))
	return nil
}
