package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/truepricereport/leadgen/internal/valuation"
	"github.com/truepricereport/leadgen/pkg/corelogic"
)

var (
	estimateAddress string
	estimateZip     string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Look up a single property valuation from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.CoreLogic.Configured() {
			return eris.New("corelogic credentials not configured")
		}

		cl := corelogic.NewClient(cfg.CoreLogic.ClientKey, cfg.CoreLogic.ClientSecret,
			corelogic.WithBaseURL(cfg.CoreLogic.BaseURL),
			corelogic.WithRateLimit(cfg.CoreLogic.RateLimit),
		)

		est, err := valuation.NewService(cl).Estimate(cmd.Context(), estimateAddress, estimateZip)
		if err != nil {
			return eris.Wrap(err, "estimate lookup")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(est)
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateAddress, "address", "", "street address")
	estimateCmd.Flags().StringVar(&estimateZip, "zip", "", "5-digit zip code")
	estimateCmd.MarkFlagRequired("address") //nolint:errcheck
	estimateCmd.MarkFlagRequired("zip")     //nolint:errcheck
	rootCmd.AddCommand(estimateCmd)
}
