package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
