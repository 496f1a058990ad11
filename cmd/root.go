/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cafe-inventory/server/config"
	"github.com/cafe-inventory/server/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cafe",
	Short: "Café inventory server and tooling",
	Long: `Café inventory tracks products, stock receipts (入庫) and issues (出庫).

	cafe server
	cafe migrate up
	cafe export history
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the environment configuration.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Env, cfg.LogLevel)
}
