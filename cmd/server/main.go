package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "codemarket",
	Short: "A ledger market where vendors stock goods and trade them with each other",
	Long: `codemarket keeps a ledger of registered vendors and their goods. Each
vendor moves items between its store and stock pools and buys stocked
items from other vendors. The market is served over HTTP and gRPC.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
