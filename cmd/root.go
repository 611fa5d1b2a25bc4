package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "exchange-settlement",
	Short: "Deterministic settlement engine for 0x-style exchange orders",
	Long: `Settlement engine that executes limit, RFQ, OTC and NFT order fills,
batch and multi-hop routes, and liquidity-provider swaps against a
transactional token ledger.

Every call commits atomically or not at all, and committed events are
published to the configured sinks and streamed to websocket clients.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: .env file not found")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
