package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

var rootCmd = &cobra.Command{
	Use:   "acctsim",
	Short: "Simulated brokerage account ledger for strategy backtesting",
	Long: `Acctsim maintains a simulated brokerage account: cash, FIFO lot
positions, a full trade history, daily settlement and equity/profit curves.

It provides tools for:
  - Replaying scripted buy/sell sequences against historical prices
  - Persisting account state to SQLite and restoring it
  - Exporting trades, positions and equity curves as CSV
  - Importing bar history from CSV, xz or zip archives`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
