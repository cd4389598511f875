package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/accountsim/account"
	"github.com/rustyeddy/accountsim/cost"
	"github.com/rustyeddy/accountsim/journal"
	"github.com/rustyeddy/accountsim/market"
)

var (
	exportDBPath string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a saved account to CSV",
	Long: `Load a saved account from SQLite and dump its trade list, open
positions and closed positions as CSV files.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDBPath, "db", "d", "./account.sqlite", "path to SQLite account DB")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "./export", "output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(exportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	st, err := j.Load()
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	// The curve needs live quotes; a restored account without them still
	// exports its three lists.
	acct, err := account.FromState(st, cost.NewZero(), market.NewMemoryQuotes())
	if err != nil {
		return fmt.Errorf("restore account: %w", err)
	}

	if err := journal.ExportCSV(acct, nil, market.KDay, exportDir); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	log.Info().Str("dir", exportDir).Str("account", acct.Name()).Msg("csv exported")
	return nil
}
