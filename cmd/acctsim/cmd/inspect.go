package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/accountsim/journal"
)

var inspectDBPath string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a summary of a saved account",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectDBPath, "db", "d", "./account.sqlite", "path to SQLite account DB")
}

func runInspect(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(inspectDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	st, err := j.Load()
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	fmt.Printf("account:      %s\n", st.Name)
	fmt.Printf("opened:       %s\n", st.InitTime.Format(time.RFC3339))
	fmt.Printf("initial cash: %.2f\n", st.InitCash)
	fmt.Printf("current cash: %.2f\n", st.CurrentCash)
	fmt.Printf("trades:       %d\n", len(st.Trades))
	fmt.Printf("open pos:     %d\n", len(st.Positions))
	fmt.Printf("closed pos:   %d\n", len(st.History))

	for _, p := range st.Positions {
		fmt.Printf("  %-10s qty=%.0f lots=%d risk=%.2f\n",
			p.Security, p.Quantity, len(p.Contracts), p.TotalRisk)
	}
	return nil
}
