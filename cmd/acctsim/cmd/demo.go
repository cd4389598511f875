package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/accountsim/account"
	"github.com/rustyeddy/accountsim/brokers"
	"github.com/rustyeddy/accountsim/config"
	"github.com/rustyeddy/accountsim/journal"
	"github.com/rustyeddy/accountsim/market"
	"github.com/rustyeddy/accountsim/market/data"
)

var (
	demoConfigPath string
	demoBarsPath   string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted buy/hold/sell scenario and export the results",
	Long: `Run a short scripted scenario against synthetic daily bars: deposit
cash, buy in two lots, settle daily, sell out, then save the account to
SQLite and export the CSV lists.

With --bars, price history is imported from a CSV/xz/zip file instead of the
synthetic series.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVarP(&demoConfigPath, "config", "c", "", "config file (YAML or JSON)")
	demoCmd.Flags().StringVarP(&demoBarsPath, "bars", "b", "", "bar history file (.csv, .csv.xz or .zip)")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if demoConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(demoConfigPath)
		if err != nil {
			return err
		}
	}

	sec := market.Security{Market: "SH", Code: "600001"}
	quotes := market.NewMemoryQuotes()
	day0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if demoBarsPath != "" {
		n, err := importBars(quotes, sec, demoBarsPath)
		if err != nil {
			return err
		}
		log.Info().Int("bars", n).Str("path", demoBarsPath).Msg("imported bar history")
	} else {
		for i, close := range []float64{10.00, 10.40, 10.10, 10.80, 11.20} {
			d := day0.AddDate(0, 0, i)
			quotes.AddBars(sec, market.KDay, market.Bar{Date: d, Open: close, High: close, Low: close, Close: close})
		}
	}

	acct := account.NewLedger(cfg.Account.Name, day0, cfg.Account.InitialCash, cfg.Cost.Build(), quotes)
	acct.SetPrecision(cfg.Account.Precision)
	acct.SetParam(account.ParamReinvest, cfg.Account.Reinvest)
	acct.SetParam(account.ParamBorrowCash, cfg.Account.BorrowCash)

	sink := brokers.NewCollectBroker()
	acct.RegisterBroker(brokers.NewLogBroker(log))
	acct.RegisterBroker(sink)

	if _, err := acct.Buy(day0, sec, 10.00, 1000, 9.50, 11.00, 10.00, account.SourceSignal); err != nil {
		return err
	}
	if _, err := acct.Buy(day0.AddDate(0, 0, 1), sec, 10.40, 500, 9.80, 11.20, 10.40, account.SourceSignal); err != nil {
		return err
	}
	if _, err := acct.Sell(day0.AddDate(0, 0, 4), sec, 11.20, account.QuantityAll, 0, 0, 11.20, account.SourceTakeProfit); err != nil {
		return err
	}

	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = day0.AddDate(0, 0, i)
	}
	funds, err := acct.FundsCurve(dates, market.KDay)
	if err != nil {
		return err
	}
	for i, d := range dates {
		fmt.Printf("%s  funds=%.2f\n", d.Format(time.DateOnly), funds[i])
	}
	fmt.Printf("final cash: %.2f, trades: %d, notified: %d\n",
		acct.CurrentCash(), len(acct.TradeList(time.Time{}, time.Time{})), len(sink.Trades()))

	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if err := j.Save(acct.State()); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		log.Info().Str("db", cfg.Journal.DBPath).Msg("account saved")
	}
	if cfg.Journal.ExportDir != "" {
		if err := journal.ExportCSV(acct, dates, market.KDay, cfg.Journal.ExportDir); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		log.Info().Str("dir", cfg.Journal.ExportDir).Msg("csv exported")
	}
	return nil
}

func importBars(q *market.MemoryQuotes, sec market.Security, path string) (int, error) {
	return data.Load(q, sec, market.KDay, path)
}
