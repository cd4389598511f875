package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/accountsim/account"
	"github.com/rustyeddy/accountsim/market"
)

// ExportCSV dumps the four ledger lists to dir: trades.csv, positions.csv
// (open), history.csv (closed) and, when dates is non-empty, funds.csv (the
// equity curve sampled at dates).
func ExportCSV(acct account.Account, dates []time.Time, ktype market.KType, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := writeTradesCSV(filepath.Join(dir, "trades.csv"), acct.TradeList(time.Time{}, time.Time{})); err != nil {
		return err
	}
	if err := writePositionsCSV(filepath.Join(dir, "positions.csv"), acct.PositionList()); err != nil {
		return err
	}
	if err := writePositionsCSV(filepath.Join(dir, "history.csv"), acct.HistoryPositionList()); err != nil {
		return err
	}

	if len(dates) == 0 {
		return nil
	}
	funds, err := acct.FundsCurve(dates, ktype)
	if err != nil {
		return fmt.Errorf("funds curve: %w", err)
	}
	profit, err := acct.ProfitCurve(dates, ktype)
	if err != nil {
		return fmt.Errorf("profit curve: %w", err)
	}
	return writeFundsCSV(filepath.Join(dir, "funds.csv"), dates, funds, profit)
}

func writeTradesCSV(path string, trades []account.TradeRecord) error {
	w, file, err := newCSVFile(path, []string{
		"trade_id", "security", "time", "kind", "plan_price", "real_price",
		"goal_price", "quantity", "fee", "stop_loss", "cash_after", "source",
	})
	if err != nil {
		return err
	}
	defer file.Close()

	for _, tr := range trades {
		w.Write([]string{
			tr.ID,
			tr.Security.String(),
			stampField(tr.Time),
			tr.Kind.String(),
			f(tr.PlanPrice),
			f(tr.RealPrice),
			f(tr.GoalPrice),
			f(tr.Quantity),
			f(tr.Cost.Total),
			f(tr.StopLoss),
			f(tr.CashAfter),
			tr.Source.String(),
		})
	}
	w.Flush()
	return w.Error()
}

func writePositionsCSV(path string, positions []account.PositionRecord) error {
	w, file, err := newCSVFile(path, []string{
		"security", "opened_at", "closed_at", "quantity", "stop_loss", "goal_price",
		"total_quantity", "buy_money", "total_cost", "total_risk", "sell_money",
		"lots",
	})
	if err != nil {
		return err
	}
	defer file.Close()

	for _, p := range positions {
		w.Write([]string{
			p.Security.String(),
			stampField(p.OpenedAt),
			stampField(p.ClosedAt),
			f(p.Quantity),
			f(p.StopLoss),
			f(p.GoalPrice),
			f(p.TotalQuantity),
			f(p.BuyMoney),
			f(p.TotalCost),
			f(p.TotalRisk),
			f(p.SellMoney),
			strconv.Itoa(len(p.Contracts)),
		})
	}
	w.Flush()
	return w.Error()
}

func writeFundsCSV(path string, dates []time.Time, funds, profit []float64) error {
	w, file, err := newCSVFile(path, []string{"date", "funds", "profit"})
	if err != nil {
		return err
	}
	defer file.Close()

	for i, d := range dates {
		w.Write([]string{
			d.Format(time.DateOnly),
			f(funds[i]),
			f(profit[i]),
		})
	}
	w.Flush()
	return w.Error()
}

func newCSVFile(path string, header []string) (*csv.Writer, *os.File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		file.Close()
		return nil, nil, err
	}
	return w, file, nil
}

// stampField formats a timestamp. Unset times become the empty field, so
// every populated value in a timestamp column parses as RFC3339.
func stampField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
