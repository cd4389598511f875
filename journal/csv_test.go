package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/accountsim/account"
	"github.com/rustyeddy/accountsim/market"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportCSV(t *testing.T) {
	quotes := market.NewMemoryQuotes()
	for i := 0; i < 5; i++ {
		quotes.AddBars(testSec, market.KDay, market.Bar{Date: day(i), Close: 10.0 + float64(i)})
	}

	l := account.NewLedger("EXPORT", day(0), 50000, nil, quotes)
	_, err := l.Buy(day(0), testSec, 10, 100, 9, 0, 10, account.SourceSignal)
	require.NoError(t, err)
	_, err = l.Buy(day(1), testSec, 11, 50, 0, 0, 11, account.SourceSignal)
	require.NoError(t, err)
	_, err = l.Sell(day(2), testSec, 12, 50, 0, 0, 12, account.SourceSignal)
	require.NoError(t, err)

	dir := t.TempDir()
	dates := []time.Time{day(0), day(1), day(2), day(3)}
	require.NoError(t, ExportCSV(l, dates, market.KDay, dir))

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 5) // header + init + 2 buys + sell
	assert.Equal(t, "trade_id", trades[0][0])
	assert.Equal(t, "INIT", trades[1][3])
	assert.Equal(t, "BUY", trades[2][3])
	assert.Equal(t, "SELL", trades[4][3])
	assert.Equal(t, "SIGNAL", trades[2][11])

	positions := readCSV(t, filepath.Join(dir, "positions.csv"))
	require.Len(t, positions, 2)
	assert.Equal(t, "SH600001", positions[1][0])
	// Open position: closed_at is the empty field, opened_at parses.
	assert.Equal(t, "", positions[1][2])
	_, err = time.Parse(time.RFC3339, positions[1][1])
	require.NoError(t, err)
	assert.Equal(t, "2", positions[1][11]) // two open lots

	history := readCSV(t, filepath.Join(dir, "history.csv"))
	require.Len(t, history, 1) // header only, position still open

	funds := readCSV(t, filepath.Join(dir, "funds.csv"))
	require.Len(t, funds, 5)
	assert.Equal(t, []string{"date", "funds", "profit"}, funds[0])
	assert.Equal(t, day(0).Format(time.DateOnly), funds[1][0])
}

func TestExportCSVSkipsFundsWithoutDates(t *testing.T) {
	quotes := market.NewMemoryQuotes()
	l := account.NewLedger("EXPORT", day(0), 50000, nil, quotes)

	dir := t.TempDir()
	require.NoError(t, ExportCSV(l, nil, market.KDay, dir))

	_, err := os.Stat(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "funds.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
