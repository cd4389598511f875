// Package brokers provides order-broker sinks for the account ledger.
// Sinks receive a copy of each confirmed trade at or after the ledger's
// broker activation time.
package brokers

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/accountsim/account"
)

// LogBroker writes each confirmed trade to a structured log. Useful as a
// live-signal tap during backtest replay.
type LogBroker struct {
	log zerolog.Logger
}

func NewLogBroker(log zerolog.Logger) *LogBroker {
	return &LogBroker{log: log}
}

func (b *LogBroker) OrderNotify(tr account.TradeRecord) error {
	b.log.Info().
		Str("trade_id", tr.ID).
		Str("security", tr.Security.String()).
		Str("kind", tr.Kind.String()).
		Time("time", tr.Time).
		Float64("price", tr.RealPrice).
		Float64("quantity", tr.Quantity).
		Float64("fee", tr.Cost.Total).
		Float64("cash_after", tr.CashAfter).
		Msg("order")
	return nil
}

// CollectBroker captures notified trades in memory. Used by tests and the
// demo command.
type CollectBroker struct {
	mu     sync.Mutex
	trades []account.TradeRecord
}

func NewCollectBroker() *CollectBroker { return &CollectBroker{} }

func (b *CollectBroker) OrderNotify(tr account.TradeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trades = append(b.trades, tr)
	return nil
}

// Trades returns a copy of everything captured so far.
func (b *CollectBroker) Trades() []account.TradeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]account.TradeRecord(nil), b.trades...)
}
