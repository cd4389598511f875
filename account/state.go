package account

import (
	"fmt"
	"time"

	"github.com/rustyeddy/accountsim/cost"
	"github.com/rustyeddy/accountsim/market"
)

// LedgerState is a deep snapshot of everything a ledger owns. It is the unit
// of persistence: the journal package encodes it, FromState rebuilds a live
// ledger from it.
type LedgerState struct {
	Name             string
	InitCash         float64
	CurrentCash      float64
	Precision        int
	InitTime         time.Time
	LastTime         time.Time
	LastWeightTime   time.Time
	BrokerActivation time.Time
	BorrowedCash     float64

	Trades    []TradeRecord
	Positions []PositionRecord // open
	History   []PositionRecord // closed
	Params    map[string]any
}

// State snapshots the ledger. The result shares nothing with the live
// ledger.
func (l *Ledger) State() LedgerState {
	st := LedgerState{
		Name:             l.name,
		InitCash:         l.initCash,
		CurrentCash:      l.cash,
		Precision:        l.precision,
		InitTime:         l.initTime,
		LastTime:         l.lastTime,
		LastWeightTime:   l.lastWeight,
		BrokerActivation: l.brokerActivation,
		BorrowedCash:     l.borrowedCash,
		Trades:           append([]TradeRecord(nil), l.trades...),
		Positions:        l.PositionList(),
		History:          l.HistoryPositionList(),
		Params:           l.params.asMap(),
	}
	return st
}

// FromState rebuilds a live ledger from a snapshot. The cost model and quote
// source are runtime collaborators and must be supplied by the caller.
func FromState(st LedgerState, cm cost.Model, quotes market.QuoteSource) (*Ledger, error) {
	if st.InitTime.IsZero() {
		return nil, fmt.Errorf("restore ledger %q: missing init time", st.Name)
	}
	if cm == nil {
		cm = cost.NewZero()
	}

	l := &Ledger{
		name:             st.Name,
		initCash:         st.InitCash,
		cash:             st.CurrentCash,
		precision:        st.Precision,
		initTime:         st.InitTime,
		lastTime:         st.LastTime,
		lastWeight:       st.LastWeightTime,
		brokerActivation: st.BrokerActivation,
		borrowedCash:     st.BorrowedCash,
		costModel:        cm,
		quotes:           quotes,
		positions:        make(map[string]*PositionRecord, len(st.Positions)),
		history:          make([]PositionRecord, len(st.History)),
		trades:           append([]TradeRecord(nil), st.Trades...),
		params:           newParams(),
	}
	for i := range st.Positions {
		p := st.Positions[i]
		l.positions[p.Security.String()] = p.clone()
	}
	for i := range st.History {
		l.history[i] = *st.History[i].clone()
	}
	for k, v := range st.Params {
		if err := l.params.Set(k, v); err != nil {
			return nil, fmt.Errorf("restore ledger %q: %w", st.Name, err)
		}
	}
	if !l.params.Have(ParamPrecision) {
		l.params.Set(ParamPrecision, l.precision)
	}
	return l, nil
}
