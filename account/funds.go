package account

import (
	"fmt"
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// FundsRecord is the account's asset valuation at one point in time.
// ShortMarketValue, BaseAsset and BorrowAsset are reserved for short-selling
// mechanics and stay zero in the current ledger.
type FundsRecord struct {
	Cash             float64
	MarketValue      float64
	ShortMarketValue float64
	BaseCash         float64 // net deposits: initial cash + checkins - checkouts
	BaseAsset        float64
	BorrowCash       float64
	BorrowAsset      float64
}

// Total is the net asset value.
func (f FundsRecord) Total() float64 {
	return f.Cash + f.MarketValue - f.ShortMarketValue - f.BorrowCash - f.BorrowAsset
}

// Profit is net assets minus net deposits.
func (f FundsRecord) Profit() float64 {
	return f.Total() - f.BaseCash - f.BaseAsset
}

// replayer walks the trade history in time order, reconstructing cash and
// per-security holdings as of a moving cutoff. Curve generation advances one
// replayer across the whole date series in a single pass.
type replayer struct {
	trades []TradeRecord
	idx    int

	cash       float64
	baseCash   float64
	borrowCash float64
	holdings   map[string]float64
	secs       map[string]market.Security
}

func newReplayer(trades []TradeRecord) *replayer {
	return &replayer{
		trades:   trades,
		holdings: make(map[string]float64),
		secs:     make(map[string]market.Security),
	}
}

// advance applies all trades with Time <= through.
func (r *replayer) advance(through time.Time) {
	for r.idx < len(r.trades) && !r.trades[r.idx].Time.After(through) {
		r.apply(r.trades[r.idx])
		r.idx++
	}
}

func (r *replayer) apply(tr TradeRecord) {
	switch tr.Kind {
	case BusinessInit:
		r.baseCash += tr.Quantity
	case BusinessCheckin:
		r.baseCash += tr.Quantity
	case BusinessCheckout:
		r.baseCash -= tr.Quantity
	case BusinessBorrowCash:
		r.borrowCash += tr.Quantity
	case BusinessReturnCash:
		r.borrowCash -= tr.Quantity
	case BusinessBuy, BusinessGift:
		key := tr.Security.String()
		r.holdings[key] += tr.Quantity
		r.secs[key] = tr.Security
	case BusinessSell:
		key := tr.Security.String()
		r.holdings[key] -= tr.Quantity
		if r.holdings[key] <= quantityEpsilon {
			delete(r.holdings, key)
			delete(r.secs, key)
		}
	}
	r.cash = tr.CashAfter
}

// funds marks the replayed holdings to the latest close at or before the
// cutoff and returns the valuation.
func (r *replayer) funds(at time.Time, ktype market.KType, quotes market.QuoteSource) (FundsRecord, error) {
	f := FundsRecord{
		Cash:       r.cash,
		BaseCash:   r.baseCash,
		BorrowCash: r.borrowCash,
	}
	for key, qty := range r.holdings {
		_, close, err := quotes.LastClose(r.secs[key], at, ktype)
		if err != nil {
			return FundsRecord{}, fmt.Errorf("mark %s: %w", key, err)
		}
		f.MarketValue += qty * close
	}
	return f, nil
}

// Funds values the account as of at: replayed cash plus every holding marked
// to its latest close at or before at.
func (l *Ledger) Funds(at time.Time, ktype market.KType) (FundsRecord, error) {
	r := newReplayer(l.trades)
	r.advance(at)
	return r.funds(at, ktype, l.quotes)
}

// FundsCurve returns the net-asset value at each date. Dates must be
// non-decreasing and match the ktype granularity; the whole series is
// produced by one incremental replay.
func (l *Ledger) FundsCurve(dates []time.Time, ktype market.KType) ([]float64, error) {
	return l.curve(dates, ktype, FundsRecord.Total)
}

// ProfitCurve is FundsCurve minus cumulative net deposits at each date.
func (l *Ledger) ProfitCurve(dates []time.Time, ktype market.KType) ([]float64, error) {
	return l.curve(dates, ktype, FundsRecord.Profit)
}

func (l *Ledger) curve(dates []time.Time, ktype market.KType, value func(FundsRecord) float64) ([]float64, error) {
	for i := 1; i < len(dates); i++ {
		if dates[i].Before(dates[i-1]) {
			return nil, fmt.Errorf("curve dates must be non-decreasing (index %d)", i)
		}
	}

	r := newReplayer(l.trades)
	out := make([]float64, len(dates))
	for i, d := range dates {
		r.advance(d)
		f, err := r.funds(d, ktype, l.quotes)
		if err != nil {
			return nil, err
		}
		out[i] = l.round(value(f))
	}
	return out, nil
}

// HoldQuantity returns the quantity of sec held as of at, reconstructed from
// the trade history.
func (l *Ledger) HoldQuantity(at time.Time, sec market.Security) float64 {
	r := newReplayer(l.trades)
	r.advance(at)
	return r.holdings[sec.String()]
}
