package account

import (
	"fmt"
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// quantityEpsilon absorbs float drift when matching lots against sells.
const quantityEpsilon = 1e-9

// PositionRecord aggregates the open lots of one security into a single
// position and owns lot matching and daily settlement for it.
type PositionRecord struct {
	Security  market.Security
	OpenedAt  time.Time
	ClosedAt  time.Time // zero while the position is open
	Quantity  float64   // current held quantity, always sum of Contracts
	StopLoss  float64   // latest risk-management intent
	GoalPrice float64

	TotalQuantity float64 // cumulative bought quantity
	BuyMoney      float64 // cumulative buy capital, fee-exclusive
	TotalCost     float64 // cumulative fees
	TotalRisk     float64 // sum of open-lot (entry-stop)*qty contributions
	SellMoney     float64 // cumulative sell proceeds, fee-exclusive

	LastSettleTime   time.Time
	LastSettleProfit float64
	LastSettleClose  float64
	LastSettleDelta  float64 // profit returned for the current watermark day

	Contracts []ContractRecord // insertion order is FIFO order
}

func newPosition(sec market.Security) *PositionRecord {
	return &PositionRecord{Security: sec}
}

// Open reports whether the position still holds shares.
func (p *PositionRecord) Open() bool {
	return p.ClosedAt.IsZero() && p.Quantity > 0
}

// addTrade applies one executed buy or sell to the position and returns the
// capital to release back to cash on a sell (proceeds minus fee).
func (p *PositionRecord) addTrade(tr TradeRecord) (float64, error) {
	switch tr.Kind {
	case BusinessBuy:
		return 0, p.applyBuy(tr)
	case BusinessSell:
		return p.applySell(tr)
	default:
		return 0, fmt.Errorf("position %s: cannot apply %s trade", p.Security, tr.Kind)
	}
}

func (p *PositionRecord) applyBuy(tr TradeRecord) error {
	if p.OpenedAt.IsZero() {
		p.OpenedAt = tr.Time
	}
	lot := ContractRecord{
		Quantity:  tr.Quantity,
		Price:     tr.RealPrice,
		StopLoss:  tr.StopLoss,
		GoalPrice: tr.GoalPrice,
		Cost:      tr.Cost.Total,
	}
	p.Contracts = append(p.Contracts, lot)

	p.Quantity += tr.Quantity
	p.TotalQuantity += tr.Quantity
	p.BuyMoney += tr.RealPrice * tr.Quantity
	p.TotalCost += tr.Cost.Total
	p.TotalRisk += lot.Risk()
	p.StopLoss = tr.StopLoss
	p.GoalPrice = tr.GoalPrice
	return nil
}

// applySell consumes open lots in FIFO order. A partially consumed lot keeps
// its entry price and stop; its risk contribution shrinks in straight
// proportion to the quantity removed.
func (p *PositionRecord) applySell(tr TradeRecord) (float64, error) {
	if tr.Quantity > p.Quantity+quantityEpsilon {
		return 0, fmt.Errorf("sell %v of %s, hold %v: %w",
			tr.Quantity, p.Security, p.Quantity, ErrInsufficientQuantity)
	}

	remaining := tr.Quantity
	for remaining > quantityEpsilon && len(p.Contracts) > 0 {
		lot := &p.Contracts[0]
		if lot.Quantity <= remaining+quantityEpsilon {
			p.TotalRisk -= lot.Risk()
			remaining -= lot.Quantity
			p.Contracts = p.Contracts[1:]
			continue
		}
		before := lot.Risk()
		lot.Quantity -= remaining
		p.TotalRisk -= before - lot.Risk()
		remaining = 0
	}

	p.SellMoney += tr.RealPrice * tr.Quantity
	p.TotalCost += tr.Cost.Total
	p.StopLoss = tr.StopLoss
	p.GoalPrice = tr.GoalPrice

	// Re-derive from the lots so quantity never drifts from their sum.
	p.Quantity = 0
	for _, lot := range p.Contracts {
		p.Quantity += lot.Quantity
	}
	if len(p.Contracts) == 0 {
		p.Quantity = 0
		p.TotalRisk = 0
		p.ClosedAt = tr.Time
		p.StopLoss = 0
		p.GoalPrice = 0
	}

	released := tr.RealPrice*tr.Quantity - tr.Cost.Total
	return released, nil
}

// SettleProfitBefore settles the position against the close of the most
// recent trading day strictly before date and returns the incremental profit
// for that settlement window.
//
// Repeating the call for the same date (with no trades in between) returns
// the same delta and leaves the watermark untouched. A date whose settlement
// day precedes the watermark fails with ErrAlreadySettled.
func (p *PositionRecord) SettleProfitBefore(date time.Time, quotes market.QuoteSource, ktype market.KType) (float64, error) {
	day, close, err := quotes.LastClose(p.Security, date.Add(-time.Nanosecond), ktype)
	if err != nil {
		return 0, fmt.Errorf("settle %s: %w", p.Security, err)
	}
	if !p.LastSettleTime.IsZero() {
		if day.Before(p.LastSettleTime) {
			return 0, fmt.Errorf("settle %s for %s, watermark %s: %w",
				p.Security, day.Format(time.DateOnly),
				p.LastSettleTime.Format(time.DateOnly), ErrAlreadySettled)
		}
		if day.Equal(p.LastSettleTime) {
			return p.LastSettleDelta, nil
		}
	}

	total := p.Quantity*close - (p.BuyMoney - p.SellMoney)
	delta := total - p.LastSettleProfit

	p.LastSettleTime = day
	p.LastSettleClose = close
	p.LastSettleProfit = total
	p.LastSettleDelta = delta
	return delta, nil
}

// scaleQuantity multiplies the held quantity by factor, spreading the new
// shares across the open lots so FIFO order is preserved. Used for bonus
// share corporate actions.
func (p *PositionRecord) scaleQuantity(factor float64) {
	if factor <= 0 || len(p.Contracts) == 0 {
		return
	}
	p.Quantity = 0
	for i := range p.Contracts {
		p.Contracts[i].Quantity *= factor
		p.Quantity += p.Contracts[i].Quantity
	}
}

// clone returns an independent deep copy.
func (p *PositionRecord) clone() *PositionRecord {
	cp := *p
	cp.Contracts = append([]ContractRecord(nil), p.Contracts...)
	return &cp
}

// snapshot returns a by-value copy safe to hand to callers.
func (p *PositionRecord) snapshot() PositionRecord {
	return *p.clone()
}
