package account

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/accountsim/cost"
	"github.com/rustyeddy/accountsim/market"
)

// flatCost charges a fixed fee per side, independent of size.
type flatCost struct {
	buyFee  float64
	sellFee float64
}

func (c flatCost) BuyCost(time.Time, market.Security, float64, float64) cost.Record {
	return cost.Record{Other: c.buyFee, Total: c.buyFee}
}

func (c flatCost) SellCost(time.Time, market.Security, float64, float64) cost.Record {
	return cost.Record{Other: c.sellFee, Total: c.sellFee}
}

func (c flatCost) Clone() cost.Model { return c }

func newTestLedger(t *testing.T, cm cost.Model) *Ledger {
	t.Helper()
	quotes := market.NewMemoryQuotes()
	for i := 0; i < 10; i++ {
		d := day(i)
		close := 10.0 + float64(i)*0.5
		quotes.AddBars(testSec, market.KDay, market.Bar{Date: d, Open: close, High: close, Low: close, Close: close})
	}
	return NewLedger("TEST", day(0), 100000, cm, quotes)
}

func TestLedgerBootstrap(t *testing.T) {
	l := newTestLedger(t, nil)

	assert.Equal(t, "TEST", l.Name())
	assert.Equal(t, 100000.0, l.InitCash())
	assert.Equal(t, 100000.0, l.CurrentCash())
	assert.Equal(t, day(0), l.InitTime())
	assert.Equal(t, day(0), l.LastTradeTime())
	assert.True(t, l.FirstTradeTime().IsZero())

	trades := l.TradeList(time.Time{}, time.Time{})
	require.Len(t, trades, 1)
	assert.Equal(t, BusinessInit, trades[0].Kind)
	assert.Equal(t, 100000.0, trades[0].Quantity)
	assert.Equal(t, 1.0, trades[0].RealPrice)
	assert.NotEmpty(t, trades[0].ID)
}

func TestBuySellRoundTrip(t *testing.T) {
	l := newTestLedger(t, flatCost{buyFee: 5, sellFee: 6})

	tr, err := l.Buy(day(0), testSec, 10.00, 100, 9.50, 12.00, 10.00, SourceSignal)
	require.NoError(t, err)
	assert.Equal(t, 98995.0, tr.CashAfter)
	assert.Equal(t, 98995.0, l.CurrentCash())
	assert.Equal(t, day(0), l.FirstTradeTime())
	assert.True(t, l.Have(testSec))
	assert.Equal(t, 1, l.SecurityCount())

	pos, ok := l.Position(testSec)
	require.True(t, ok)
	assert.Equal(t, 100.0, pos.Quantity)
	assert.Equal(t, 9.50, pos.StopLoss)

	tr, err = l.Sell(day(2), testSec, 12.00, 100, 0, 0, 12.00, SourceTakeProfit)
	require.NoError(t, err)
	assert.Equal(t, 100189.0, tr.CashAfter)
	assert.Equal(t, 100189.0, l.CurrentCash())

	_, ok = l.Position(testSec)
	assert.False(t, ok)
	assert.False(t, l.Have(testSec))
	assert.Empty(t, l.PositionList())

	hist := l.HistoryPositionList()
	require.Len(t, hist, 1)
	assert.Equal(t, day(2), hist[0].ClosedAt)
	assert.Equal(t, 1200.0, hist[0].SellMoney)
}

func TestBuyInsufficientCash(t *testing.T) {
	l := newTestLedger(t, nil)
	before := l.State()

	_, err := l.Buy(day(0), testSec, 1000, 200, 0, 0, 1000, SourceSignal)
	require.ErrorIs(t, err, ErrInsufficientCash)
	assert.Equal(t, before, l.State())
}

func TestBuyBorrowsCashWhenEnabled(t *testing.T) {
	l := newTestLedger(t, nil)
	require.NoError(t, l.SetParam(ParamBorrowCash, true))

	tr, err := l.Buy(day(0), testSec, 1000, 200, 0, 0, 1000, SourceSignal)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.CashAfter)
	assert.Equal(t, 0.0, l.CurrentCash())

	st := l.State()
	assert.Equal(t, 100000.0, st.BorrowedCash)

	trades := l.TradeList(time.Time{}, time.Time{})
	require.Len(t, trades, 3)
	assert.Equal(t, BusinessBorrowCash, trades[1].Kind)
	assert.Equal(t, 100000.0, trades[1].Quantity)
	assert.Equal(t, BusinessBuy, trades[2].Kind)
}

func TestSellWithoutPosition(t *testing.T) {
	l := newTestLedger(t, nil)

	_, err := l.Sell(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.ErrorIs(t, err, ErrNoPosition)
}

func TestSellTooMuchLeavesStateUntouched(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	before := l.State()

	_, err = l.Sell(day(1), testSec, 11, 500, 0, 0, 11, SourceSignal)
	require.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.Equal(t, before, l.State())
}

func TestSellAllSentinel(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	_, err = l.Buy(day(1), testSec, 10.5, 50, 0, 0, 10.5, SourceSignal)
	require.NoError(t, err)

	tr, err := l.Sell(day(2), testSec, 11, QuantityAll, 0, 0, 11, SourceSignal)
	require.NoError(t, err)
	assert.Equal(t, 150.0, tr.Quantity)
	assert.False(t, l.Have(testSec))
}

func TestOutOfOrderTradeRejected(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Buy(day(2), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)

	_, err = l.Buy(day(1), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.ErrorIs(t, err, ErrOutOfOrderTime)

	// Same-instant activity is allowed.
	_, err = l.Buy(day(2), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
}

func TestCheckinCheckout(t *testing.T) {
	l := newTestLedger(t, nil)

	tr, err := l.Checkin(day(1), 5000)
	require.NoError(t, err)
	assert.Equal(t, BusinessCheckin, tr.Kind)
	assert.Equal(t, 105000.0, l.CurrentCash())

	tr, err = l.Checkout(day(2), 30000)
	require.NoError(t, err)
	assert.Equal(t, BusinessCheckout, tr.Kind)
	assert.Equal(t, 75000.0, l.CurrentCash())

	_, err = l.Checkout(day(3), 80000)
	require.ErrorIs(t, err, ErrInsufficientCash)

	_, err = l.Checkin(day(3), -5)
	require.Error(t, err)
}

func TestCashConservation(t *testing.T) {
	l := newTestLedger(t, flatCost{buyFee: 5, sellFee: 6})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		at := day(0).Add(time.Duration(i) * time.Hour)
		price := float64(rng.Intn(2000)+100) / 100
		qty := float64(rng.Intn(50) + 1)

		switch rng.Intn(4) {
		case 0:
			l.Buy(at, testSec, price, qty, 0, 0, price, SourceSignal)
		case 1:
			l.Sell(at, testSec, price, qty, 0, 0, price, SourceSignal)
		case 2:
			l.Checkin(at, float64(rng.Intn(5000)+1))
		case 3:
			l.Checkout(at, float64(rng.Intn(5000)+1))
		}
	}

	// Replaying the trade list with the ledger's own rounding must land on
	// the ledger's cash.
	cash := 0.0
	for _, tr := range l.TradeList(time.Time{}, time.Time{}) {
		switch tr.Kind {
		case BusinessInit, BusinessCheckin:
			cash = roundTo(cash+tr.Quantity, 2)
		case BusinessCheckout:
			cash = roundTo(cash-tr.Quantity, 2)
		case BusinessBuy:
			cash = roundTo(cash-(roundTo(tr.RealPrice*tr.Quantity, 2)+tr.Cost.Total), 2)
		case BusinessSell:
			cash = roundTo(cash+(tr.RealPrice*tr.Quantity-tr.Cost.Total), 2)
		}
		assert.InDelta(t, tr.CashAfter, cash, 1e-6)
	}
	assert.InDelta(t, l.CurrentCash(), cash, 1e-6)
}

func TestCloneIndependence(t *testing.T) {
	l := newTestLedger(t, flatCost{buyFee: 5, sellFee: 6})
	_, err := l.Buy(day(0), testSec, 10, 100, 9, 0, 10, SourceSignal)
	require.NoError(t, err)

	clone := l.Clone()
	snap := clone.(*Ledger).State()

	_, err = l.Buy(day(1), testSec, 10.5, 50, 0, 0, 10.5, SourceSignal)
	require.NoError(t, err)
	_, err = l.Checkout(day(2), 1000)
	require.NoError(t, err)

	assert.Equal(t, snap, clone.(*Ledger).State())

	// The clone trades on its own timeline.
	_, err = clone.Sell(day(3), testSec, 12, QuantityAll, 0, 0, 12, SourceSignal)
	require.NoError(t, err)
	assert.True(t, l.Have(testSec))
	assert.False(t, clone.Have(testSec))
}

func TestResetKeepsParams(t *testing.T) {
	l := newTestLedger(t, nil)
	require.NoError(t, l.SetParam(ParamReinvest, true))
	_, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	_, err = l.Checkin(day(1), 500)
	require.NoError(t, err)

	l.Reset()

	assert.Equal(t, 100000.0, l.CurrentCash())
	assert.Empty(t, l.PositionList())
	assert.Empty(t, l.HistoryPositionList())
	assert.Len(t, l.TradeList(time.Time{}, time.Time{}), 1)

	v, err := l.Param(ParamReinvest)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

type recordingBroker struct {
	notified []TradeRecord
	err      error
}

func (b *recordingBroker) OrderNotify(tr TradeRecord) error {
	b.notified = append(b.notified, tr)
	return b.err
}

func TestBrokerActivationGate(t *testing.T) {
	l := newTestLedger(t, nil)
	b := &recordingBroker{}
	l.RegisterBroker(b)
	l.SetBrokerActivation(day(2))

	_, err := l.Buy(day(1), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	assert.Empty(t, b.notified)

	_, err = l.Sell(day(3), testSec, 11, 50, 0, 0, 11, SourceSignal)
	require.NoError(t, err)
	require.Len(t, b.notified, 1)
	assert.Equal(t, BusinessSell, b.notified[0].Kind)
}

func TestBrokerErrorIsPostCommit(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RegisterBroker(&recordingBroker{err: errors.New("wire down")})

	tr, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.ErrorIs(t, err, ErrBrokerNotify)

	// The trade stands regardless.
	assert.Equal(t, 99000.0, tr.CashAfter)
	assert.Equal(t, 99000.0, l.CurrentCash())
	assert.True(t, l.Have(testSec))
}

func TestClearBrokers(t *testing.T) {
	l := newTestLedger(t, nil)
	b := &recordingBroker{}
	l.RegisterBroker(b)
	l.ClearBrokers()

	_, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	assert.Empty(t, b.notified)
}

func TestUpdateWithWeightGiftAndBonus(t *testing.T) {
	l := newTestLedger(t, nil)
	quotes := l.quotes.(*market.MemoryQuotes)
	quotes.AddWeights(testSec,
		market.Weight{Date: day(2), GiftPer10: 2, BonusPer10: 5},
	)

	_, err := l.Buy(day(0), testSec, 10, 1000, 0, 0, 10, SourceSignal)
	require.NoError(t, err)

	require.NoError(t, l.UpdateWithWeight(day(3)))

	pos, ok := l.Position(testSec)
	require.True(t, ok)
	// 1000 held: gift 2 per 10 adds 200 shares, bonus 5 per 10 pays 500.
	assert.InDelta(t, 1200.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 90500.0, l.CurrentCash(), 1e-9)

	kinds := make(map[BusinessKind]int)
	for _, tr := range l.TradeList(time.Time{}, time.Time{}) {
		kinds[tr.Kind]++
	}
	assert.Equal(t, 1, kinds[BusinessGift])
	assert.Equal(t, 1, kinds[BusinessBonus])

	// Replaying the same window is a no-op.
	require.NoError(t, l.UpdateWithWeight(day(3)))
	pos, _ = l.Position(testSec)
	assert.InDelta(t, 1200.0, pos.Quantity, 1e-9)

	require.ErrorIs(t, l.UpdateWithWeight(day(1)), ErrOutOfOrderTime)
}

func TestUpdateWithWeightReinvest(t *testing.T) {
	l := newTestLedger(t, nil)
	require.NoError(t, l.SetParam(ParamReinvest, true))
	quotes := l.quotes.(*market.MemoryQuotes)
	quotes.AddWeights(testSec, market.Weight{Date: day(2), BonusPer10: 5})

	_, err := l.Buy(day(0), testSec, 10, 1000, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	require.NoError(t, l.UpdateWithWeight(day(3)))

	// Bonus 500 reinvested at day(2)'s close of 11.0 buys 45 shares,
	// leaving 5 in cash.
	pos, ok := l.Position(testSec)
	require.True(t, ok)
	assert.InDelta(t, 1045.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 90005.0, l.CurrentCash(), 1e-9)
}

func TestUpdateWithWeightIgnoresPreOpenWeights(t *testing.T) {
	l := newTestLedger(t, nil)
	quotes := l.quotes.(*market.MemoryQuotes)
	quotes.AddWeights(testSec, market.Weight{Date: day(2), GiftPer10: 2, BonusPer10: 5})

	// The position opens three days after the ex-date; the action never
	// accrued to it.
	_, err := l.Buy(day(5), testSec, 10, 1000, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	require.NoError(t, l.UpdateWithWeight(day(6)))

	pos, ok := l.Position(testSec)
	require.True(t, ok)
	assert.InDelta(t, 1000.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 90000.0, l.CurrentCash(), 1e-9)

	for _, tr := range l.TradeList(time.Time{}, time.Time{}) {
		assert.NotEqual(t, BusinessGift, tr.Kind)
		assert.NotEqual(t, BusinessBonus, tr.Kind)
	}
}

func TestUpdateWithWeightSettlesPositions(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Buy(day(0), testSec, 10, 100, 0, 0, 10, SourceSignal)
	require.NoError(t, err)

	require.NoError(t, l.UpdateWithWeight(day(2)))

	// Day 1 closes at 10.5 on a 100-share lot bought at 10.
	pos, ok := l.Position(testSec)
	require.True(t, ok)
	assert.Equal(t, day(1), pos.LastSettleTime)
	assert.InDelta(t, 10.5, pos.LastSettleClose, 1e-9)
	assert.InDelta(t, 50.0, pos.LastSettleProfit, 1e-9)

	// The next day rolls the watermark and books only the increment.
	require.NoError(t, l.UpdateWithWeight(day(3)))
	pos, _ = l.Position(testSec)
	assert.Equal(t, day(2), pos.LastSettleTime)
	assert.InDelta(t, 100.0, pos.LastSettleProfit, 1e-9)
	assert.InDelta(t, 50.0, pos.LastSettleDelta, 1e-9)
}

func TestUpdateWithWeightAtomicOnLookupFailure(t *testing.T) {
	l := newTestLedger(t, nil)
	require.NoError(t, l.SetParam(ParamReinvest, true))
	quotes := l.quotes.(*market.MemoryQuotes)
	other := market.Security{Market: "SZ", Code: "000001"}
	quotes.AddWeights(testSec, market.Weight{Date: day(2), GiftPer10: 2})
	quotes.AddWeights(other, market.Weight{Date: day(2), BonusPer10: 5})

	_, err := l.Buy(day(0), testSec, 10, 1000, 0, 0, 10, SourceSignal)
	require.NoError(t, err)
	_, err = l.Buy(day(0), other, 5, 1000, 0, 0, 5, SourceSignal)
	require.NoError(t, err)
	cashBefore := l.CurrentCash()

	// The second position has no price history, so its reinvest price
	// lookup fails. Nothing may be applied, including the first
	// position's gift.
	err = l.UpdateWithWeight(day(3))
	require.ErrorIs(t, err, market.ErrDateNotFound)

	pos, _ := l.Position(testSec)
	assert.InDelta(t, 1000.0, pos.Quantity, 1e-9)
	assert.Equal(t, cashBefore, l.CurrentCash())

	// Once the missing history arrives, the same window applies exactly
	// once.
	quotes.AddBars(other, market.KDay, market.Bar{Date: day(2), Close: 5})
	require.NoError(t, l.UpdateWithWeight(day(3)))

	pos, _ = l.Position(testSec)
	assert.InDelta(t, 1200.0, pos.Quantity, 1e-9)

	// Bonus 500 reinvested at 5 buys 100 shares; cash nets to zero change.
	otherPos, _ := l.Position(other)
	assert.InDelta(t, 1100.0, otherPos.Quantity, 1e-9)
	assert.Equal(t, cashBefore, l.CurrentCash())
}

func TestSetPrecision(t *testing.T) {
	l := newTestLedger(t, nil)

	require.NoError(t, l.SetParam(ParamPrecision, 0))
	assert.Equal(t, 0, l.Precision())

	_, err := l.Buy(day(0), testSec, 10.004, 100, 0, 0, 10.004, SourceSignal)
	require.NoError(t, err)
	assert.Equal(t, 100000.0-1000.0, l.CurrentCash())
}

func TestTradeListBounds(t *testing.T) {
	l := newTestLedger(t, nil)
	for i := 1; i <= 3; i++ {
		_, err := l.Checkin(day(i), 100)
		require.NoError(t, err)
	}

	all := l.TradeList(time.Time{}, time.Time{})
	assert.Len(t, all, 4)

	mid := l.TradeList(day(1), day(3))
	require.Len(t, mid, 2)
	assert.Equal(t, day(1), mid[0].Time)
	assert.Equal(t, day(2), mid[1].Time)
}

func TestBusinessKindString(t *testing.T) {
	for _, k := range []BusinessKind{
		BusinessInit, BusinessBuy, BusinessSell, BusinessGift, BusinessBonus,
		BusinessCheckin, BusinessCheckout, BusinessBorrowCash, BusinessReturnCash,
	} {
		assert.NotEqual(t, "INVALID", k.String(), fmt.Sprintf("kind %d", k))
	}
	assert.Equal(t, "INVALID", BusinessInvalid.String())
}
