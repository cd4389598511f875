// Package account implements a simulated brokerage account ledger for
// strategy backtesting: cash, FIFO lot positions, a full trade history,
// daily settlement and equity/profit curves.
//
// A single ledger expects calls from one logical timeline; callers serialize
// mutations. Parallel what-if runs clone the ledger instead of sharing it.
package account

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/accountsim/cost"
	"github.com/rustyeddy/accountsim/internal/id"
	"github.com/rustyeddy/accountsim/market"
)

// QuantityAll is the sell-quantity sentinel meaning "the entire open
// position".
const QuantityAll = math.MaxFloat64

// Stock parameter names understood by the ledger.
const (
	ParamPrecision  = "precision"
	ParamReinvest   = "reinvest"
	ParamBorrowCash = "support_borrow_cash"
)

// OrderBroker receives a copy of each confirmed trade at or after the
// ledger's broker activation time.
type OrderBroker interface {
	OrderNotify(tr TradeRecord) error
}

// Account is the capability surface a backtest driver programs against.
// Ledger is the default implementation; strategy-specific variants can wrap
// or replace it.
type Account interface {
	Name() string
	SetName(name string)
	InitCash() float64
	CurrentCash() float64
	InitTime() time.Time
	FirstTradeTime() time.Time
	LastTradeTime() time.Time
	Precision() int

	Have(sec market.Security) bool
	SecurityCount() int
	HoldQuantity(at time.Time, sec market.Security) float64
	Position(sec market.Security) (PositionRecord, bool)
	PositionList() []PositionRecord
	HistoryPositionList() []PositionRecord
	TradeList(start, end time.Time) []TradeRecord

	Buy(at time.Time, sec market.Security, price, quantity, stopLoss, goalPrice, planPrice float64, from TradeSource) (TradeRecord, error)
	Sell(at time.Time, sec market.Security, price, quantity, stopLoss, goalPrice, planPrice float64, from TradeSource) (TradeRecord, error)
	Checkin(at time.Time, amount float64) (TradeRecord, error)
	Checkout(at time.Time, amount float64) (TradeRecord, error)
	UpdateWithWeight(date time.Time) error

	Funds(at time.Time, ktype market.KType) (FundsRecord, error)
	FundsCurve(dates []time.Time, ktype market.KType) ([]float64, error)
	ProfitCurve(dates []time.Time, ktype market.KType) ([]float64, error)

	RegisterBroker(b OrderBroker)
	ClearBrokers()
	BrokerActivation() time.Time
	SetBrokerActivation(at time.Time)

	SetParam(name string, value any) error
	Param(name string) (any, error)
	HaveParam(name string) bool

	Reset()
	Clone() Account
}

// Ledger is the default Account implementation.
type Ledger struct {
	name      string
	initCash  float64
	cash      float64
	precision int

	initTime   time.Time
	lastTime   time.Time // last recorded activity
	lastWeight time.Time // UpdateWithWeight watermark

	costModel cost.Model
	quotes    market.QuoteSource

	positions map[string]*PositionRecord
	history   []PositionRecord
	trades    []TradeRecord

	brokers          []OrderBroker
	brokerActivation time.Time

	borrowedCash float64
	params       *Params
}

var _ Account = (*Ledger)(nil)

// NewLedger opens an account with an initial cash deposit at the given time.
// A nil cost model defaults to cost.Zero.
func NewLedger(name string, at time.Time, initCash float64, cm cost.Model, quotes market.QuoteSource) *Ledger {
	if cm == nil {
		cm = cost.NewZero()
	}
	l := &Ledger{
		name:      name,
		initCash:  roundTo(initCash, 2),
		precision: 2,
		initTime:  at,
		costModel: cm,
		quotes:    quotes,
		positions: make(map[string]*PositionRecord),
		params:    newParams(),
	}
	l.params.Set(ParamPrecision, l.precision)
	l.params.Set(ParamReinvest, false)
	l.params.Set(ParamBorrowCash, false)
	l.bootstrap()
	return l
}

// bootstrap seeds cash and the opening Init record.
func (l *Ledger) bootstrap() {
	l.cash = l.initCash
	l.lastTime = l.initTime
	l.lastWeight = time.Time{}
	l.borrowedCash = 0
	l.positions = make(map[string]*PositionRecord)
	l.history = nil
	l.trades = []TradeRecord{{
		ID:        id.New(),
		Time:      l.initTime,
		Kind:      BusinessInit,
		RealPrice: 1,
		Quantity:  l.initCash,
		CashAfter: l.cash,
		Source:    SourceInvalid,
	}}
}

func (l *Ledger) Name() string         { return l.name }
func (l *Ledger) SetName(name string)  { l.name = name }
func (l *Ledger) InitCash() float64    { return l.initCash }
func (l *Ledger) CurrentCash() float64 { return l.cash }
func (l *Ledger) InitTime() time.Time  { return l.initTime }
func (l *Ledger) Precision() int       { return l.precision }

// SetPrecision sets the cash rounding precision in decimal places.
func (l *Ledger) SetPrecision(n int) {
	if n < 0 {
		n = 0
	}
	l.precision = n
	l.params.Set(ParamPrecision, n)
}

// CostModel returns the transaction-cost policy in use.
func (l *Ledger) CostModel() cost.Model { return l.costModel }

// SetCostModel swaps the transaction-cost policy. It affects future trades
// only.
func (l *Ledger) SetCostModel(cm cost.Model) {
	if cm == nil {
		cm = cost.NewZero()
	}
	l.costModel = cm
}

// FirstTradeTime returns the time of the first buy, or zero when none has
// happened yet.
func (l *Ledger) FirstTradeTime() time.Time {
	for _, tr := range l.trades {
		if tr.Kind == BusinessBuy {
			return tr.Time
		}
	}
	return time.Time{}
}

// LastTradeTime returns the time of the most recent activity of any kind;
// before any trade it is the account opening time.
func (l *Ledger) LastTradeTime() time.Time { return l.lastTime }

func (l *Ledger) Have(sec market.Security) bool {
	_, ok := l.positions[sec.String()]
	return ok
}

// SecurityCount is the number of distinct securities currently held.
func (l *Ledger) SecurityCount() int { return len(l.positions) }

func (l *Ledger) Position(sec market.Security) (PositionRecord, bool) {
	p, ok := l.positions[sec.String()]
	if !ok {
		return PositionRecord{}, false
	}
	return p.snapshot(), true
}

// PositionList returns snapshots of all open positions, ordered by security.
func (l *Ledger) PositionList() []PositionRecord {
	keys := make([]string, 0, len(l.positions))
	for k := range l.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PositionRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.positions[k].snapshot())
	}
	return out
}

// HistoryPositionList returns snapshots of all closed positions in close
// order.
func (l *Ledger) HistoryPositionList() []PositionRecord {
	out := make([]PositionRecord, len(l.history))
	for i := range l.history {
		out[i] = *l.history[i].clone()
	}
	return out
}

// TradeList returns trade records with start <= Time < end. Zero bounds mean
// unbounded.
func (l *Ledger) TradeList(start, end time.Time) []TradeRecord {
	var out []TradeRecord
	for _, tr := range l.trades {
		if !start.IsZero() && tr.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !tr.Time.Before(end) {
			continue
		}
		out = append(out, tr)
	}
	return out
}

// Buy executes a buy at the given real price. The ledger state commits
// before broker dispatch: a returned ErrBrokerNotify means the trade stands
// and only sink notification failed.
func (l *Ledger) Buy(at time.Time, sec market.Security, price, quantity, stopLoss, goalPrice, planPrice float64, from TradeSource) (TradeRecord, error) {
	if err := l.checkOrder(at, sec, price, quantity); err != nil {
		return TradeRecord{}, fmt.Errorf("buy %s: %w", sec, err)
	}

	fee := l.costModel.BuyCost(at, sec, price, quantity)
	money := l.round(price * quantity)
	need := money + fee.Total

	if l.cash < need {
		borrow := l.params.boolOr(ParamBorrowCash, false)
		if !borrow {
			return TradeRecord{}, fmt.Errorf("buy %s: need %v, have %v: %w",
				sec, need, l.cash, ErrInsufficientCash)
		}
		shortfall := l.round(need - l.cash)
		l.cash += shortfall
		l.borrowedCash += shortfall
		l.append(TradeRecord{
			ID:        id.New(),
			Time:      at,
			Kind:      BusinessBorrowCash,
			RealPrice: 1,
			Quantity:  shortfall,
			CashAfter: l.cash,
			Source:    SourceInvalid,
		})
	}

	tr := TradeRecord{
		ID:        id.New(),
		Security:  sec,
		Time:      at,
		Kind:      BusinessBuy,
		PlanPrice: planPrice,
		RealPrice: price,
		GoalPrice: goalPrice,
		Quantity:  quantity,
		Cost:      fee,
		StopLoss:  stopLoss,
		Source:    from,
	}

	pos, ok := l.positions[sec.String()]
	if !ok {
		pos = newPosition(sec)
		l.positions[sec.String()] = pos
	}
	if _, err := pos.addTrade(tr); err != nil {
		if !ok {
			delete(l.positions, sec.String())
		}
		return TradeRecord{}, fmt.Errorf("buy %s: %w", sec, err)
	}

	l.cash = l.round(l.cash - need)
	tr.CashAfter = l.cash
	l.append(tr)

	return tr, l.notifyBrokers(tr)
}

// Sell executes a sell. quantity == QuantityAll liquidates the whole
// position. Like Buy, ErrBrokerNotify is post-commit.
func (l *Ledger) Sell(at time.Time, sec market.Security, price, quantity, stopLoss, goalPrice, planPrice float64, from TradeSource) (TradeRecord, error) {
	if quantity == QuantityAll {
		if pos, ok := l.positions[sec.String()]; ok {
			quantity = pos.Quantity
		}
	}
	if err := l.checkOrder(at, sec, price, quantity); err != nil {
		return TradeRecord{}, fmt.Errorf("sell %s: %w", sec, err)
	}

	pos, ok := l.positions[sec.String()]
	if !ok {
		return TradeRecord{}, fmt.Errorf("sell %s: %w", sec, ErrNoPosition)
	}
	if quantity > pos.Quantity+quantityEpsilon {
		return TradeRecord{}, fmt.Errorf("sell %s: want %v, hold %v: %w",
			sec, quantity, pos.Quantity, ErrInsufficientQuantity)
	}

	fee := l.costModel.SellCost(at, sec, price, quantity)
	tr := TradeRecord{
		ID:        id.New(),
		Security:  sec,
		Time:      at,
		Kind:      BusinessSell,
		PlanPrice: planPrice,
		RealPrice: price,
		GoalPrice: goalPrice,
		Quantity:  quantity,
		Cost:      fee,
		StopLoss:  stopLoss,
		Source:    from,
	}

	released, err := pos.addTrade(tr)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("sell %s: %w", sec, err)
	}

	l.cash = l.round(l.cash + released)
	tr.CashAfter = l.cash
	l.append(tr)

	if !pos.Open() {
		l.history = append(l.history, *pos.clone())
		delete(l.positions, sec.String())
	}

	return tr, l.notifyBrokers(tr)
}

// Checkin deposits cash into the account.
func (l *Ledger) Checkin(at time.Time, amount float64) (TradeRecord, error) {
	if err := l.checkCashMove(at, amount); err != nil {
		return TradeRecord{}, fmt.Errorf("checkin: %w", err)
	}
	l.cash = l.round(l.cash + amount)
	tr := TradeRecord{
		ID:        id.New(),
		Time:      at,
		Kind:      BusinessCheckin,
		RealPrice: 1,
		Quantity:  l.round(amount),
		CashAfter: l.cash,
		Source:    SourceInvalid,
	}
	l.append(tr)
	return tr, nil
}

// Checkout withdraws cash from the account.
func (l *Ledger) Checkout(at time.Time, amount float64) (TradeRecord, error) {
	if err := l.checkCashMove(at, amount); err != nil {
		return TradeRecord{}, fmt.Errorf("checkout: %w", err)
	}
	if amount > l.cash {
		return TradeRecord{}, fmt.Errorf("checkout %v, have %v: %w", amount, l.cash, ErrInsufficientCash)
	}
	l.cash = l.round(l.cash - amount)
	tr := TradeRecord{
		ID:        id.New(),
		Time:      at,
		Kind:      BusinessCheckout,
		RealPrice: 1,
		Quantity:  l.round(amount),
		CashAfter: l.cash,
		Source:    SourceInvalid,
	}
	l.append(tr)
	return tr, nil
}

// UpdateWithWeight applies corporate actions (bonus shares, cash dividends)
// that went ex between the previous call and date, then settles every open
// position against the most recent close before date. Must be invoked in
// chronological order, once per trading day.
func (l *Ledger) UpdateWithWeight(date time.Time) error {
	if date.Before(l.lastWeight) {
		return fmt.Errorf("update with weight at %s, watermark %s: %w",
			date.Format(time.DateOnly), l.lastWeight.Format(time.DateOnly), ErrOutOfOrderTime)
	}

	keys := make([]string, 0, len(l.positions))
	for k := range l.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Resolve every weight window and reinvest price before touching any
	// position, so a failed lookup cannot leave a half-applied window.
	reinvest := l.params.boolOr(ParamReinvest, false)
	type staged struct {
		pos    *PositionRecord
		ws     []market.Weight
		closes []float64
	}
	plan := make([]staged, 0, len(keys))
	for _, k := range keys {
		pos := l.positions[k]
		ws, err := l.quotes.WeightsBetween(pos.Security, l.lastWeight, date)
		if err != nil {
			return fmt.Errorf("weights %s: %w", pos.Security, err)
		}
		s := staged{pos: pos}
		for _, w := range ws {
			// A weight that went ex before the position existed never
			// accrued to it.
			if w.Date.Before(pos.OpenedAt) {
				continue
			}
			s.ws = append(s.ws, w)
		}
		if reinvest {
			s.closes = make([]float64, len(s.ws))
			for i, w := range s.ws {
				if w.BonusPer10 <= 0 {
					continue
				}
				_, close, err := l.quotes.LastClose(pos.Security, w.Date, market.KDay)
				if err != nil {
					return fmt.Errorf("reinvest %s: %w", pos.Security, err)
				}
				s.closes[i] = close
			}
		}
		plan = append(plan, s)
	}

	for _, s := range plan {
		for i, w := range s.ws {
			var close float64
			if s.closes != nil {
				close = s.closes[i]
			}
			l.applyWeight(s.pos, w, close)
		}
	}

	l.lastWeight = date
	if date.After(l.lastTime) {
		l.lastTime = date
	}

	// Daily settlement: roll each position's profit watermark forward to the
	// trading day before date. Positions without price history are skipped.
	for _, k := range keys {
		pos := l.positions[k]
		if _, err := pos.SettleProfitBefore(date, l.quotes, market.KDay); err != nil {
			if errors.Is(err, market.ErrDateNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// applyWeight books one corporate action. A reinvestClose above zero means
// the bonus cash buys shares at that price.
func (l *Ledger) applyWeight(pos *PositionRecord, w market.Weight, reinvestClose float64) {
	held := pos.Quantity
	if held <= 0 {
		return
	}

	if w.GiftPer10 > 0 {
		gift := held * w.GiftPer10 / 10
		pos.scaleQuantity((held + gift) / held)
		pos.TotalQuantity += gift
		l.append(TradeRecord{
			ID:        id.New(),
			Security:  pos.Security,
			Time:      w.Date,
			Kind:      BusinessGift,
			Quantity:  gift,
			CashAfter: l.cash,
			Source:    SourceInvalid,
		})
	}

	if w.BonusPer10 > 0 {
		bonus := l.round(held * w.BonusPer10 / 10)
		l.cash = l.round(l.cash + bonus)
		l.append(TradeRecord{
			ID:        id.New(),
			Security:  pos.Security,
			Time:      w.Date,
			Kind:      BusinessBonus,
			RealPrice: w.BonusPer10 / 10,
			Quantity:  held,
			CashAfter: l.cash,
			Source:    SourceInvalid,
		})
		if reinvestClose > 0 {
			l.reinvest(pos, w.Date, bonus, reinvestClose)
		}
	}
}

// reinvest buys whole shares at the ex-day close with the dividend cash.
// The fractional remainder stays in cash. Fee-free: the deposit never left
// the account.
func (l *Ledger) reinvest(pos *PositionRecord, at time.Time, bonus, close float64) {
	qty := math.Floor(bonus / close)
	if qty < 1 {
		return
	}
	tr := TradeRecord{
		ID:        id.New(),
		Security:  pos.Security,
		Time:      at,
		Kind:      BusinessBuy,
		RealPrice: close,
		Quantity:  qty,
		Source:    SourceInvalid,
	}
	pos.addTrade(tr)
	l.cash = l.round(l.cash - close*qty)
	tr.CashAfter = l.cash
	l.append(tr)
}

// Reset wipes the account back to its construction state: initial cash, no
// positions, a fresh Init record. Parameters survive.
func (l *Ledger) Reset() {
	l.bootstrap()
}

// Clone produces a fully independent deep copy. Registered broker sinks are
// external collaborators and are shared by reference; everything the ledger
// owns is copied.
func (l *Ledger) Clone() Account {
	cp := &Ledger{
		name:             l.name,
		initCash:         l.initCash,
		cash:             l.cash,
		precision:        l.precision,
		initTime:         l.initTime,
		lastTime:         l.lastTime,
		lastWeight:       l.lastWeight,
		costModel:        l.costModel.Clone(),
		quotes:           l.quotes,
		positions:        make(map[string]*PositionRecord, len(l.positions)),
		history:          make([]PositionRecord, len(l.history)),
		trades:           append([]TradeRecord(nil), l.trades...),
		brokers:          append([]OrderBroker(nil), l.brokers...),
		brokerActivation: l.brokerActivation,
		borrowedCash:     l.borrowedCash,
		params:           l.params.clone(),
	}
	for k, p := range l.positions {
		cp.positions[k] = p.clone()
	}
	for i := range l.history {
		cp.history[i] = *l.history[i].clone()
	}
	return cp
}

func (l *Ledger) RegisterBroker(b OrderBroker) {
	if b != nil {
		l.brokers = append(l.brokers, b)
	}
}

func (l *Ledger) ClearBrokers() { l.brokers = nil }

func (l *Ledger) BrokerActivation() time.Time      { return l.brokerActivation }
func (l *Ledger) SetBrokerActivation(at time.Time) { l.brokerActivation = at }

func (l *Ledger) SetParam(name string, value any) error {
	if err := l.params.Set(name, value); err != nil {
		return err
	}
	if name == ParamPrecision {
		if n, err := l.params.Int(name); err == nil {
			l.precision = n
		}
	}
	return nil
}

func (l *Ledger) Param(name string) (any, error) { return l.params.Get(name) }
func (l *Ledger) HaveParam(name string) bool     { return l.params.Have(name) }

// notifyBrokers dispatches a committed trade to the registered sinks. Trades
// stamped before the activation time are suppressed so historical replay
// does not fire live orders.
func (l *Ledger) notifyBrokers(tr TradeRecord) error {
	if tr.Time.Before(l.brokerActivation) {
		return nil
	}
	var errs []error
	for _, b := range l.brokers {
		if err := b.OrderNotify(tr); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrBrokerNotify, errors.Join(errs...))
	}
	return nil
}

func (l *Ledger) checkOrder(at time.Time, sec market.Security, price, quantity float64) error {
	if sec.IsNull() {
		return fmt.Errorf("null security")
	}
	if price <= 0 {
		return fmt.Errorf("price %v must be positive", price)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity %v must be positive", quantity)
	}
	if at.Before(l.lastTime) {
		return fmt.Errorf("at %s, last activity %s: %w",
			at.Format(time.RFC3339), l.lastTime.Format(time.RFC3339), ErrOutOfOrderTime)
	}
	return nil
}

func (l *Ledger) checkCashMove(at time.Time, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount %v must be positive", amount)
	}
	if at.Before(l.lastTime) {
		return fmt.Errorf("at %s, last activity %s: %w",
			at.Format(time.RFC3339), l.lastTime.Format(time.RFC3339), ErrOutOfOrderTime)
	}
	return nil
}

func (l *Ledger) append(tr TradeRecord) {
	l.trades = append(l.trades, tr)
	if tr.Time.After(l.lastTime) {
		l.lastTime = tr.Time
	}
}

func (l *Ledger) round(v float64) float64 {
	return roundTo(v, l.precision)
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
