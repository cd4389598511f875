package account

import (
	"time"

	"github.com/rustyeddy/accountsim/cost"
	"github.com/rustyeddy/accountsim/market"
)

// BusinessKind classifies what a trade record did to the account.
type BusinessKind int

const (
	BusinessInit BusinessKind = iota // account opening deposit
	BusinessBuy
	BusinessSell
	BusinessGift  // bonus shares from a corporate action
	BusinessBonus // cash dividend from a corporate action
	BusinessCheckin
	BusinessCheckout
	BusinessBorrowCash
	BusinessReturnCash
	BusinessInvalid
)

var businessNames = [...]string{
	"INIT", "BUY", "SELL", "GIFT", "BONUS",
	"CHECKIN", "CHECKOUT", "BORROW_CASH", "RETURN_CASH", "INVALID",
}

func (k BusinessKind) String() string {
	if k < 0 || int(k) >= len(businessNames) {
		return "UNKNOWN"
	}
	return businessNames[k]
}

// TradeSource identifies which decision layer issued a trade instruction.
type TradeSource int

const (
	SourceInvalid TradeSource = iota
	SourceSignal
	SourceStopLoss
	SourceTakeProfit
	SourceMoneyManager
	SourceCondition
	SourcePortfolio
)

var sourceNames = [...]string{
	"INVALID", "SIGNAL", "STOPLOSS", "TAKEPROFIT",
	"MONEYMANAGER", "CONDITION", "PORTFOLIO",
}

func (s TradeSource) String() string {
	if s < 0 || int(s) >= len(sourceNames) {
		return "UNKNOWN"
	}
	return sourceNames[s]
}

// TradeRecord is one immutable audit entry. The ledger appends one per
// state-changing call and never mutates it afterwards.
//
// Cash-movement records (init/checkin/checkout/borrow) carry the amount in
// Quantity with RealPrice fixed at 1.
type TradeRecord struct {
	ID        string
	Security  market.Security
	Time      time.Time
	Kind      BusinessKind
	PlanPrice float64
	RealPrice float64
	GoalPrice float64
	Quantity  float64
	Cost      cost.Record
	StopLoss  float64
	CashAfter float64
	Source    TradeSource
}
