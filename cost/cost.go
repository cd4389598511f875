// Package cost computes transaction-cost breakdowns for prospective trades.
package cost

import (
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// Record is one fee breakdown. All components and Total are non-negative.
type Record struct {
	Commission float64
	StampTax   float64
	Transfer   float64
	Other      float64
	Total      float64
}

// Model prices the cost of a prospective buy or sell. Implementations must
// be pure: no state mutation, same inputs same outputs.
type Model interface {
	BuyCost(at time.Time, sec market.Security, price, quantity float64) Record
	SellCost(at time.Time, sec market.Security, price, quantity float64) Record
	Clone() Model
}
