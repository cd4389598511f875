package cost

import (
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// Zero charges nothing. Useful for frictionless backtests and as the
// default model.
type Zero struct{}

func NewZero() Zero { return Zero{} }

func (Zero) BuyCost(time.Time, market.Security, float64, float64) Record  { return Record{} }
func (Zero) SellCost(time.Time, market.Security, float64, float64) Record { return Record{} }
func (z Zero) Clone() Model                                               { return z }
