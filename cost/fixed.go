package cost

import (
	"math"
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// FixedA is an A-share style cost model: rate commission with a floor,
// sell-side stamp tax, and a per-share transfer fee with a floor.
type FixedA struct {
	CommissionRate float64 // of traded value
	MinCommission  float64
	StampTaxRate   float64 // sell side only
	TransferRate   float64 // per share
	MinTransfer    float64
}

// NewFixedA returns a FixedA with the customary defaults: 0.18% commission
// (min 5), 0.1% stamp tax on sells, 0.1% transfer fee per 1000 shares (min 1).
func NewFixedA() *FixedA {
	return &FixedA{
		CommissionRate: 0.0018,
		MinCommission:  5.0,
		StampTaxRate:   0.001,
		TransferRate:   0.000001,
		MinTransfer:    1.0,
	}
}

func (c *FixedA) BuyCost(_ time.Time, _ market.Security, price, quantity float64) Record {
	value := price * quantity
	r := Record{
		Commission: round2(math.Max(value*c.CommissionRate, c.MinCommission)),
		Transfer:   round2(math.Max(quantity*c.TransferRate, c.MinTransfer)),
	}
	r.Total = round2(r.Commission + r.Transfer)
	return r
}

func (c *FixedA) SellCost(_ time.Time, _ market.Security, price, quantity float64) Record {
	value := price * quantity
	r := Record{
		Commission: round2(math.Max(value*c.CommissionRate, c.MinCommission)),
		StampTax:   round2(value * c.StampTaxRate),
		Transfer:   round2(math.Max(quantity*c.TransferRate, c.MinTransfer)),
	}
	r.Total = round2(r.Commission + r.StampTax + r.Transfer)
	return r
}

func (c *FixedA) Clone() Model {
	cp := *c
	return &cp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
