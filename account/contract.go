package account

// ContractRecord is one open buy lot (tranche). Quantity stays positive for
// as long as the lot is held; a fully matched lot is removed from its
// position, never left at zero.
type ContractRecord struct {
	Quantity  float64
	Price     float64 // entry price
	StopLoss  float64
	GoalPrice float64
	Cost      float64 // fee allocated to this lot
}

// Risk is the lot's contribution to cumulative position risk:
// (entry - stop) * quantity, fee-exclusive. An unset or inverted stop
// contributes nothing.
func (c ContractRecord) Risk() float64 {
	if c.StopLoss <= 0 || c.StopLoss >= c.Price {
		return 0
	}
	return (c.Price - c.StopLoss) * c.Quantity
}
