package market

import "time"

// Weight is one corporate-action record for a security. Quantities follow
// the exchange per-10-shares convention: holding N shares on the ex-date
// yields N*GiftPer10/10 extra shares and N*BonusPer10/10 in cash.
type Weight struct {
	Date       time.Time
	GiftPer10  float64 // bonus shares per 10 held
	BonusPer10 float64 // cash dividend per 10 held
}
