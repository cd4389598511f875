package market

// Security identifies one tradable instrument. The account ledger treats it
// as an opaque reference; a QuoteSource resolves it to price history.
type Security struct {
	Market string // exchange code, e.g. "SH"
	Code   string // instrument code, e.g. "600001"
}

func (s Security) String() string {
	return s.Market + s.Code
}

// IsNull reports whether the security is the zero reference.
func (s Security) IsNull() bool {
	return s.Market == "" && s.Code == ""
}

// KType selects the kline granularity for close-price lookups.
type KType string

const (
	KDay   KType = "DAY"
	KWeek  KType = "WEEK"
	KMonth KType = "MONTH"
	KMin   KType = "MIN"
	KMin5  KType = "MIN5"
	KMin15 KType = "MIN15"
	KMin30 KType = "MIN30"
	KMin60 KType = "MIN60"
)
