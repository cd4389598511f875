package account

import "errors"

// Error kinds returned by ledger operations. All are local, recoverable
// conditions: a failed call leaves cash and positions untouched.
var (
	// ErrOutOfOrderTime means a call's timestamp precedes the last
	// recorded activity on the account.
	ErrOutOfOrderTime = errors.New("timestamp precedes last account activity")

	// ErrInsufficientCash means cash cannot cover a buy or checkout.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientQuantity means a sell exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient held quantity")

	// ErrUnknownParam is returned when reading a parameter that was
	// never set.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrUnsupportedParamType is returned when setting a parameter to a
	// value outside the closed set of supported types.
	ErrUnsupportedParamType = errors.New("unsupported parameter type")

	// ErrAlreadySettled guards daily settlement against re-settling a
	// date already covered by the watermark.
	ErrAlreadySettled = errors.New("date already settled")

	// ErrBrokerNotify wraps order-broker failures. The trade has already
	// committed when this is returned; callers may treat it as a warning.
	ErrBrokerNotify = errors.New("broker notify failed")

	// ErrNoPosition means a sell or query referenced a security with no
	// open position.
	ErrNoPosition = errors.New("no open position")
)
