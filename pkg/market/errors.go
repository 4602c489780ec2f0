package market

import "errors"

var (
	// ErrMalformedData reports a raw payload with a missing or unparsable
	// required field. Normalization aborts the whole series rather than
	// dropping the bad record.
	ErrMalformedData = errors.New("market: malformed data")

	// ErrUnsupportedExchange reports a request for an exchange no provider
	// is registered for.
	ErrUnsupportedExchange = errors.New("market: unsupported exchange")

	// ErrUnsupportedInterval reports an interval token outside the canonical
	// set, or one the target exchange has no bar mapping for.
	ErrUnsupportedInterval = errors.New("market: unsupported interval")
)
