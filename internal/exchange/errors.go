package exchange

import "errors"

var (
	errQuantityNotPositive = errors.New("quantity must be positive")
	errLimitNeedsPrice     = errors.New("price is required for LIMIT orders")
	errStopNeedsStopPrice  = errors.New("stop_price is required for STOP orders")
)
