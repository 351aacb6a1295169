package sim

import "errors"

// Input validation.
var (
	ErrCandleDataEmpty    = errors.New("candle data is empty")
	ErrUnorderedCandles   = errors.New("candles are not ordered by open time")
	ErrNonPositiveBalance = errors.New("balance must be positive")
	ErrInvalidFees        = errors.New("fee rates must be positive")
	ErrInvalidQuantity    = errors.New("order quantity must be positive")
	ErrInvalidEntryPrice  = errors.New("order entry price must be positive")
)

// Ledger.
var (
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNegativeFreeBalance = errors.New("negative free balance")
	ErrUnlockUnderflow     = errors.New("locked funds are insufficient")
	ErrExitPrice           = errors.New("invalid exit price")
)

// Lookups.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrDuplicateOrder   = errors.New("order id already in use")
	ErrCandleNotFound   = errors.New("candle not found")
)

// Configuration.
var (
	ErrNegativeExitLevel   = errors.New("take profit and stop loss must not be negative")
	ErrInvalidTrailingStop = errors.New("trailing stop price and percent must be positive")
	ErrInvalidFactor       = errors.New("invalid aggregation factor")
)

// Run state and internal errors.
var (
	ErrMismatchedOrderType = errors.New("mismatched order type")
	ErrEngineRunning       = errors.New("engine is already running")
	ErrEngineFinished      = errors.New("engine has finished; reset before running again")
)
