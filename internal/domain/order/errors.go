package order

import "errors"

var (
	ErrMissingOrderID   = errors.New("order is missing an orderID")
	ErrMissingCustomer  = errors.New("order is missing a customer")
	ErrEmptyOrder       = errors.New("order contains no drinks")
	ErrMissingDrinkName = errors.New("drink is missing a name")
	ErrNegativeVolume   = errors.New("drink milk volume is negative")
	ErrNegativeShots    = errors.New("drink shot count is negative")
	ErrShuttingDown     = errors.New("queue is shutting down")
	ErrIndexOutOfRange  = errors.New("queue index out of range")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPersistFailed    = errors.New("order accepted but not persisted")
)
