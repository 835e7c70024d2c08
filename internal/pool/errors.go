package pool

import "errors"

// Validation failures. Every one of them is returned before any state is
// written, so a rejected operation leaves the pool untouched.
var (
	ErrUnauthorized            = errors.New("caller is not the administrator")
	ErrCallerBlacklisted       = errors.New("caller is blacklisted")
	ErrAmountTooSmall          = errors.New("amount below minimum")
	ErrAmountTooLarge          = errors.New("amount above maximum")
	ErrInvalidFeeRate          = errors.New("fee rate out of range")
	ErrInvalidDelay            = errors.New("delay out of range")
	ErrTooManyParts            = errors.New("invalid number of withdrawal parts")
	ErrDepositNotFound         = errors.New("deposit not found")
	ErrDepositAlreadyScheduled = errors.New("deposit already scheduled")
	ErrDepositExpired          = errors.New("deposit expired")
	ErrQueueFull               = errors.New("withdrawal queue is full")
	ErrInsufficientBalance     = errors.New("insufficient pooled balance")
	ErrNotReady                = errors.New("queue item not ready")
	ErrInvalidAddress          = errors.New("invalid account identifier")
	ErrItemNotFound            = errors.New("queue item not found")
	ErrItemNotActive           = errors.New("queue item not active")
	ErrInvalidParameters       = errors.New("invalid parameters")
	ErrInvalidAmount           = errors.New("amount must be a positive whole number of atomic units")
	ErrTransferNotPending      = errors.New("no transfer pending for queue item")
	ErrTransferFailed          = errors.New("transfer failed")
)

// KindInternal is reported for errors that are not validation failures
const KindInternal = "Internal"

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnauthorized, "Unauthorized"},
	{ErrCallerBlacklisted, "CallerBlacklisted"},
	{ErrAmountTooSmall, "AmountTooSmall"},
	{ErrAmountTooLarge, "AmountTooLarge"},
	{ErrInvalidFeeRate, "InvalidFeeRate"},
	{ErrInvalidDelay, "InvalidDelay"},
	{ErrTooManyParts, "TooManyParts"},
	{ErrDepositNotFound, "DepositNotFound"},
	{ErrDepositAlreadyScheduled, "DepositAlreadyScheduled"},
	{ErrDepositExpired, "DepositExpired"},
	{ErrQueueFull, "QueueFull"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrNotReady, "NotReady"},
	{ErrInvalidAddress, "InvalidAddress"},
	{ErrItemNotFound, "ItemNotFound"},
	{ErrItemNotActive, "ItemNotActive"},
	{ErrInvalidParameters, "InvalidParameters"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrTransferNotPending, "TransferNotPending"},
	{ErrTransferFailed, "TransferFailed"},
}

// ErrorKind returns the stable name of the error kind wrapped by err, or
// KindInternal when err is not one of the pool's validation errors.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsValidationError reports whether err is a deterministic rejection rather
// than an infrastructure failure.
func IsValidationError(err error) bool {
	return err != nil && ErrorKind(err) != KindInternal
}
