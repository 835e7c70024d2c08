package pool

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// BasisPointsDenominator is the number of basis points in 100%
const BasisPointsDenominator = 10000

var bpsDenominator = decimal.NewFromInt(BasisPointsDenominator)

// Fee returns floor(amount * feeRateBps / 10000). Amounts are whole atomic
// units, so the division truncates to an integer and never rounds up.
func Fee(amount decimal.Decimal, feeRateBps uint16) decimal.Decimal {
	fee, _ := amount.Mul(decimal.NewFromInt(int64(feeRateBps))).QuoRem(bpsDenominator, 0)
	return fee
}

// Split returns the retained fee and the net amount sent to the recipient.
// fee + net always equals amount.
func Split(amount decimal.Decimal, feeRateBps uint16) (fee, net decimal.Decimal) {
	fee = Fee(amount, feeRateBps)
	return fee, amount.Sub(fee)
}

// isAtomicAmount reports whether amount is a strictly positive integer
func isAtomicAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.IsInteger()
}

// checkAmountRange validates amount against [lower, upper]. A zero upper
// bound means no upper bound.
func checkAmountRange(amount, lower, upper decimal.Decimal) error {
	if amount.LessThan(lower) || !amount.IsPositive() {
		return fmt.Errorf("%w: %s < %s", ErrAmountTooSmall, amount, lower)
	}
	if !upper.IsZero() && amount.GreaterThan(upper) {
		return fmt.Errorf("%w: %s > %s", ErrAmountTooLarge, amount, upper)
	}
	if !amount.IsInteger() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

// Account identifiers cover hex, bech32 and base58 chain addresses as well
// as internal ids such as "treasury:ops".
var accountPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9:._-]{2,127}$`)

// ValidAccount reports whether account is a syntactically valid identifier
func ValidAccount(account string) bool {
	return accountPattern.MatchString(account)
}
