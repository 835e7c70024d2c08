package pool

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFee_KnownValues(t *testing.T) {
	tests := []struct {
		amount string
		bps    uint16
		fee    string
	}{
		{"6000000000000000000", 200, "120000000000000000"},
		{"4000000000000000000", 250, "100000000000000000"},
		{"9999", 1, "0"},
		{"10000", 1, "1"},
		{"19999", 1, "1"},
		{"12345", 10000, "12345"},
		{"12345", 0, "0"},
		// u128 max
		{"340282366920938463463374607431768211455", 9999, "340248338684246369617028269971025034633"},
	}

	for _, tt := range tests {
		fee, net := Split(decimal.RequireFromString(tt.amount), tt.bps)
		if !fee.Equal(decimal.RequireFromString(tt.fee)) {
			t.Errorf("Fee(%s, %d): expected %s, got %s", tt.amount, tt.bps, tt.fee, fee)
		}
		if !fee.Add(net).Equal(decimal.RequireFromString(tt.amount)) {
			t.Errorf("Split(%s, %d): fee %s + net %s != amount", tt.amount, tt.bps, fee, net)
		}
	}
}

func TestFee_MatchesIntegerFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	denominator := big.NewInt(BasisPointsDenominator)

	for i := 0; i < 2000; i++ {
		amount := new(big.Int).Rand(rng, limit)
		bps := uint16(rng.Intn(BasisPointsDenominator + 1))

		expected := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
		expected.Quo(expected, denominator)

		d := decimal.NewFromBigInt(amount, 0)
		fee, net := Split(d, bps)
		if fee.BigInt().Cmp(expected) != 0 {
			t.Fatalf("Fee(%s, %d): expected %s, got %s", amount, bps, expected, fee)
		}
		if !fee.Add(net).Equal(d) {
			t.Fatalf("Split(%s, %d): fee + net != amount", amount, bps)
		}
		if net.IsNegative() {
			t.Fatalf("Split(%s, %d): negative net %s", amount, bps, net)
		}
	}
}

func TestValidAccount(t *testing.T) {
	valid := []string{
		"0x52908400098527886E0F7030069857D2E4169EE7",
		"bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		"treasury:ops",
		"admin-ops",
	}
	invalid := []string{"", "ab", "has space", "-leading", "semi;colon", string(make([]byte, 200))}

	for _, account := range valid {
		if !ValidAccount(account) {
			t.Errorf("Expected %q to be valid", account)
		}
	}
	for _, account := range invalid {
		if ValidAccount(account) {
			t.Errorf("Expected %q to be invalid", account)
		}
	}
}

func TestErrorKind(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrQueueFull)
	if got := ErrorKind(wrapped); got != "QueueFull" {
		t.Errorf("Expected QueueFull, got %s", got)
	}
	if got := ErrorKind(errors.New("disk full")); got != KindInternal {
		t.Errorf("Expected %s, got %s", KindInternal, got)
	}
	if IsValidationError(nil) {
		t.Error("nil is not a validation error")
	}
	if !IsValidationError(ErrNotReady) {
		t.Error("ErrNotReady is a validation error")
	}
}
