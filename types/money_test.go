package types

import (
	"math"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   uint64
		currency string
		display  string
	}{
		{"SOL", SOL(1_000_000_000), 1_000_000_000, "sol", "1.000000000 SOL"},
		{"USDC", USDC(5_000_000), 5_000_000, "usdc", "5.000000 USDC"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Zero SOL", Zero("SOL"), 0, "sol", "0.000000000 SOL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Subtract to zero", func() Money { return USD(500).Subtract(USD(500)) }, USD(0)},
		{"Multiply", func() Money { return SOL(100).Multiply(3) }, SOL(300)},
		{"Complex", func() Money {
			return SOL(1000).Add(SOL(500)).Multiply(2).Subtract(SOL(1000))
		}, SOL(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCheckedArithmetic(t *testing.T) {
	t.Run("AddOverflow", func(t *testing.T) {
		_, err := Money{Amount: math.MaxUint64, Currency: "sol"}.CheckedAdd(SOL(1))
		if err == nil {
			t.Error("expected overflow error")
		}
	})

	t.Run("SubUnderflow", func(t *testing.T) {
		_, err := SOL(100).CheckedSub(SOL(101))
		if err == nil {
			t.Error("expected underflow error")
		}
	})

	t.Run("CurrencyMismatch", func(t *testing.T) {
		if _, err := USD(100).CheckedAdd(EUR(100)); err == nil {
			t.Error("expected currency mismatch error on add")
		}
		if _, err := USD(100).CheckedSub(EUR(100)); err == nil {
			t.Error("expected currency mismatch error on sub")
		}
	})

	t.Run("CheckedOk", func(t *testing.T) {
		sum, err := SOL(100).CheckedAdd(SOL(50))
		if err != nil {
			t.Fatal(err)
		}
		if !sum.Equal(SOL(150)) {
			t.Errorf("got %v, want %v", sum, SOL(150))
		}
	})
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyCovers(t *testing.T) {
	tests := []struct {
		name    string
		payment Money
		price   Money
		want    bool
	}{
		{"Exact", SOL(100), SOL(100), true},
		{"Over", SOL(150), SOL(100), true},
		{"Under", SOL(99), SOL(100), false},
		{"WrongCurrency", USD(1000), SOL(100), false},
		{"ZeroPrice", SOL(0), SOL(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.payment.Covers(tt.price); got != tt.want {
				t.Errorf("Covers: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyComparisons(t *testing.T) {
	if !USD(0).IsZero() {
		t.Error("USD(0) should be zero")
	}
	if USD(1).IsZero() {
		t.Error("USD(1) should not be zero")
	}
	if !USD(1).IsPositive() {
		t.Error("USD(1) should be positive")
	}
	if !USD(100).LessThan(USD(200)) {
		t.Error("100 should be less than 200")
	}
	if USD(200).LessThan(USD(100)) {
		t.Error("200 should not be less than 100")
	}
}

func TestSum(t *testing.T) {
	total := Sum(SOL(100), SOL(200), SOL(300))
	if !total.Equal(SOL(600)) {
		t.Errorf("got %v, want %v", total, SOL(600))
	}
}
