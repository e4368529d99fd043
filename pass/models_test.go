package pass

import (
	"math"
	"testing"
	"time"
)

func TestExpiryAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration uint64
		want     time.Time
	}{
		{"ZeroNeverExpires", 0, time.Time{}},
		{"ThirtyDays", 30 * 24 * 3600, now.Add(30 * 24 * time.Hour)},
		{"OneSecond", 1, now.Add(time.Second)},
		{"OverflowSaturatesToUnbounded", math.MaxUint64, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpiryAt(now, tt.duration)
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLaterExpiry(t *testing.T) {
	earlier := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	unbounded := time.Time{}

	tests := []struct {
		name string
		a, b time.Time
		want time.Time
	}{
		{"LaterWins", earlier, later, later},
		{"OrderIrrelevant", later, earlier, later},
		{"UnboundedWinsOverLater", unbounded, later, unbounded},
		{"UnboundedWinsEitherSide", earlier, unbounded, unbounded},
		{"BothUnbounded", unbounded, unbounded, unbounded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LaterExpiry(tt.a, tt.b)
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldingValidAt(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		holding *Holding
		at      time.Time
		want    bool
	}{
		{"NilHolding", nil, expiry, false},
		{"ZeroQuantity", &Holding{Quantity: 0, ExpiresAt: expiry.Add(time.Hour)}, expiry, false},
		{"BeforeExpiry", &Holding{Quantity: 1, ExpiresAt: expiry}, expiry.Add(-time.Second), true},
		{"AtExactExpiry", &Holding{Quantity: 1, ExpiresAt: expiry}, expiry, false},
		{"AfterExpiry", &Holding{Quantity: 1, ExpiresAt: expiry}, expiry.Add(time.Second), false},
		{"Unbounded", &Holding{Quantity: 1}, expiry.Add(1000000 * time.Hour), true},
		{"StackedQuantity", &Holding{Quantity: 3, ExpiresAt: expiry}, expiry.Add(-time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.holding.ValidAt(tt.at); got != tt.want {
				t.Errorf("ValidAt: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldingUnbounded(t *testing.T) {
	if !(&Holding{Quantity: 1}).Unbounded() {
		t.Error("zero ExpiresAt should be unbounded")
	}
	if (&Holding{Quantity: 1, ExpiresAt: time.Now()}).Unbounded() {
		t.Error("set ExpiresAt should not be unbounded")
	}
}
