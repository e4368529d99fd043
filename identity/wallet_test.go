package identity

import (
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func addrFromByte(b byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = b
	}
	return base58.Encode(raw)
}

func TestParseAddress(t *testing.T) {
	valid := addrFromByte(7)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid", valid, false},
		{"Empty", "", true},
		{"NotBase58", "0OIl+/=", true},
		{"TooShort", base58.Encode([]byte{1, 2, 3}), true},
		{"TooLong", base58.Encode(make([]byte, 33)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.String() != tt.input {
				t.Errorf("got %q, want %q", a.String(), tt.input)
			}
		})
	}
}

func TestMustAddressPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid address")
		}
	}()
	MustAddress("not-base58!!!")
}

func TestAddressShort(t *testing.T) {
	a := Address(addrFromByte(1))
	short := a.Short()
	if !strings.HasPrefix(short, a.String()[:4]) {
		t.Errorf("short form %q should start with the first four characters", short)
	}
	if len(short) >= len(a.String()) {
		t.Errorf("short form %q should abbreviate %q", short, a.String())
	}

	if Address("abcd").Short() != "abcd" {
		t.Error("short addresses pass through unchanged")
	}
}

func TestAddressIsZero(t *testing.T) {
	if !Address("").IsZero() {
		t.Error("empty address should be zero")
	}
	if Address("x").IsZero() {
		t.Error("non-empty address should not be zero")
	}
}
