// Package identity defines wallet addresses and their links to external
// messaging-network identifiers.
package identity

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Address is a wallet identity: the base58 encoding of a 32-byte public key.
// The zero value is the empty (invalid) address.
type Address string

// ParseAddress validates and normalizes a base58 wallet address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("identity: empty address")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("identity: address %q is not base58: %w", s, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("identity: address %q decodes to %d bytes, want 32", s, len(raw))
	}
	return Address(s), nil
}

// MustAddress is like ParseAddress but panics on error. Use for hardcoded
// addresses in configuration and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// String returns the base58 form.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }

// Short returns an abbreviated form for logs: first and last four characters.
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}
