// Package pass defines soulbound access pass holdings and their audit
// receipts. A holding is the ledger balance for one (wallet, tier) pair;
// validity is derived lazily from the stored expiry against the current
// time, never by a background sweep.
package pass

import (
	"math"
	"time"

	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/tier"
	"github.com/tokengate/tokengate/types"
)

// Holding is the pass balance for one (wallet, tier) pair. The zero ExpiresAt
// means the holding never expires. Holdings accumulate: each additional mint
// increments Quantity and pushes ExpiresAt out to the later of the existing
// and newly computed expiry.
type Holding struct {
	types.Entity
	Wallet    identity.Address `json:"wallet"`
	TierKey   tier.Key         `json:"tier_key"`
	Quantity  uint64           `json:"quantity"`
	ExpiresAt time.Time        `json:"expires_at,omitzero"` // zero = unbounded
}

// Unbounded reports whether the holding never expires.
func (h *Holding) Unbounded() bool { return h.ExpiresAt.IsZero() }

// ValidAt reports whether the holding confers access at the given instant:
// quantity above zero and expiry either unbounded or still in the future.
func (h *Holding) ValidAt(now time.Time) bool {
	if h == nil || h.Quantity == 0 {
		return false
	}
	return h.Unbounded() || now.Before(h.ExpiresAt)
}

// Kind classifies receipt entries.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindGrant    Kind = "grant"
	KindRevoke   Kind = "revoke"
)

// Receipt is an append-only audit entry for a purchase, grant, or revocation.
// Receipts are write-once: they record what happened at mint time and are
// never edited to reflect later expiry or revocation.
type Receipt struct {
	types.Entity
	ID          id.ReceiptID     `json:"id"`
	Wallet      identity.Address `json:"wallet"`
	TierKey     tier.Key         `json:"tier_key"`
	Kind        Kind             `json:"kind"`
	Quantity    uint64           `json:"quantity"`
	AmountPaid  types.Money      `json:"amount_paid"`
	ExpiresAt   time.Time        `json:"expires_at,omitzero"` // zero = unbounded
	ExternalRef string           `json:"external_ref,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// ReceiptListOpts filters receipt listings. Zero-value fields are ignored.
type ReceiptListOpts struct {
	Wallet  identity.Address
	TierKey tier.Key
	HasTier bool // distinguish TierKey 0 from "no filter"
	Kind    Kind
	Limit   int
	Offset  int
}

// maxSeconds is the largest whole-second duration representable as a
// time.Duration without wrapping.
const maxSeconds = uint64(math.MaxInt64 / int64(time.Second))

// ExpiryAt computes the expiry instant for a pass minted now with the given
// tier duration. A zero duration means the pass never expires. If the
// duration cannot be represented without wrapping, the result saturates to
// unbounded rather than wrapping into the past.
func ExpiryAt(now time.Time, durationSeconds uint64) time.Time {
	if durationSeconds == 0 || durationSeconds > maxSeconds {
		return time.Time{}
	}
	return now.Add(time.Duration(durationSeconds) * time.Second)
}

// LaterExpiry merges an existing holding expiry with a newly computed one:
// unbounded (zero) wins outright, otherwise the later instant.
func LaterExpiry(a, b time.Time) time.Time {
	if a.IsZero() || b.IsZero() {
		return time.Time{}
	}
	if b.After(a) {
		return b
	}
	return a
}
