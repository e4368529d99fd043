// Package tier defines the catalog of purchasable access tiers.
package tier

import (
	"github.com/tokengate/tokengate/types"
)

// Key identifies a tier in the catalog. Keys are small integers chosen by
// the community operator, not generated.
type Key uint32

// Tier is a purchasable class of access entitlement. Price and duration are
// economically immutable once passes have been minted against the tier; only
// the Active flag and non-economic fields change on a live tier.
type Tier struct {
	types.Entity
	Key             Key         `json:"key"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	ImageURL        string      `json:"image_url,omitempty"`
	MetadataURL     string      `json:"metadata_url,omitempty"`
	Price           types.Money `json:"price"`
	DurationSeconds uint64      `json:"duration_seconds"` // 0 = never expires
	Active          bool        `json:"active"`
}

// Unbounded reports whether passes minted against this tier never expire.
func (t *Tier) Unbounded() bool { return t.DurationSeconds == 0 }

// ListOpts filters tier catalog listings.
type ListOpts struct {
	// ActiveOnly restricts the listing to tiers open for purchase.
	ActiveOnly bool
	Limit      int
	Offset     int
}
