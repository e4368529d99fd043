package identity

import (
	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/types"
)

// Link associates a wallet with an external messaging-network identifier.
// The mapping is a bijection at any instant: one external id per wallet,
// one wallet per external id. Links are overwritten on relink, never deleted.
type Link struct {
	types.Entity
	ID         id.LinkID `json:"id"`
	Wallet     Address   `json:"wallet"`
	ExternalID string    `json:"external_id"`
}
