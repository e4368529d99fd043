// Package store defines the unified storage interface for gate state: the
// tier catalog, identity links (forward and reverse), pass holdings, and the
// append-only receipt log.
package store

import (
	"context"

	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	"github.com/tokengate/tokengate/tier"
)

// Store is the unified storage interface for all gate state. Methods are
// declared flat rather than via embedded sub-interfaces to avoid naming
// conflicts across backends.
//
// The store is not responsible for cross-key atomicity of multi-step
// operations: the gate serializes all mutating operations behind a single
// writer lock (relinks, mints, revocations never interleave). SetLink is the
// one exception — it must swap forward and reverse entries so that no reader
// ever observes a half-updated bijection.
type Store interface {
	// Tier catalog
	PutTier(ctx context.Context, t *tier.Tier) error
	GetTier(ctx context.Context, key tier.Key) (*tier.Tier, error)
	ListTiers(ctx context.Context, opts tier.ListOpts) ([]*tier.Tier, error)
	SetTierActive(ctx context.Context, key tier.Key, active bool) error

	// Identity links. SetLink installs wallet↔externalID atomically, voiding
	// any stale entry in either direction, and returns the wallet's previous
	// external id (empty if none).
	SetLink(ctx context.Context, link *identity.Link) (previous string, err error)
	WalletByExternalID(ctx context.Context, externalID string) (identity.Address, error)
	ExternalIDByWallet(ctx context.Context, wallet identity.Address) (string, error)

	// Pass holdings
	GetHolding(ctx context.Context, wallet identity.Address, key tier.Key) (*pass.Holding, error)
	PutHolding(ctx context.Context, h *pass.Holding) error
	ClearHolding(ctx context.Context, wallet identity.Address, key tier.Key) error
	ListHoldings(ctx context.Context, wallet identity.Address) ([]*pass.Holding, error)

	// Receipt log (append-only; DeleteReceipt exists only so the gate can
	// compensate an aborted purchase before anything was observable)
	AppendReceipt(ctx context.Context, r *pass.Receipt) error
	DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error
	ListReceipts(ctx context.Context, opts pass.ReceiptListOpts) ([]*pass.Receipt, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
