// Package plugin provides an extensible plugin system for the gate.
// Plugins can hook into lifecycle events to extend functionality — group
// membership bridges, metrics, audit sinks.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, gate interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Tier catalog hooks
// ──────────────────────────────────────────────────

// OnTierDefined is called when a tier is defined or overwritten.
// The payload is a *tier.Tier.
type OnTierDefined interface {
	Plugin
	OnTierDefined(ctx context.Context, t interface{}) error
}

// OnTierStatusChanged is called when a tier is activated or deactivated.
type OnTierStatusChanged interface {
	Plugin
	OnTierStatusChanged(ctx context.Context, key uint32, active bool) error
}

// ──────────────────────────────────────────────────
// Identity link hooks
// ──────────────────────────────────────────────────

// OnIdentityLinked is called after a wallet is linked (or relinked) to an
// external messaging identifier. oldExternalID is empty for a first link.
type OnIdentityLinked interface {
	Plugin
	OnIdentityLinked(ctx context.Context, wallet, oldExternalID, newExternalID string) error
}

// ──────────────────────────────────────────────────
// Access lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccessGranted is called when a pass is minted, whether purchased or
// granted. The payload is a *pass.Receipt; externalID is the holder's linked
// messaging identifier, empty if the wallet is unlinked.
type OnAccessGranted interface {
	Plugin
	OnAccessGranted(ctx context.Context, receipt interface{}, externalID string) error
}

// OnPurchaseRecorded is called for paid purchases only, after the receipt is
// committed and any excess payment refunded. The payload is a *pass.Receipt.
type OnPurchaseRecorded interface {
	Plugin
	OnPurchaseRecorded(ctx context.Context, receipt interface{}) error
}

// OnAccessRevoked is called when a holding is explicitly revoked. The payload
// is the revocation *pass.Receipt carrying the human-readable reason.
type OnAccessRevoked interface {
	Plugin
	OnAccessRevoked(ctx context.Context, receipt interface{}, externalID, reason string) error
}

// OnAccessChecked is called on validity reads. High-volume; implementations
// must be cheap.
type OnAccessChecked interface {
	Plugin
	OnAccessChecked(ctx context.Context, wallet string, key uint32, valid bool) error
}
