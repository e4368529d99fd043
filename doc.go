// Package tokengate provides a soulbound, time-bound access pass ledger for
// gating membership in external groups (Telegram, Discord, any roster with
// invite/kick hooks) behind wallet-held entitlements.
//
// Tokengate is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - A tier catalog with per-tier price and duration
//   - Non-transferable pass holdings with lazy expiry evaluation
//   - A bijective wallet-to-messaging-identity link table
//   - A purchase engine with exact-change refunds and full compensation
//     when a refund cannot be delivered
//   - Operator grants and revocations with an append-only receipt log
//   - Batch access queries for roster sweeps
//   - Pluggable event hooks for group management and metrics
//
// # Quick Start
//
// Create a gate instance with your preferred store:
//
//	import (
//	    "github.com/tokengate/tokengate"
//	    "github.com/tokengate/tokengate/store/postgres"
//	)
//
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gate := tokengate.New(store,
//	    tokengate.WithAdmin(adminWallet),
//	    tokengate.WithTreasury(treasuryWallet),
//	    tokengate.WithSettlement(settle),
//	)
//
//	if err := gate.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer gate.Stop()
//
// # Core Concepts
//
// Tiers define what is being sold and for how long:
//
//	t := &tier.Tier{
//	    Key:             1,
//	    Name:            "Gold",
//	    Price:           types.SOL(1_000_000_000),
//	    DurationSeconds: 30 * 24 * 3600,
//	    Active:          true,
//	}
//	gate.DefineTier(ctx, t)
//
// Wallets purchase passes against a payment; any overpayment is refunded to
// the exact unit after the mint commits:
//
//	ctx = tokengate.WithCaller(ctx, buyerWallet)
//	receipt, err := gate.Purchase(ctx, 1, types.SOL(1_200_000_000))
//
// Access checks evaluate expiry lazily against the injected clock; nothing is
// mutated or swept on read:
//
//	ok, err := gate.HasAccessByExternalID(ctx, telegramUserID)
//
// # Soulbound Semantics
//
// Passes are bound to the purchasing wallet and expose no transfer operation.
// Holding the same tier twice stacks quantity and keeps the later expiry; a
// pass with zero duration never expires. Revocation zeroes the balance
// immediately and is recorded with a reason on the receipt log.
//
// All monetary amounts use unsigned integer arithmetic in the smallest
// currency unit (lamports for SOL, cents for USD). Arithmetic that would
// wrap fails loudly instead of corrupting a balance.
//
// # TypeID
//
// Receipts, links, and events use TypeID for globally unique, type-safe
// identifiers:
//
//	rcpt_01h2xcejqtf2nbrexx3vqjhp41  // Receipt ID
//	lnk_01h2xcejqtf2nbrexx3vqjhp41   // Link ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of the receipt log.
package tokengate
