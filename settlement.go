package tokengate

import (
	"context"

	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/types"
)

// Settlement is the inbound value-transfer primitive the gate consumes.
// Transfer moves value atomically between two wallets and fails loudly on
// insufficient funds; it must never partially apply. The gate calls it to
// collect purchase payments into the treasury and to refund overpayment.
//
// Implementations wrap whatever actually settles value — an on-chain
// transfer, a custodial balance table, a payment processor. The gate never
// retries a transfer on its own: retry policy belongs to the implementation,
// which must guarantee a retried refund cannot double-spend.
type Settlement interface {
	Transfer(ctx context.Context, from, to identity.Address, amount types.Money) error
}

// SettlementFunc is an adapter to use a plain function as a Settlement.
type SettlementFunc func(ctx context.Context, from, to identity.Address, amount types.Money) error

// Transfer implements Settlement.
func (f SettlementFunc) Transfer(ctx context.Context, from, to identity.Address, amount types.Money) error {
	return f(ctx, from, to, amount)
}
