package tokengate_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/store/memory"
	"github.com/tokengate/tokengate/tier"
	"github.com/tokengate/tokengate/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		adminWallet := identity.Address("AdminWallet11111111111111111111")
		treasuryWallet := identity.Address("TreasuryWallet111111111111111111")

		settle := tokengate.SettlementFunc(func(_ context.Context, _, _ identity.Address, _ types.Money) error {
			return nil
		})

		gate := tokengate.New(store,
			tokengate.WithLogger(slog.Default()),
			tokengate.WithAdmin(adminWallet),
			tokengate.WithTreasury(treasuryWallet),
			tokengate.WithSettlement(settle),
		)

		ctx := context.Background()
		if err := gate.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer gate.Stop()

		// Define a tier
		adminCtx := tokengate.WithCaller(ctx, adminWallet)
		err := gate.DefineTier(adminCtx, &tier.Tier{
			Key:             1,
			Name:            "Gold",
			Description:     "Full group access for a month",
			Price:           types.SOL(1_000_000_000),
			DurationSeconds: 30 * 24 * 3600,
			Active:          true,
		})
		if err != nil {
			t.Fatal(err)
		}

		// Purchase a pass
		buyerWallet := identity.Address("BuyerWallet11111111111111111111")
		buyerCtx := tokengate.WithCaller(ctx, buyerWallet)
		receipt, err := gate.Purchase(buyerCtx, 1, types.SOL(1_200_000_000))
		if err != nil {
			t.Fatal(err)
		}
		if receipt == nil {
			t.Fatal("expected a receipt")
		}

		// Link a messaging identity and check access
		if err := gate.LinkIdentity(buyerCtx, buyerWallet, "tg:12345"); err != nil {
			t.Fatal(err)
		}
		ok, err := gate.HasAccessByExternalID(ctx, "tg:12345")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("buyer's external id should have access")
		}
	})
}
