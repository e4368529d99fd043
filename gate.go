package tokengate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	"github.com/tokengate/tokengate/plugin"
	"github.com/tokengate/tokengate/store"
	"github.com/tokengate/tokengate/tier"
	"github.com/tokengate/tokengate/types"
)

// Gate is the access-entitlement engine: it owns the tier catalog, the
// identity link table, the pass ledger, and the receipt log, and it is the
// only component allowed to mutate them.
//
// All mutating operations (purchase, grant, revoke, relink, tier writes)
// execute behind a single writer lock, so no two mutations on overlapping
// keys ever interleave. The lock is held through the refund step of a
// purchase, which doubles as the re-entrancy guard around the
// mutate-then-transfer sequence. Reads are lock-free at this layer: validity
// is a pure function of committed state and the injected clock.
type Gate struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	settle   Settlement
	now      func() time.Time
	admin    identity.Address
	agents   map[identity.Address]struct{}
	treasury identity.Address

	// Serializes mutating operations, including the settlement transfers
	// bracketing a purchase.
	mu sync.Mutex
}

// New creates a new Gate instance.
func New(s store.Store, opts ...Option) *Gate {
	g := &Gate{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     time.Now,
		agents:  make(map[identity.Address]struct{}),
	}

	for _, opt := range opts {
		opt(g)
	}

	g.plugins.WithLogger(g.logger)

	return g
}

// Option configures a Gate instance.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(g *Gate) {
		_ = g.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source. The gate never self-measures time; tests
// and deployments inject the clock they trust.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithSettlement sets the value-transfer primitive used for purchases.
func WithSettlement(s Settlement) Option {
	return func(g *Gate) {
		g.settle = s
	}
}

// WithAdmin sets the administrative authority wallet.
func WithAdmin(admin identity.Address) Option {
	return func(g *Gate) {
		g.admin = admin
	}
}

// WithAgents designates service-agent wallets (e.g. the messaging bot) that
// may link identities, grant, and revoke on behalf of the administrator.
func WithAgents(agents ...identity.Address) Option {
	return func(g *Gate) {
		for _, a := range agents {
			g.agents[a] = struct{}{}
		}
	}
}

// WithTreasury sets the wallet that collects purchase payments and issues
// refunds.
func WithTreasury(treasury identity.Address) Option {
	return func(g *Gate) {
		g.treasury = treasury
	}
}

// Start migrates the store and initializes plugins.
func (g *Gate) Start(ctx context.Context) error {
	if err := g.store.Migrate(ctx); err != nil {
		return err
	}

	g.plugins.EmitInit(ctx, g)

	g.logger.Info("gate started",
		"admin", g.admin.Short(),
		"agents", len(g.agents),
		"treasury", g.treasury.Short(),
	)

	return nil
}

// Stop shuts down the Gate.
func (g *Gate) Stop() error {
	ctx := context.Background()
	g.plugins.EmitShutdown(ctx)

	return g.store.Close()
}

// Plugins returns the plugin registry, for late registration.
func (g *Gate) Plugins() *plugin.Registry { return g.plugins }

// ──────────────────────────────────────────────────
// Authority checks
// ──────────────────────────────────────────────────

func (g *Gate) isAdmin(a identity.Address) bool {
	return !a.IsZero() && a == g.admin
}

func (g *Gate) isAgent(a identity.Address) bool {
	if a.IsZero() {
		return false
	}
	_, ok := g.agents[a]
	return ok
}

// requireAdmin returns the caller if it is the administrative authority.
func (g *Gate) requireAdmin(ctx context.Context) (identity.Address, error) {
	caller := CallerFrom(ctx)
	if !g.isAdmin(caller) {
		return "", fmt.Errorf("%w: caller %s is not the administrator", ErrUnauthorized, caller.Short())
	}
	return caller, nil
}

// requireOperator returns the caller if it is the administrator or a
// designated service agent.
func (g *Gate) requireOperator(ctx context.Context) (identity.Address, error) {
	caller := CallerFrom(ctx)
	if !g.isAdmin(caller) && !g.isAgent(caller) {
		return "", fmt.Errorf("%w: caller %s is not an operator", ErrUnauthorized, caller.Short())
	}
	return caller, nil
}

// ──────────────────────────────────────────────────
// Tier catalog
// ──────────────────────────────────────────────────

// DefineTier creates or overwrites a tier in the catalog. Administrator only.
// Overwriting is intended for initial setup; changing the price or duration
// of a tier that already has minted passes is logged as a warning because
// issued passes keep their mint-time economics.
func (g *Gate) DefineTier(ctx context.Context, t *tier.Tier) error {
	if _, err := g.requireAdmin(ctx); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: nil tier", ErrInvalidArgument)
	}
	if t.Name == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}
	if t.Price.Currency == "" {
		return ValidationError{Field: "price.currency", Message: "must not be empty"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	existing, err := g.store.GetTier(ctx, t.Key)
	switch {
	case err == nil:
		if !existing.Price.Equal(t.Price) || existing.DurationSeconds != t.DurationSeconds {
			minted, lerr := g.tierHasReceipts(ctx, t.Key)
			if lerr != nil {
				return lerr
			}
			if minted {
				g.logger.Warn("repricing a tier that already has minted passes",
					"tier", t.Key,
					"old_price", existing.Price.String(),
					"new_price", t.Price.String(),
				)
			}
		}
		t.Entity = existing.Entity
		t.TouchAt(g.now())
	case errors.Is(err, ErrTierNotFound):
		t.Entity = types.EntityAt(g.now())
	default:
		return err
	}

	if err := g.store.PutTier(ctx, t); err != nil {
		return err
	}

	g.logger.Info("tier defined",
		"tier", t.Key,
		"name", t.Name,
		"price", t.Price.String(),
		"duration_seconds", t.DurationSeconds,
	)

	g.plugins.EmitTierDefined(ctx, t)
	return nil
}

// SetTierActive activates or deactivates a tier. Administrator only.
// Deactivation stops new purchases without affecting issued passes.
func (g *Gate) SetTierActive(ctx context.Context, key tier.Key, active bool) error {
	if _, err := g.requireAdmin(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SetTierActive(ctx, key, active); err != nil {
		return err
	}

	g.logger.Info("tier status changed", "tier", key, "active", active)
	g.plugins.EmitTierStatusChanged(ctx, uint32(key), active)
	return nil
}

// Tier retrieves a tier by key.
func (g *Gate) Tier(ctx context.Context, key tier.Key) (*tier.Tier, error) {
	return g.store.GetTier(ctx, key)
}

// Tiers lists the catalog.
func (g *Gate) Tiers(ctx context.Context, opts tier.ListOpts) ([]*tier.Tier, error) {
	return g.store.ListTiers(ctx, opts)
}

// ActiveTiers lists tiers currently open for purchase. The listing covers
// the full registered catalog, not a fixed-size window.
func (g *Gate) ActiveTiers(ctx context.Context) ([]*tier.Tier, error) {
	return g.store.ListTiers(ctx, tier.ListOpts{ActiveOnly: true})
}

// tierHasReceipts reports whether any pass was ever minted against the key.
func (g *Gate) tierHasReceipts(ctx context.Context, key tier.Key) (bool, error) {
	receipts, err := g.store.ListReceipts(ctx, pass.ReceiptListOpts{
		TierKey: key,
		HasTier: true,
		Limit:   1,
	})
	if err != nil {
		return false, err
	}
	return len(receipts) > 0, nil
}

// ──────────────────────────────────────────────────
// Identity links
// ──────────────────────────────────────────────────

// LinkIdentity links a wallet to an external messaging identifier. The
// caller must be the wallet itself or an operator. Relinking atomically
// voids the stale mapping in both directions; no reader ever observes two
// external ids resolving to the same wallet.
func (g *Gate) LinkIdentity(ctx context.Context, wallet identity.Address, externalID string) error {
	caller := CallerFrom(ctx)
	if caller != wallet && !g.isAdmin(caller) && !g.isAgent(caller) {
		return fmt.Errorf("%w: caller %s may not link wallet %s", ErrUnauthorized, caller.Short(), wallet.Short())
	}
	if wallet.IsZero() {
		return ValidationError{Field: "wallet", Message: "must not be empty"}
	}
	if externalID == "" {
		return ValidationError{Field: "external_id", Message: "must not be empty"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.linkLocked(ctx, wallet, externalID)
}

// linkLocked performs the relink under the writer lock.
func (g *Gate) linkLocked(ctx context.Context, wallet identity.Address, externalID string) error {
	link := &identity.Link{
		Entity:     types.EntityAt(g.now()),
		ID:         id.NewLinkID(),
		Wallet:     wallet,
		ExternalID: externalID,
	}

	previous, err := g.store.SetLink(ctx, link)
	if err != nil {
		return err
	}

	g.logger.Info("identity linked",
		"wallet", wallet.Short(),
		"external_id", externalID,
		"previous", previous,
	)

	g.plugins.EmitIdentityLinked(ctx, wallet.String(), previous, externalID)
	return nil
}

// ResolveWallet returns the wallet linked to an external identifier.
// Fails with ErrLinkNotFound if the identifier is unlinked.
func (g *Gate) ResolveWallet(ctx context.Context, externalID string) (identity.Address, error) {
	return g.store.WalletByExternalID(ctx, externalID)
}

// ResolveExternalID returns the external identifier linked to a wallet.
// Fails with ErrLinkNotFound if the wallet is unlinked.
func (g *Gate) ResolveExternalID(ctx context.Context, wallet identity.Address) (string, error) {
	return g.store.ExternalIDByWallet(ctx, wallet)
}

// externalIDOf is a lookup that treats "unlinked" as empty, for event
// payloads.
func (g *Gate) externalIDOf(ctx context.Context, wallet identity.Address) string {
	ext, err := g.store.ExternalIDByWallet(ctx, wallet)
	if err != nil {
		return ""
	}
	return ext
}

// ──────────────────────────────────────────────────
// Purchase / Grant / Revoke
// ──────────────────────────────────────────────────

// Purchase mints one pass of the given tier for the calling wallet against a
// payment. The payment is collected in full, the mint is committed, and only
// then is any excess refunded; a failed refund compensates the whole
// purchase (holding restored, receipt removed, payment returned) so no pass
// is ever left minted with a lost refund.
func (g *Gate) Purchase(ctx context.Context, key tier.Key, payment types.Money) (*pass.Receipt, error) {
	caller := CallerFrom(ctx)
	if caller.IsZero() {
		return nil, fmt.Errorf("%w: no caller identity", ErrUnauthorized)
	}
	if g.settle == nil {
		return nil, fmt.Errorf("%w: no settlement configured", ErrPaymentFailed)
	}

	t, err := g.store.GetTier(ctx, key)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: tier %d", ErrTierInactive, key)
	}
	if payment.Currency != t.Price.Currency {
		return nil, fmt.Errorf("%w: payment in %s, tier priced in %s",
			ErrInvalidArgument, payment.Currency, t.Price.Currency)
	}
	if !payment.Covers(t.Price) {
		return nil, fmt.Errorf("%w: got %s, need %s", ErrInsufficientPayment,
			payment.String(), t.Price.String())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Collect the full payment before touching ledger state. A failed
	// collection leaves nothing to unwind.
	if err := g.settle.Transfer(ctx, caller, g.treasury, payment); err != nil {
		return nil, fmt.Errorf("%w: collect %s: %v", ErrPaymentFailed, payment.String(), err)
	}

	receipt, prev, err := g.mintLocked(ctx, caller, t, pass.KindPurchase, t.Price, "")
	if err != nil {
		// Mint failed after collection: return the payment.
		if rerr := g.settle.Transfer(ctx, g.treasury, caller, payment); rerr != nil {
			return nil, errors.Join(err, fmt.Errorf("%w: return payment: %v", ErrRefundFailed, rerr))
		}
		return nil, err
	}

	// Refund any excess strictly after the mint is committed.
	excess := payment.Subtract(t.Price)
	if excess.IsPositive() {
		if rerr := g.settle.Transfer(ctx, g.treasury, caller, excess); rerr != nil {
			cerr := g.compensateMintLocked(ctx, receipt, prev)
			perr := g.settle.Transfer(ctx, g.treasury, caller, payment)
			if perr != nil {
				perr = fmt.Errorf("return payment: %w", perr)
			}
			return nil, errors.Join(
				fmt.Errorf("%w: refund %s: %v", ErrRefundFailed, excess.String(), rerr),
				cerr, perr,
			)
		}
	}

	g.logger.Info("pass purchased",
		"wallet", caller.Short(),
		"tier", key,
		"paid", t.Price.String(),
		"refunded", excess.String(),
		"expires_at", receipt.ExpiresAt,
	)

	externalID := g.externalIDOf(ctx, caller)
	g.plugins.EmitAccessGranted(ctx, receipt, externalID)
	g.plugins.EmitPurchaseRecorded(ctx, receipt)

	return receipt, nil
}

// Grant mints one pass of the given tier for a wallet without payment.
// Operator only. If externalID is non-empty the wallet is atomically
// relinked to it before the mint.
func (g *Gate) Grant(ctx context.Context, wallet identity.Address, key tier.Key, externalID string) (*pass.Receipt, error) {
	if _, err := g.requireOperator(ctx); err != nil {
		return nil, err
	}
	if wallet.IsZero() {
		return nil, ValidationError{Field: "wallet", Message: "must not be empty"}
	}

	t, err := g.store.GetTier(ctx, key)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if externalID != "" {
		if err := g.linkLocked(ctx, wallet, externalID); err != nil {
			return nil, err
		}
	}

	receipt, _, err := g.mintLocked(ctx, wallet, t, pass.KindGrant, types.Zero(t.Price.Currency), "")
	if err != nil {
		return nil, err
	}

	g.logger.Info("pass granted",
		"wallet", wallet.Short(),
		"tier", key,
		"expires_at", receipt.ExpiresAt,
	)

	if externalID == "" {
		externalID = g.externalIDOf(ctx, wallet)
	}
	g.plugins.EmitAccessGranted(ctx, receipt, externalID)

	return receipt, nil
}

// Revoke zeroes the pass balance for (wallet, tier). Operator only. Fails
// with ErrNoBalance if there is nothing to revoke. The reason is recorded on
// the revocation receipt and carried on the emitted event.
func (g *Gate) Revoke(ctx context.Context, wallet identity.Address, key tier.Key, reason string) error {
	if _, err := g.requireOperator(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.store.GetHolding(ctx, wallet, key)
	if errors.Is(err, ErrHoldingNotFound) || (err == nil && h.Quantity == 0) {
		return fmt.Errorf("%w: wallet %s, tier %d", ErrNoBalance, wallet.Short(), key)
	}
	if err != nil {
		return err
	}

	if err := g.store.ClearHolding(ctx, wallet, key); err != nil {
		return err
	}

	receipt := &pass.Receipt{
		Entity:     types.EntityAt(g.now()),
		ID:         id.NewReceiptID(),
		Wallet:     wallet,
		TierKey:    key,
		Kind:       pass.KindRevoke,
		Quantity:   h.Quantity,
		AmountPaid: types.Zero("usd"),
		Reason:     reason,
	}
	if err := g.store.AppendReceipt(ctx, receipt); err != nil {
		// The balance is already gone; the revocation stands even if the
		// audit append failed.
		g.logger.Error("revocation receipt append failed",
			"wallet", wallet.Short(),
			"tier", key,
			"error", err,
		)
	}

	g.logger.Info("pass revoked",
		"wallet", wallet.Short(),
		"tier", key,
		"reason", reason,
	)

	g.plugins.EmitAccessRevoked(ctx, receipt, g.externalIDOf(ctx, wallet), reason)
	return nil
}

// mintLocked increments the holding for (wallet, tier) and appends the
// receipt. Must be called with the writer lock held. Returns the receipt and
// the pre-mint holding snapshot (nil if none existed) for compensation.
func (g *Gate) mintLocked(ctx context.Context, wallet identity.Address, t *tier.Tier, kind pass.Kind, paid types.Money, externalRef string) (*pass.Receipt, *pass.Holding, error) {
	now := g.now()
	expiresAt := pass.ExpiryAt(now, t.DurationSeconds)

	prev, err := g.store.GetHolding(ctx, wallet, t.Key)
	if err != nil && !errors.Is(err, ErrHoldingNotFound) {
		return nil, nil, err
	}

	h := &pass.Holding{
		Entity:    types.EntityAt(now),
		Wallet:    wallet,
		TierKey:   t.Key,
		Quantity:  1,
		ExpiresAt: expiresAt,
	}
	var snapshot *pass.Holding
	if prev != nil {
		cp := *prev
		snapshot = &cp
		h.Entity = prev.Entity
		h.TouchAt(now)
		h.Quantity = prev.Quantity + 1
		h.ExpiresAt = pass.LaterExpiry(prev.ExpiresAt, expiresAt)
	}

	if err := g.store.PutHolding(ctx, h); err != nil {
		return nil, nil, err
	}

	receipt := &pass.Receipt{
		Entity:      types.EntityAt(now),
		ID:          id.NewReceiptID(),
		Wallet:      wallet,
		TierKey:     t.Key,
		Kind:        kind,
		Quantity:    1,
		AmountPaid:  paid,
		ExpiresAt:   expiresAt,
		ExternalRef: externalRef,
	}
	if err := g.store.AppendReceipt(ctx, receipt); err != nil {
		// Unwind the holding so a failed append leaves no state change.
		if snapshot != nil {
			_ = g.store.PutHolding(ctx, snapshot) //nolint:errcheck // best-effort unwind
		} else {
			_ = g.store.ClearHolding(ctx, wallet, t.Key) //nolint:errcheck // best-effort unwind
		}
		return nil, nil, err
	}

	return receipt, snapshot, nil
}

// compensateMintLocked undoes a committed mint after a failed refund.
func (g *Gate) compensateMintLocked(ctx context.Context, receipt *pass.Receipt, prev *pass.Holding) error {
	var errs []error
	if prev != nil {
		if err := g.store.PutHolding(ctx, prev); err != nil {
			errs = append(errs, fmt.Errorf("restore holding: %w", err))
		}
	} else {
		if err := g.store.ClearHolding(ctx, receipt.Wallet, receipt.TierKey); err != nil {
			errs = append(errs, fmt.Errorf("clear holding: %w", err))
		}
	}
	if err := g.store.DeleteReceipt(ctx, receipt.ID); err != nil {
		errs = append(errs, fmt.Errorf("delete receipt: %w", err))
	}
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Access queries
// ──────────────────────────────────────────────────

// IsValid reports whether the wallet holds a currently valid pass of the
// given tier. Expiry is evaluated lazily against the injected clock; nothing
// is mutated on read.
func (g *Gate) IsValid(ctx context.Context, wallet identity.Address, key tier.Key) (bool, error) {
	valid, err := g.validAt(ctx, wallet, key)
	if err != nil {
		return false, err
	}

	g.plugins.EmitAccessChecked(ctx, wallet.String(), uint32(key), valid)
	return valid, nil
}

func (g *Gate) validAt(ctx context.Context, wallet identity.Address, key tier.Key) (bool, error) {
	h, err := g.store.GetHolding(ctx, wallet, key)
	if errors.Is(err, ErrHoldingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return h.ValidAt(g.now()), nil
}

// AnyValid reports whether the wallet holds a currently valid pass of any of
// the given tiers, short-circuiting on the first match. With no keys it
// scans every holding the wallet has — bounded by actual ledger state, never
// by a fixed constant.
func (g *Gate) AnyValid(ctx context.Context, wallet identity.Address, keys ...tier.Key) (bool, error) {
	if len(keys) > 0 {
		for _, key := range keys {
			valid, err := g.validAt(ctx, wallet, key)
			if err != nil {
				return false, err
			}
			if valid {
				return true, nil
			}
		}
		return false, nil
	}

	holdings, err := g.store.ListHoldings(ctx, wallet)
	if err != nil {
		return false, err
	}
	now := g.now()
	for _, h := range holdings {
		if h.ValidAt(now) {
			return true, nil
		}
	}
	return false, nil
}

// BatchIsValid applies AnyValid element-wise over a batch of wallets.
// Elements share no mutable state; results align with the input order.
func (g *Gate) BatchIsValid(ctx context.Context, wallets []identity.Address, keys ...tier.Key) ([]bool, error) {
	results := make([]bool, len(wallets))
	for i, w := range wallets {
		valid, err := g.AnyValid(ctx, w, keys...)
		if err != nil {
			return nil, err
		}
		results[i] = valid
	}
	return results, nil
}

// HasAccessByExternalID resolves an external messaging identifier and checks
// pass validity. An unresolved identifier reads as "no access", never as an
// error — the group manager polls with raw member ids.
func (g *Gate) HasAccessByExternalID(ctx context.Context, externalID string, keys ...tier.Key) (bool, error) {
	wallet, err := g.store.WalletByExternalID(ctx, externalID)
	if errors.Is(err, ErrLinkNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.AnyValid(ctx, wallet, keys...)
}

// ExpirationOf returns the stored expiry for (wallet, tier). The zero time
// means the holding never expires. Fails with ErrHoldingNotFound if the
// wallet has no holding for the tier.
func (g *Gate) ExpirationOf(ctx context.Context, wallet identity.Address, key tier.Key) (time.Time, error) {
	h, err := g.store.GetHolding(ctx, wallet, key)
	if err != nil {
		return time.Time{}, err
	}
	return h.ExpiresAt, nil
}

// Receipts lists audit receipts, newest first.
func (g *Gate) Receipts(ctx context.Context, opts pass.ReceiptListOpts) ([]*pass.Receipt, error) {
	return g.store.ListReceipts(ctx, opts)
}
