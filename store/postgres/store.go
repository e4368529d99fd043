// Package postgres provides a PostgreSQL store implementation backed by the
// Grove ORM, for production deployments sharing a database across processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	gatestore "github.com/tokengate/tokengate/store"
	"github.com/tokengate/tokengate/tier"
)

// compile-time interface check
var _ gatestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tokengate/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokengate/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Tier catalog ====================

func (s *Store) PutTier(ctx context.Context, t *tier.Tier) error {
	m := toTierModel(t)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) GetTier(ctx context.Context, key tier.Key) (*tier.Tier, error) {
	m := new(tierModel)
	err := s.pg.NewSelect(m).
		Where("key = ?", uint32(key)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokengate.ErrTierNotFound
		}
		return nil, err
	}
	return fromTierModel(m), nil
}

func (s *Store) ListTiers(ctx context.Context, opts tier.ListOpts) ([]*tier.Tier, error) {
	var models []tierModel
	q := s.pg.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("key ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*tier.Tier, len(models))
	for i := range models {
		result[i] = fromTierModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetTierActive(ctx context.Context, key tier.Key, active bool) error {
	res, err := s.pg.NewUpdate((*tierModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", nowUTC()).
		Where("key = ?", uint32(key)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokengate.ErrTierNotFound
	}
	return nil
}

// ==================== Identity links ====================

// SetLink installs the wallet/external-id pair, voiding any stale entry in
// either direction. The brief window between the deletes and the insert only
// ever reads as "unlinked", which fails closed on access checks.
func (s *Store) SetLink(ctx context.Context, link *identity.Link) (string, error) {
	previous := ""
	prev := new(linkModel)
	err := s.pg.NewSelect(prev).
		Where("wallet = ?", link.Wallet.String()).
		Scan(ctx)
	switch {
	case err == nil:
		previous = prev.ExternalID
	case !isNoRows(err):
		return "", err
	}

	// Void the external id's old wallet, then this wallet's own row.
	if _, err := s.pg.NewDelete((*linkModel)(nil)).
		Where("external_id = ?", link.ExternalID).
		Exec(ctx); err != nil {
		return "", err
	}
	if _, err := s.pg.NewDelete((*linkModel)(nil)).
		Where("wallet = ?", link.Wallet.String()).
		Exec(ctx); err != nil {
		return "", err
	}

	if _, err := s.pg.NewInsert(toLinkModel(link)).Exec(ctx); err != nil {
		return "", err
	}
	return previous, nil
}

func (s *Store) WalletByExternalID(ctx context.Context, externalID string) (identity.Address, error) {
	m := new(linkModel)
	err := s.pg.NewSelect(m).
		Where("external_id = ?", externalID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", tokengate.ErrLinkNotFound
		}
		return "", err
	}
	return identity.Address(m.Wallet), nil
}

func (s *Store) ExternalIDByWallet(ctx context.Context, wallet identity.Address) (string, error) {
	m := new(linkModel)
	err := s.pg.NewSelect(m).
		Where("wallet = ?", wallet.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", tokengate.ErrLinkNotFound
		}
		return "", err
	}
	return m.ExternalID, nil
}

// ==================== Pass holdings ====================

func (s *Store) GetHolding(ctx context.Context, wallet identity.Address, key tier.Key) (*pass.Holding, error) {
	m := new(holdingModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", holdingID(wallet, key)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokengate.ErrHoldingNotFound
		}
		return nil, err
	}
	return fromHoldingModel(m), nil
}

func (s *Store) PutHolding(ctx context.Context, h *pass.Holding) error {
	m := toHoldingModel(h)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) ClearHolding(ctx context.Context, wallet identity.Address, key tier.Key) error {
	_, err := s.pg.NewDelete((*holdingModel)(nil)).
		Where("id = ?", holdingID(wallet, key)).
		Exec(ctx)
	return err
}

func (s *Store) ListHoldings(ctx context.Context, wallet identity.Address) ([]*pass.Holding, error) {
	var models []holdingModel
	err := s.pg.NewSelect(&models).
		Where("wallet = ?", wallet.String()).
		OrderExpr("tier_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*pass.Holding, len(models))
	for i := range models {
		result[i] = fromHoldingModel(&models[i])
	}
	return result, nil
}

// ==================== Receipt log ====================

func (s *Store) AppendReceipt(ctx context.Context, r *pass.Receipt) error {
	_, err := s.pg.NewInsert(toReceiptModel(r)).Exec(ctx)
	return err
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error {
	res, err := s.pg.NewDelete((*receiptModel)(nil)).
		Where("id = ?", receiptID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokengate.ErrReceiptNotFound
	}
	return nil
}

func (s *Store) ListReceipts(ctx context.Context, opts pass.ReceiptListOpts) ([]*pass.Receipt, error) {
	var models []receiptModel
	q := s.pg.NewSelect(&models)

	if opts.Wallet != "" {
		q = q.Where("wallet = ?", opts.Wallet.String())
	}
	if opts.HasTier {
		q = q.Where("tier_key = ?", uint32(opts.TierKey))
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*pass.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
