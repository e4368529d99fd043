// Package mongo provides a MongoDB store implementation backed by the Grove
// ORM mongo driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	gatestore "github.com/tokengate/tokengate/store"
	"github.com/tokengate/tokengate/tier"
)

// Collection name constants.
const (
	colTiers    = "gate_tiers"
	colLinks    = "gate_links"
	colHoldings = "gate_holdings"
	colReceipts = "gate_receipts"
)

// compile-time interface check
var _ gatestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all gate collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tokengate/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Key}).
		SetUpdate(bson.M{"$set": bson.M{
			"name":             m.Name,
			"description":      m.Description,
			"image_url":        m.ImageURL,
			"metadata_url":     m.MetadataURL,
			"price_amount":     m.PriceAmount,
			"price_currency":   m.PriceCurrency,
			"duration_seconds": m.DurationSeconds,
			"active":           m.Active,
			"created_at":       m.CreatedAt,
			"updated_at":       m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: put tier: %w", err)
	}
	return nil
}

func (s *Store) GetTier(ctx context.Context, key tier.Key) (*tier.Tier, error) {
	var m tierModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": uint32(key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokengate.ErrTierNotFound
		}
		return nil, fmt.Errorf("tokengate/mongo: get tier: %w", err)
	}
	return fromTierModel(&m), nil
}

func (s *Store) ListTiers(ctx context.Context, opts tier.ListOpts) ([]*tier.Tier, error) {
	var models []tierModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokengate/mongo: list tiers: %w", err)
	}

	result := make([]*tier.Tier, len(models))
	for i := range models {
		result[i] = fromTierModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetTierActive(ctx context.Context, key tier.Key, active bool) error {
	res, err := s.mdb.NewUpdate((*tierModel)(nil)).
		Filter(bson.M{"_id": uint32(key)}).
		Set("active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: set tier active: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tokengate.ErrTierNotFound
	}
	return nil
}

// ==================== Identity links ====================

// SetLink installs the wallet/external-id pair, voiding any stale entry in
// either direction. A reader racing the swap only ever sees "unlinked",
// which fails closed on access checks.
func (s *Store) SetLink(ctx context.Context, link *identity.Link) (string, error) {
	previous := ""
	var prev linkModel
	err := s.mdb.NewFind(&prev).
		Filter(bson.M{"_id": link.Wallet.String()}).
		Scan(ctx)
	switch {
	case err == nil:
		previous = prev.ExternalID
	case !isNoDocuments(err):
		return "", fmt.Errorf("tokengate/mongo: read previous link: %w", err)
	}

	// Void the external id's old wallet first, then replace this wallet's
	// own document.
	if _, err := s.mdb.NewDelete((*linkModel)(nil)).
		Filter(bson.M{"external_id": link.ExternalID}).
		Exec(ctx); err != nil {
		return "", fmt.Errorf("tokengate/mongo: clear stale link: %w", err)
	}

	m := toLinkModel(link)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Wallet}).
		SetUpdate(bson.M{"$set": bson.M{
			"link_id":     m.LinkID,
			"external_id": m.ExternalID,
			"created_at":  m.CreatedAt,
			"updated_at":  m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx); err != nil {
		return "", fmt.Errorf("tokengate/mongo: set link: %w", err)
	}
	return previous, nil
}

func (s *Store) WalletByExternalID(ctx context.Context, externalID string) (identity.Address, error) {
	var m linkModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"external_id": externalID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return "", tokengate.ErrLinkNotFound
		}
		return "", fmt.Errorf("tokengate/mongo: wallet by external id: %w", err)
	}
	return identity.Address(m.Wallet), nil
}

func (s *Store) ExternalIDByWallet(ctx context.Context, wallet identity.Address) (string, error) {
	var m linkModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": wallet.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return "", tokengate.ErrLinkNotFound
		}
		return "", fmt.Errorf("tokengate/mongo: external id by wallet: %w", err)
	}
	return m.ExternalID, nil
}

// ==================== Pass holdings ====================

func (s *Store) GetHolding(ctx context.Context, wallet identity.Address, key tier.Key) (*pass.Holding, error) {
	var m holdingModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": holdingID(wallet, key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokengate.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("tokengate/mongo: get holding: %w", err)
	}
	return fromHoldingModel(&m), nil
}

func (s *Store) PutHolding(ctx context.Context, h *pass.Holding) error {
	m := toHoldingModel(h)
	set := bson.M{
		"wallet":     m.Wallet,
		"tier_key":   m.TierKey,
		"quantity":   m.Quantity,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if m.ExpiresAt != nil {
		set["expires_at"] = *m.ExpiresAt
	} else {
		// Absent expires_at means the holding never expires.
		update["$unset"] = bson.M{"expires_at": ""}
	}

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(update).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: put holding: %w", err)
	}
	return nil
}

func (s *Store) ClearHolding(ctx context.Context, wallet identity.Address, key tier.Key) error {
	_, err := s.mdb.NewDelete((*holdingModel)(nil)).
		Filter(bson.M{"_id": holdingID(wallet, key)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: clear holding: %w", err)
	}
	return nil
}

func (s *Store) ListHoldings(ctx context.Context, wallet identity.Address) ([]*pass.Holding, error) {
	var models []holdingModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"wallet": wallet.String()}).
		Sort(bson.D{{Key: "tier_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokengate/mongo: list holdings: %w", err)
	}

	result := make([]*pass.Holding, len(models))
	for i := range models {
		result[i] = fromHoldingModel(&models[i])
	}
	return result, nil
}

// ==================== Receipt log ====================

func (s *Store) AppendReceipt(ctx context.Context, r *pass.Receipt) error {
	_, err := s.mdb.NewInsert(toReceiptModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: append receipt: %w", err)
	}
	return nil
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error {
	res, err := s.mdb.NewDelete((*receiptModel)(nil)).
		Filter(bson.M{"_id": receiptID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokengate/mongo: delete receipt: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tokengate.ErrReceiptNotFound
	}
	return nil
}

func (s *Store) ListReceipts(ctx context.Context, opts pass.ReceiptListOpts) ([]*pass.Receipt, error) {
	var models []receiptModel

	filter := bson.M{}
	if opts.Wallet != "" {
		filter["wallet"] = opts.Wallet.String()
	}
	if opts.HasTier {
		filter["tier_key"] = uint32(opts.TierKey)
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokengate/mongo: list receipts: %w", err)
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all gate collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTiers: {
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		colLinks: {
			{
				Keys:    bson.D{{Key: "external_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colHoldings: {
			{
				Keys:    bson.D{{Key: "wallet", Value: 1}, {Key: "tier_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colReceipts: {
			{Keys: bson.D{{Key: "wallet", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "tier_key", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}}},
		},
	}
}
