package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	"github.com/tokengate/tokengate/tier"
	"github.com/tokengate/tokengate/types"
)

// ==================== Tier models ====================

type tierModel struct {
	grove.BaseModel `grove:"table:gate_tiers"`

	Key             uint32    `grove:"key,pk"`
	Name            string    `grove:"name"`
	Description     string    `grove:"description"`
	ImageURL        string    `grove:"image_url"`
	MetadataURL     string    `grove:"metadata_url"`
	PriceAmount     uint64    `grove:"price_amount"`
	PriceCurrency   string    `grove:"price_currency"`
	DurationSeconds uint64    `grove:"duration_seconds"`
	Active          bool      `grove:"active"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toTierModel(t *tier.Tier) *tierModel {
	return &tierModel{
		Key:             uint32(t.Key),
		Name:            t.Name,
		Description:     t.Description,
		ImageURL:        t.ImageURL,
		MetadataURL:     t.MetadataURL,
		PriceAmount:     t.Price.Amount,
		PriceCurrency:   t.Price.Currency,
		DurationSeconds: t.DurationSeconds,
		Active:          t.Active,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromTierModel(m *tierModel) *tier.Tier {
	return &tier.Tier{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Key:             tier.Key(m.Key),
		Name:            m.Name,
		Description:     m.Description,
		ImageURL:        m.ImageURL,
		MetadataURL:     m.MetadataURL,
		Price:           types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		DurationSeconds: m.DurationSeconds,
		Active:          m.Active,
	}
}

// ==================== Link models ====================

type linkModel struct {
	grove.BaseModel `grove:"table:gate_links"`

	Wallet     string    `grove:"wallet,pk"`
	LinkID     string    `grove:"link_id"`
	ExternalID string    `grove:"external_id"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toLinkModel(l *identity.Link) *linkModel {
	return &linkModel{
		Wallet:     l.Wallet.String(),
		LinkID:     l.ID.String(),
		ExternalID: l.ExternalID,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

// ==================== Holding models ====================

type holdingModel struct {
	grove.BaseModel `grove:"table:gate_holdings"`

	ID        string     `grove:"id,pk"` // wallet:tier_key composite
	Wallet    string     `grove:"wallet"`
	TierKey   uint32     `grove:"tier_key"`
	Quantity  uint64     `grove:"quantity"`
	ExpiresAt *time.Time `grove:"expires_at"` // NULL = unbounded
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
}

func holdingID(wallet identity.Address, key tier.Key) string {
	return fmt.Sprintf("%s:%d", wallet, key)
}

func toHoldingModel(h *pass.Holding) *holdingModel {
	return &holdingModel{
		ID:        holdingID(h.Wallet, h.TierKey),
		Wallet:    h.Wallet.String(),
		TierKey:   uint32(h.TierKey),
		Quantity:  h.Quantity,
		ExpiresAt: toNullableTime(h.ExpiresAt),
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}

func fromHoldingModel(m *holdingModel) *pass.Holding {
	return &pass.Holding{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Wallet:    identity.Address(m.Wallet),
		TierKey:   tier.Key(m.TierKey),
		Quantity:  m.Quantity,
		ExpiresAt: fromNullableTime(m.ExpiresAt),
	}
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:gate_receipts"`

	ID          string     `grove:"id,pk"`
	Wallet      string     `grove:"wallet"`
	TierKey     uint32     `grove:"tier_key"`
	Kind        string     `grove:"kind"`
	Quantity    uint64     `grove:"quantity"`
	PaidAmount  uint64     `grove:"paid_amount"`
	PaidCcy     string     `grove:"paid_currency"`
	ExpiresAt   *time.Time `grove:"expires_at"`
	ExternalRef string     `grove:"external_ref"`
	Reason      string     `grove:"reason"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toReceiptModel(r *pass.Receipt) *receiptModel {
	return &receiptModel{
		ID:          r.ID.String(),
		Wallet:      r.Wallet.String(),
		TierKey:     uint32(r.TierKey),
		Kind:        string(r.Kind),
		Quantity:    r.Quantity,
		PaidAmount:  r.AmountPaid.Amount,
		PaidCcy:     r.AmountPaid.Currency,
		ExpiresAt:   toNullableTime(r.ExpiresAt),
		ExternalRef: r.ExternalRef,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*pass.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}

	return &pass.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          receiptID,
		Wallet:      identity.Address(m.Wallet),
		TierKey:     tier.Key(m.TierKey),
		Kind:        pass.Kind(m.Kind),
		Quantity:    m.Quantity,
		AmountPaid:  types.Money{Amount: m.PaidAmount, Currency: m.PaidCcy},
		ExpiresAt:   fromNullableTime(m.ExpiresAt),
		ExternalRef: m.ExternalRef,
		Reason:      m.Reason,
	}, nil
}

// ==================== Helpers ====================

// nowUTC returns the current UTC time.
func nowUTC() time.Time {
	return time.Now().UTC()
}

func toNullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullableTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
