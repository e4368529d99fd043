// Package memory provides an in-memory store implementation, suitable for
// tests and single-process deployments that do not need durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/id"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/pass"
	"github.com/tokengate/tokengate/tier"
)

type Store struct {
	mu sync.RWMutex

	// Tier catalog
	tiers map[tier.Key]*tier.Tier

	// Identity links, both directions kept in lockstep
	walletToExt map[identity.Address]string
	extToWallet map[string]identity.Address

	// Pass holdings keyed by wallet|tier
	holdings map[string]*pass.Holding

	// Receipt log, append order
	receipts []*pass.Receipt
}

func New() *Store {
	return &Store{
		tiers:       make(map[tier.Key]*tier.Tier),
		walletToExt: make(map[identity.Address]string),
		extToWallet: make(map[string]identity.Address),
		holdings:    make(map[string]*pass.Holding),
		receipts:    make([]*pass.Receipt, 0),
	}
}

func holdingKey(wallet identity.Address, key tier.Key) string {
	return fmt.Sprintf("%s|%d", wallet, key)
}

// Tier catalog

func (s *Store) PutTier(_ context.Context, t *tier.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tiers[t.Key] = &cp
	return nil
}

func (s *Store) GetTier(_ context.Context, key tier.Key) (*tier.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tiers[key]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, tokengate.ErrTierNotFound
}

func (s *Store) ListTiers(_ context.Context, opts tier.ListOpts) ([]*tier.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tier.Tier, 0, len(s.tiers))
	for _, t := range s.tiers {
		if opts.ActiveOnly && !t.Active {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetTierActive(_ context.Context, key tier.Key, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tiers[key]
	if !ok {
		return tokengate.ErrTierNotFound
	}
	t.Active = active
	return nil
}

// Identity links

func (s *Store) SetLink(_ context.Context, link *identity.Link) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.walletToExt[link.Wallet]

	// Void stale entries in both directions before installing the new pair:
	// the wallet's old external id, and the external id's old wallet.
	if previous != "" {
		delete(s.extToWallet, previous)
	}
	if oldWallet, ok := s.extToWallet[link.ExternalID]; ok {
		delete(s.walletToExt, oldWallet)
	}

	s.walletToExt[link.Wallet] = link.ExternalID
	s.extToWallet[link.ExternalID] = link.Wallet
	return previous, nil
}

func (s *Store) WalletByExternalID(_ context.Context, externalID string) (identity.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.extToWallet[externalID]; ok {
		return w, nil
	}
	return "", tokengate.ErrLinkNotFound
}

func (s *Store) ExternalIDByWallet(_ context.Context, wallet identity.Address) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ext, ok := s.walletToExt[wallet]; ok {
		return ext, nil
	}
	return "", tokengate.ErrLinkNotFound
}

// Pass holdings

func (s *Store) GetHolding(_ context.Context, wallet identity.Address, key tier.Key) (*pass.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.holdings[holdingKey(wallet, key)]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, tokengate.ErrHoldingNotFound
}

func (s *Store) PutHolding(_ context.Context, h *pass.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *h
	s.holdings[holdingKey(h.Wallet, h.TierKey)] = &cp
	return nil
}

func (s *Store) ClearHolding(_ context.Context, wallet identity.Address, key tier.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holdings, holdingKey(wallet, key))
	return nil
}

func (s *Store) ListHoldings(_ context.Context, wallet identity.Address) ([]*pass.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pass.Holding, 0)
	for _, h := range s.holdings {
		if h.Wallet == wallet {
			cp := *h
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TierKey < result[j].TierKey })
	return result, nil
}

// Receipt log

func (s *Store) AppendReceipt(_ context.Context, r *pass.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.receipts = append(s.receipts, &cp)
	return nil
}

func (s *Store) DeleteReceipt(_ context.Context, receiptID id.ReceiptID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.receipts {
		if r.ID == receiptID {
			s.receipts = append(s.receipts[:i], s.receipts[i+1:]...)
			return nil
		}
	}
	return tokengate.ErrReceiptNotFound
}

func (s *Store) ListReceipts(_ context.Context, opts pass.ReceiptListOpts) ([]*pass.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pass.Receipt, 0)
	// Newest first.
	for i := len(s.receipts) - 1; i >= 0; i-- {
		r := s.receipts[i]
		if opts.Wallet != "" && r.Wallet != opts.Wallet {
			continue
		}
		if opts.HasTier && r.TierKey != opts.TierKey {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
