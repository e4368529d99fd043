package grouphook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tokengate/tokengate/tier"
)

// Checker answers whether an external identifier currently has access.
// *tokengate.Gate satisfies it.
type Checker interface {
	HasAccessByExternalID(ctx context.Context, externalID string, keys ...tier.Key) (bool, error)
}

// MemberSource lists the external identifiers currently in the group.
type MemberSource interface {
	Members(ctx context.Context) ([]string, error)
}

// Sweeper periodically re-validates every group member against the ledger
// and kicks the ones whose passes expired. Expiry is evaluated lazily on
// read, so without a sweep an expired member stays in the group until the
// next explicit check.
type Sweeper struct {
	checker  Checker
	roster   Roster
	members  MemberSource
	interval time.Duration
	keys     []tier.Key
	logger   *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets the interval between sweeps.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = d
	}
}

// WithSweepTiers restricts the validity check to the given tiers. Without
// it any valid holding keeps a member in the group.
func WithSweepTiers(keys ...tier.Key) SweeperOption {
	return func(s *Sweeper) {
		s.keys = keys
	}
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper creates a Sweeper. Call Start to begin sweeping.
func NewSweeper(checker Checker, roster Roster, members MemberSource, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		checker:  checker,
		roster:   roster,
		members:  members,
		interval: time.Hour,
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sweepWorker(ctx)
}

// Stop terminates the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Sweeper) sweepWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one re-validation pass. Exported so callers can trigger an
// out-of-band sweep (e.g. right after startup).
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	members, err := s.members.Members(ctx)
	if err != nil {
		s.logger.Error("grouphook: listing members failed", "error", err)
		return
	}

	kicked := 0
	for _, externalID := range members {
		valid, err := s.checker.HasAccessByExternalID(ctx, externalID, s.keys...)
		if err != nil {
			s.logger.Error("grouphook: access check failed during sweep",
				"external_id", externalID,
				"error", err,
			)
			continue
		}
		if valid {
			continue
		}

		if err := s.roster.Kick(ctx, externalID); err != nil {
			s.logger.Warn("grouphook: kick failed during sweep",
				"external_id", externalID,
				"error", err,
			)
			continue
		}
		kicked++
	}

	s.logger.Debug("grouphook: sweep complete",
		"members", len(members),
		"kicked", kicked,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
