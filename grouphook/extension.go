// Package grouphook bridges gate lifecycle events to a group roster backend
// (a Telegram group, a Discord server, any membership list with invite and
// kick primitives).
//
// It defines a local Roster interface so the package does not import any
// messaging SDK directly. Callers inject a RosterFunc pair that bridges to
// the concrete bot client at wiring time.
package grouphook

import (
	"context"
	"log/slog"

	"github.com/tokengate/tokengate/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnAccessGranted  = (*Extension)(nil)
	_ plugin.OnAccessRevoked  = (*Extension)(nil)
	_ plugin.OnIdentityLinked = (*Extension)(nil)
)

// Roster is the interface that group backends must implement. Operations
// take the member's external messaging identifier, never a wallet.
type Roster interface {
	// Invite admits the member to the group. Inviting an existing member
	// must be a no-op.
	Invite(ctx context.Context, externalID string) error
	// Kick removes the member from the group. Kicking an absent member
	// must be a no-op.
	Kick(ctx context.Context, externalID string) error
}

// RosterFuncs is an adapter to use plain functions as a Roster.
type RosterFuncs struct {
	InviteFunc func(ctx context.Context, externalID string) error
	KickFunc   func(ctx context.Context, externalID string) error
}

// Invite implements Roster.
func (r RosterFuncs) Invite(ctx context.Context, externalID string) error {
	if r.InviteFunc == nil {
		return nil
	}
	return r.InviteFunc(ctx, externalID)
}

// Kick implements Roster.
func (r RosterFuncs) Kick(ctx context.Context, externalID string) error {
	if r.KickFunc == nil {
		return nil
	}
	return r.KickFunc(ctx, externalID)
}

// Extension bridges gate lifecycle events to a group roster backend.
type Extension struct {
	roster  Roster
	enabled map[string]bool // nil = all enabled
	logger  *slog.Logger
}

// New creates an Extension that manages group membership through the
// provided Roster.
func New(r Roster, opts ...Option) *Extension {
	e := &Extension{
		roster: r,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "group-hook" }

// OnAccessGranted implements plugin.OnAccessGranted. A wallet without a
// linked external id gets its pass minted silently; the invite happens when
// the link arrives.
func (e *Extension) OnAccessGranted(ctx context.Context, _ interface{}, externalID string) error {
	if externalID == "" || !e.actionEnabled(ActionMemberInvited) {
		return nil
	}

	if err := e.roster.Invite(ctx, externalID); err != nil {
		e.logger.Warn("grouphook: invite failed",
			"external_id", externalID,
			"error", err,
		)
		return nil
	}

	e.logger.Info("grouphook: member invited", "external_id", externalID)
	return nil
}

// OnAccessRevoked implements plugin.OnAccessRevoked.
func (e *Extension) OnAccessRevoked(ctx context.Context, _ interface{}, externalID, reason string) error {
	if externalID == "" || !e.actionEnabled(ActionMemberKicked) {
		return nil
	}

	if err := e.roster.Kick(ctx, externalID); err != nil {
		e.logger.Warn("grouphook: kick failed",
			"external_id", externalID,
			"reason", reason,
			"error", err,
		)
		return nil
	}

	e.logger.Info("grouphook: member kicked",
		"external_id", externalID,
		"reason", reason,
	)
	return nil
}

// OnIdentityLinked implements plugin.OnIdentityLinked. The stale external id
// lost its claim on the wallet's passes, so it leaves the group; the new id
// is admitted on its next granted event or sweep, once validity is known.
func (e *Extension) OnIdentityLinked(ctx context.Context, wallet, oldExternalID, newExternalID string) error {
	if oldExternalID == "" || oldExternalID == newExternalID {
		return nil
	}
	if !e.actionEnabled(ActionMemberRelinked) {
		return nil
	}

	if err := e.roster.Kick(ctx, oldExternalID); err != nil {
		e.logger.Warn("grouphook: kick of stale link failed",
			"wallet", wallet,
			"external_id", oldExternalID,
			"error", err,
		)
		return nil
	}

	e.logger.Info("grouphook: stale member kicked after relink",
		"external_id", oldExternalID,
		"new_external_id", newExternalID,
	)
	return nil
}

func (e *Extension) actionEnabled(action string) bool {
	return e.enabled == nil || e.enabled[action]
}
