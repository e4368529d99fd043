package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so each Emit walks only the plugins that
// implement the corresponding hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onTierDefined       []OnTierDefined
	onTierStatusChanged []OnTierStatusChanged
	onIdentityLinked    []OnIdentityLinked
	onAccessGranted     []OnAccessGranted
	onPurchaseRecorded  []OnPurchaseRecorded
	onAccessRevoked     []OnAccessRevoked
	onAccessChecked     []OnAccessChecked
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTierDefined); ok {
		r.onTierDefined = append(r.onTierDefined, v)
	}
	if v, ok := p.(OnTierStatusChanged); ok {
		r.onTierStatusChanged = append(r.onTierStatusChanged, v)
	}
	if v, ok := p.(OnIdentityLinked); ok {
		r.onIdentityLinked = append(r.onIdentityLinked, v)
	}
	if v, ok := p.(OnAccessGranted); ok {
		r.onAccessGranted = append(r.onAccessGranted, v)
	}
	if v, ok := p.(OnPurchaseRecorded); ok {
		r.onPurchaseRecorded = append(r.onPurchaseRecorded, v)
	}
	if v, ok := p.(OnAccessRevoked); ok {
		r.onAccessRevoked = append(r.onAccessRevoked, v)
	}
	if v, ok := p.(OnAccessChecked); ok {
		r.onAccessChecked = append(r.onAccessChecked, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, gate interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, gate)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierDefined emits a tier defined event.
func (r *Registry) EmitTierDefined(ctx context.Context, t interface{}) {
	r.mu.RLock()
	plugins := r.onTierDefined
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierDefined(ctx, t)
		}); err != nil {
			r.logger.Warn("plugin OnTierDefined failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierStatusChanged emits a tier activation/deactivation event.
func (r *Registry) EmitTierStatusChanged(ctx context.Context, key uint32, active bool) {
	r.mu.RLock()
	plugins := r.onTierStatusChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierStatusChanged(ctx, key, active)
		}); err != nil {
			r.logger.Warn("plugin OnTierStatusChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitIdentityLinked emits an identity linked event.
func (r *Registry) EmitIdentityLinked(ctx context.Context, wallet, oldExternalID, newExternalID string) {
	r.mu.RLock()
	plugins := r.onIdentityLinked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIdentityLinked(ctx, wallet, oldExternalID, newExternalID)
		}); err != nil {
			r.logger.Warn("plugin OnIdentityLinked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessGranted emits an access granted event.
func (r *Registry) EmitAccessGranted(ctx context.Context, receipt interface{}, externalID string) {
	r.mu.RLock()
	plugins := r.onAccessGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessGranted(ctx, receipt, externalID)
		}); err != nil {
			r.logger.Warn("plugin OnAccessGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseRecorded emits a purchase recorded event.
func (r *Registry) EmitPurchaseRecorded(ctx context.Context, receipt interface{}) {
	r.mu.RLock()
	plugins := r.onPurchaseRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseRecorded(ctx, receipt)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessRevoked emits an access revoked event.
func (r *Registry) EmitAccessRevoked(ctx context.Context, receipt interface{}, externalID, reason string) {
	r.mu.RLock()
	plugins := r.onAccessRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessRevoked(ctx, receipt, externalID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnAccessRevoked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessChecked emits an access checked event.
func (r *Registry) EmitAccessChecked(ctx context.Context, wallet string, key uint32, valid bool) {
	r.mu.RLock()
	plugins := r.onAccessChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessChecked(ctx, wallet, key, valid)
		}); err != nil {
			r.logger.Warn("plugin OnAccessChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the access pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
