// Package observability provides a metrics extension for the gate that
// records lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/tokengate/tokengate/pass"
	"github.com/tokengate/tokengate/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnTierDefined       = (*MetricsExtension)(nil)
	_ plugin.OnTierStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnIdentityLinked    = (*MetricsExtension)(nil)
	_ plugin.OnAccessGranted     = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnAccessRevoked     = (*MetricsExtension)(nil)
	_ plugin.OnAccessChecked     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a gate plugin to automatically track gating metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Tier metrics
	TierDefined     Counter
	TierActivated   Counter
	TierDeactivated Counter

	// Identity metrics
	IdentityLinked   Counter
	IdentityRelinked Counter

	// Pass metrics
	PassesGranted  Counter
	PassesRevoked  Counter
	Purchases      Counter
	PurchaseAmount Histogram

	// Access metrics
	AccessChecks Counter
	AccessDenied Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Tier metrics
		TierDefined:     factory.Counter("tokengate.tier.defined"),
		TierActivated:   factory.Counter("tokengate.tier.activated"),
		TierDeactivated: factory.Counter("tokengate.tier.deactivated"),

		// Identity metrics
		IdentityLinked:   factory.Counter("tokengate.identity.linked"),
		IdentityRelinked: factory.Counter("tokengate.identity.relinked"),

		// Pass metrics
		PassesGranted:  factory.Counter("tokengate.pass.granted"),
		PassesRevoked:  factory.Counter("tokengate.pass.revoked"),
		Purchases:      factory.Counter("tokengate.purchase.recorded"),
		PurchaseAmount: factory.Histogram("tokengate.purchase.amount"),

		// Access metrics
		AccessChecks: factory.Counter("tokengate.access.checks"),
		AccessDenied: factory.Counter("tokengate.access.denied"),

		// Error metrics
		StoreErrors:  factory.Counter("tokengate.store.errors"),
		PluginErrors: factory.Counter("tokengate.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Tier lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierDefined implements plugin.OnTierDefined.
func (m *MetricsExtension) OnTierDefined(_ context.Context, _ interface{}) error {
	m.TierDefined.Inc()
	return nil
}

// OnTierStatusChanged implements plugin.OnTierStatusChanged.
func (m *MetricsExtension) OnTierStatusChanged(_ context.Context, _ uint32, active bool) error {
	if active {
		m.TierActivated.Inc()
	} else {
		m.TierDeactivated.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Identity lifecycle hooks
// ──────────────────────────────────────────────────

// OnIdentityLinked implements plugin.OnIdentityLinked.
func (m *MetricsExtension) OnIdentityLinked(_ context.Context, _, oldExternalID, _ string) error {
	if oldExternalID != "" {
		m.IdentityRelinked.Inc()
	} else {
		m.IdentityLinked.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Pass lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccessGranted implements plugin.OnAccessGranted.
func (m *MetricsExtension) OnAccessGranted(_ context.Context, _ interface{}, _ string) error {
	m.PassesGranted.Inc()
	return nil
}

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (m *MetricsExtension) OnPurchaseRecorded(_ context.Context, receipt interface{}) error {
	m.Purchases.Inc()
	if r, ok := receipt.(*pass.Receipt); ok {
		m.PurchaseAmount.Observe(float64(r.AmountPaid.Amount))
	}
	return nil
}

// OnAccessRevoked implements plugin.OnAccessRevoked.
func (m *MetricsExtension) OnAccessRevoked(_ context.Context, _ interface{}, _, _ string) error {
	m.PassesRevoked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Access check hooks
// ──────────────────────────────────────────────────

// OnAccessChecked implements plugin.OnAccessChecked.
func (m *MetricsExtension) OnAccessChecked(_ context.Context, _ string, _ uint32, valid bool) error {
	m.AccessChecks.Inc()
	if !valid {
		m.AccessDenied.Inc()
	}
	return nil
}
