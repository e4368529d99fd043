package extension

import (
	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/plugin"
	"github.com/tokengate/tokengate/store"
)

// Option configures the gate Forge extension.
type Option func(*Extension)

// WithStore sets the store for the gate engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateOption passes a tokengate.Option through to the underlying engine.
func WithGateOption(opt tokengate.Option) Option {
	return func(e *Extension) {
		e.gateOpts = append(e.gateOpts, opt)
	}
}

// WithPlugin registers a gate plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.gateOpts = append(e.gateOpts, tokengate.WithPlugin(p))
	}
}

// WithSettlement sets the value-transfer primitive for purchases.
func WithSettlement(s tokengate.Settlement) Option {
	return func(e *Extension) {
		e.gateOpts = append(e.gateOpts, tokengate.WithSettlement(s))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
