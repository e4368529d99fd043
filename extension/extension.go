// Package extension provides the Forge extension adapter for the gate.
//
// It implements the forge.Extension interface to integrate the gate
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tokengate" or
// "tokengate" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/identity"
	"github.com/tokengate/tokengate/store"
	"github.com/tokengate/tokengate/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tokengate"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Soulbound access pass ledger for gated groups"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the gate as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *tokengate.Gate
	store    store.Store
	gateOpts []tokengate.Option
}

// New creates a new gate Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Gate instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tokengate.Gate { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the gate engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildGateOpts()

	e.engine = tokengate.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*tokengate.Gate, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tokengate: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tokengate: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildGateOpts constructs tokengate.Option values from the resolved config.
func (e *Extension) buildGateOpts() []tokengate.Option {
	opts := make([]tokengate.Option, 0, len(e.gateOpts)+3)

	if e.config.Admin != "" {
		opts = append(opts, tokengate.WithAdmin(identity.Address(e.config.Admin)))
	}
	if len(e.config.Agents) > 0 {
		agents := make([]identity.Address, len(e.config.Agents))
		for i, a := range e.config.Agents {
			agents[i] = identity.Address(a)
		}
		opts = append(opts, tokengate.WithAgents(agents...))
	}
	if e.config.Treasury != "" {
		opts = append(opts, tokengate.WithTreasury(identity.Address(e.config.Treasury)))
	}

	// Append any pass-through gate options.
	opts = append(opts, e.gateOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tokengate: configuration is required but not found in config files; " +
				"ensure 'extensions.tokengate' or 'tokengate' key exists in your config")
		}

		e.config = programmaticConfig
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tokengate: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("admin_set", e.config.Admin != ""),
		forge.F("agents", len(e.config.Agents)),
		forge.F("treasury_set", e.config.Treasury != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tokengate" first (namespaced pattern).
	if cm.IsSet("extensions.tokengate") {
		if err := cm.Bind("extensions.tokengate", &cfg); err == nil {
			e.Logger().Debug("tokengate: loaded config from file",
				forge.F("key", "extensions.tokengate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tokengate: failed to bind extensions.tokengate config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tokengate" key.
	if cm.IsSet("tokengate") {
		if err := cm.Bind("tokengate", &cfg); err == nil {
			e.Logger().Debug("tokengate: loaded config from file",
				forge.F("key", "tokengate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tokengate: failed to bind tokengate config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Admin == "" && programmaticConfig.Admin != "" {
		yamlConfig.Admin = programmaticConfig.Admin
	}
	if yamlConfig.Treasury == "" && programmaticConfig.Treasury != "" {
		yamlConfig.Treasury = programmaticConfig.Treasury
	}
	if len(yamlConfig.Agents) == 0 && len(programmaticConfig.Agents) > 0 {
		yamlConfig.Agents = programmaticConfig.Agents
	}

	return yamlConfig
}
