package extension

// Config holds the gate extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokengate" or "tokengate" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admin is the administrative authority wallet address.
	Admin string `json:"admin" mapstructure:"admin" yaml:"admin"`

	// Agents are the service-agent wallet addresses (e.g. the messaging
	// bot) allowed to link identities, grant, and revoke.
	Agents []string `json:"agents" mapstructure:"agents" yaml:"agents"`

	// Treasury is the wallet that collects payments and issues refunds.
	Treasury string `json:"treasury" mapstructure:"treasury" yaml:"treasury"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}
