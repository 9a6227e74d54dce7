package extension

import "time"

// Config holds the fiscal extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fiscal" or "fiscal" keys).
type Config struct {
	// DisableMigrate prevents store migrations on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ScheduledCloseInterval is how often finished business days are closed
	// in the background (default: 1m).
	ScheduledCloseInterval time.Duration `json:"scheduled_close_interval" mapstructure:"scheduled_close_interval" yaml:"scheduled_close_interval"`

	// DisableScheduledClose turns the background close worker off.
	DisableScheduledClose bool `json:"disable_scheduled_close" mapstructure:"disable_scheduled_close" yaml:"disable_scheduled_close"`

	// PluginTimeout bounds every plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// StoreDriver selects the backend built on the grove database passed
	// with WithGroveDB: "sqlite", "postgres" or "mongo".
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ScheduledCloseInterval: time.Minute,
		PluginTimeout:          5 * time.Second,
	}
}
