package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/plugin"
	"github.com/xraph/fiscal/store"
)

// Option configures the fiscal Forge extension.
type Option func(*Extension)

// WithStore sets the store for the fiscal engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store on db. driver is one of "sqlite", "postgres"
// or "mongo" and may be left empty when StoreDriver is set in the config.
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.groveDB = db
		if driver != "" {
			e.config.StoreDriver = driver
		}
	}
}

// WithEngineOption passes a fiscal.Option through to the underlying engine.
func WithEngineOption(opt fiscal.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a fiscal plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, fiscal.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents store migrations on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithScheduledCloseInterval sets how often finished days are closed.
func WithScheduledCloseInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ScheduledCloseInterval = d }
}

// WithDisableScheduledClose turns the background close worker off.
func WithDisableScheduledClose() Option {
	return func(e *Extension) { e.config.DisableScheduledClose = true }
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
