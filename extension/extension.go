// Package extension provides the Forge extension adapter for the fiscal
// engine.
//
// It implements the forge.Extension interface to integrate the engine into
// a Forge application with DI registration and lifecycle management. The
// engine is wired with the country profiles for verification codes and
// archive formats.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.fiscal" or "fiscal" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/country"
	"github.com/xraph/fiscal/store"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/store/mongo"
	"github.com/xraph/fiscal/store/postgres"
	"github.com/xraph/fiscal/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fiscal"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Tamper-evident fiscal journal for point-of-sale transactions"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the fiscal engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *fiscal.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []fiscal.Option
}

// New creates a new fiscal Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *fiscal.Engine { return e.engine }

// Adapter returns the country adapter for key.
func (e *Extension) Adapter(key fiscal.Key) (*country.LedgerAdapter, error) {
	if e.engine == nil {
		return nil, errors.New("fiscal: extension not initialized")
	}
	return country.New(e.engine, key)
}

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.resolveStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	eng := fiscal.New(e.store, e.buildEngineOpts()...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*fiscal.Engine, error) {
		return e.engine, nil
	})
}

// resolveStore builds the backend for the configured grove database, or an
// in-memory store when none was given.
func (e *Extension) resolveStore() (store.Store, error) {
	if e.groveDB == nil {
		e.Logger().Warn("fiscal: no store configured, using in-memory store")
		return memory.New(), nil
	}
	return NewGroveStore(e.groveDB, e.config.StoreDriver)
}

// NewGroveStore returns the store for driver on db.
func NewGroveStore(db *grove.DB, driver string) (store.Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return sqlite.New(db), nil
	case "postgres", "postgresql", "pg":
		return postgres.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("fiscal: unknown store driver %q", driver)
	}
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("fiscal: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
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
		return errors.New("fiscal: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs fiscal.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []fiscal.Option {
	opts := make([]fiscal.Option, 0, len(e.engineOpts)+5)

	opts = append(opts,
		fiscal.WithVerificationCoder(country.VerificationCode),
		fiscal.WithArchiveFormat(country.ArchiveFormat),
	)

	if e.config.DisableMigrate {
		opts = append(opts, fiscal.WithoutMigrate())
	}
	if !e.config.DisableScheduledClose && e.config.ScheduledCloseInterval > 0 {
		opts = append(opts, fiscal.WithScheduledClose(e.config.ScheduledCloseInterval))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, fiscal.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

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
			return errors.New("fiscal: configuration is required but not found in config files; " +
				"ensure 'extensions.fiscal' or 'fiscal' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("fiscal: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("scheduled_close_interval", e.config.ScheduledCloseInterval),
		forge.F("disable_scheduled_close", e.config.DisableScheduledClose),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("store_driver", e.config.StoreDriver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.fiscal", "fiscal"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("fiscal: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("fiscal: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ScheduledCloseInterval == 0 {
		cfg.ScheduledCloseInterval = defaults.ScheduledCloseInterval
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableScheduledClose {
		yamlConfig.DisableScheduledClose = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.StoreDriver == "" && programmaticConfig.StoreDriver != "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.ScheduledCloseInterval == 0 && programmaticConfig.ScheduledCloseInterval != 0 {
		yamlConfig.ScheduledCloseInterval = programmaticConfig.ScheduledCloseInterval
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
