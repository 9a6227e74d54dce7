package fiscal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/plugin"
	"github.com/xraph/fiscal/store"
)

// ArchiveFormatFunc picks the serialization of daily archives for a ledger.
type ArchiveFormatFunc func(key ledger.Key) export.Format

// Engine is the fiscal ledger engine. It serializes writers per ledger key
// and runs the optional scheduled close worker.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	keys    chain.KeyProvider
	builder *export.Builder
	locks   *keyLocks
	now     func() time.Time

	coder         VerificationCoder
	archiveFormat ArchiveFormatFunc

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	closeInterval time.Duration
	skipMigrate   bool

	errMu      sync.RWMutex
	lastErrors map[ledger.Key]*LastError
}

// LastError is the most recent failure recorded for a ledger.
type LastError struct {
	Code    Code      `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// New creates a new Engine.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		locks:         newKeyLocks(),
		now:           time.Now,
		coder:         DefaultVerificationCode,
		archiveFormat: func(ledger.Key) export.Format { return export.FormatJSON },
		stopChan:      make(chan struct{}),
		lastErrors:    make(map[ledger.Key]*LastError),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.builder == nil {
		e.builder = export.NewBuilder(export.WithClock(e.now))
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithKeyProvider sets where signing keys are resolved from.
func WithKeyProvider(p chain.KeyProvider) Option {
	return func(e *Engine) {
		e.keys = p
	}
}

// WithScheduledClose starts a worker on Start that closes finished business
// days every interval, once the ledger's archive time has passed.
func WithScheduledClose(interval time.Duration) Option {
	return func(e *Engine) {
		e.closeInterval = interval
	}
}

// WithClock overrides the time source used for close and export timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithVerificationCoder overrides how receipt verification codes are built.
func WithVerificationCoder(c VerificationCoder) Option {
	return func(e *Engine) {
		if c != nil {
			e.coder = c
		}
	}
}

// WithArchiveFormat selects the archive serialization per ledger.
func WithArchiveFormat(f ArchiveFormatFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.archiveFormat = f
		}
	}
}

// WithoutMigrate skips store migrations on Start.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

// KeyProvider returns the configured signing key provider.
func (e *Engine) KeyProvider() chain.KeyProvider { return e.keys }

// Start migrates the store, initializes plugins and starts background workers.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	if e.closeInterval > 0 {
		e.wg.Add(1)
		go e.scheduledCloseWorker(ctx)
	}

	e.logger.Info("fiscal engine started",
		"plugins", e.plugins.Count(),
		"scheduled_close_interval", e.closeInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

// Configure creates the ledger for key or replaces its configuration.
// Totals, journal and business date of an existing ledger are kept.
func (e *Engine) Configure(ctx context.Context, key ledger.Key, cfg ledger.Configuration) (*ledger.Ledger, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if cfg.Enabled {
		if cfg.SigningKeyHandle == "" {
			return nil, ValidationError{Field: "signing_key_handle", Message: "required to enable recording"}
		}
		if _, err := chain.ResolveSigner(ctx, e.keys, cfg.SigningKeyHandle); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownSigningKey, cfg.SigningKeyHandle, err)
		}
	}

	unlock := e.locks.lock(key)
	defer unlock()

	created := false
	l, err := e.store.GetLedger(ctx, key)
	switch {
	case IsNotFound(err):
		l = ledger.New(key, cfg.Clone())
		created = true
	case err != nil:
		return nil, fmt.Errorf("load ledger %s: %w", key, err)
	default:
		l = l.Clone()
		l.Config = cfg.Clone()
		l.Touch()
	}

	if err := e.store.SaveLedger(ctx, l); err != nil {
		return nil, fmt.Errorf("save ledger %s: %w", key, err)
	}

	e.logger.Info("ledger configured",
		"key", key.String(),
		"ledger_id", l.ID.String(),
		"created", created,
		"enabled", cfg.Enabled,
	)

	e.plugins.EmitLedgerConfigured(ctx, &event.LedgerConfigured{
		Key:      key,
		LedgerID: l.ID,
		Config:   l.Config.Clone(),
		Created:  created,
		At:       e.now().UTC(),
	})

	return l.Clone(), nil
}

// Snapshot returns a point-in-time deep copy of the ledger.
func (e *Engine) Snapshot(ctx context.Context, key ledger.Key) (*ledger.Ledger, error) {
	key = key.Normalize()
	unlock := e.locks.lock(key)
	l, err := e.store.GetLedger(ctx, key)
	unlock()
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// ListLedgers lists stored ledgers.
func (e *Engine) ListLedgers(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Ledger, error) {
	opts.Country = strings.ToUpper(strings.TrimSpace(opts.Country))
	return e.store.ListLedgers(ctx, opts)
}

// LastError returns the most recent failure of key, or nil.
func (e *Engine) LastError(key ledger.Key) *LastError {
	key = key.Normalize()
	e.errMu.RLock()
	defer e.errMu.RUnlock()

	le, ok := e.lastErrors[key]
	if !ok {
		return nil
	}
	out := *le
	return &out
}

func (e *Engine) setLastError(key ledger.Key, code Code, msg string) {
	e.errMu.Lock()
	e.lastErrors[key] = &LastError{Code: code, Message: msg, At: e.now().UTC()}
	e.errMu.Unlock()
}

func (e *Engine) clearLastError(key ledger.Key) {
	e.errMu.Lock()
	delete(e.lastErrors, key)
	e.errMu.Unlock()
}

// signer resolves the signing key of l.
func (e *Engine) signer(ctx context.Context, l *ledger.Ledger) (*chain.Signer, error) {
	s, err := chain.ResolveSigner(ctx, e.keys, l.Config.SigningKeyHandle)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// isUnknownKey reports whether err means the ledger has no usable key.
func isUnknownKey(err error) bool {
	return errors.Is(err, chain.ErrUnknownKey) || errors.Is(err, chain.ErrEmptyKey)
}
