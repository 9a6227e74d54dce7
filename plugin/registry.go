package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/fiscal/event"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onLedgerConfigured      []OnLedgerConfigured
	onJournalEntryRecorded  []OnJournalEntryRecorded
	onRecordFailed          []OnRecordFailed
	onDailyArchiveGenerated []OnDailyArchiveGenerated
	onDailyClosed           []OnDailyClosed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
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

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnLedgerConfigured); ok {
		r.onLedgerConfigured = append(r.onLedgerConfigured, v)
	}
	if v, ok := p.(OnJournalEntryRecorded); ok {
		r.onJournalEntryRecorded = append(r.onJournalEntryRecorded, v)
	}
	if v, ok := p.(OnRecordFailed); ok {
		r.onRecordFailed = append(r.onRecordFailed, v)
	}
	if v, ok := p.(OnDailyArchiveGenerated); ok {
		r.onDailyArchiveGenerated = append(r.onDailyArchiveGenerated, v)
	}
	if v, ok := p.(OnDailyClosed); ok {
		r.onDailyClosed = append(r.onDailyClosed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnLedgerConfigured)(nil)).Elem(), "OnLedgerConfigured")
	checkInterface(reflect.TypeOf((*OnJournalEntryRecorded)(nil)).Elem(), "OnJournalEntryRecorded")
	checkInterface(reflect.TypeOf((*OnRecordFailed)(nil)).Elem(), "OnRecordFailed")
	checkInterface(reflect.TypeOf((*OnDailyArchiveGenerated)(nil)).Elem(), "OnDailyArchiveGenerated")
	checkInterface(reflect.TypeOf((*ArchiveSink)(nil)).Elem(), "ArchiveSink")
	checkInterface(reflect.TypeOf((*OnDailyClosed)(nil)).Elem(), "OnDailyClosed")

	return interfaces
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
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
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

// EmitLedgerConfigured emits a ledger configured event.
func (r *Registry) EmitLedgerConfigured(ctx context.Context, e *event.LedgerConfigured) {
	r.mu.RLock()
	plugins := r.onLedgerConfigured
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLedgerConfigured(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnLedgerConfigured failed",
				"plugin", p.Name(),
				"ledger", e.Key.String(),
				"error", err,
			)
		}
	}
}

// EmitJournalEntryRecorded emits a journal entry recorded event.
func (r *Registry) EmitJournalEntryRecorded(ctx context.Context, e *event.JournalEntryRecorded) {
	r.mu.RLock()
	plugins := r.onJournalEntryRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnJournalEntryRecorded(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnJournalEntryRecorded failed",
				"plugin", p.Name(),
				"ledger", e.Key.String(),
				"sequence", e.Entry.SequenceNumber,
				"error", err,
			)
		}
	}
}

// EmitRecordFailed emits a record failed event.
func (r *Registry) EmitRecordFailed(ctx context.Context, e *event.RecordFailed) {
	r.mu.RLock()
	plugins := r.onRecordFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecordFailed(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnRecordFailed failed",
				"plugin", p.Name(),
				"ledger", e.Key.String(),
				"error", err,
			)
		}
	}
}

// EmitDailyArchiveGenerated emits a daily archive generated event. Failures
// of archive sinks are joined and returned; other hooks are only logged.
func (r *Registry) EmitDailyArchiveGenerated(ctx context.Context, e *event.DailyArchiveGenerated) error {
	r.mu.RLock()
	plugins := r.onDailyArchiveGenerated
	r.mu.RUnlock()

	var errs []error
	for _, p := range plugins {
		err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDailyArchiveGenerated(ctx, e)
		})
		if err == nil {
			continue
		}
		if s, ok := p.(ArchiveSink); ok && s.PersistsArchives() {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		r.logger.Warn("plugin OnDailyArchiveGenerated failed",
			"plugin", p.Name(),
			"ledger", e.Key.String(),
			"business_date", e.BusinessDate,
			"error", err,
		)
	}
	return errors.Join(errs...)
}

// EmitDailyClosed emits a daily closed event.
func (r *Registry) EmitDailyClosed(ctx context.Context, e *event.DailyClosed) {
	r.mu.RLock()
	plugins := r.onDailyClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDailyClosed(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnDailyClosed failed",
				"plugin", p.Name(),
				"ledger", e.Key.String(),
				"business_date", e.BusinessDate,
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the recording pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
