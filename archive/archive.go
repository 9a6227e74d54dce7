// Package archive persists daily archives emitted by the fiscal engine.
//
// The Plugin listens for DailyArchiveGenerated, serializes the artifact in
// the ledger's archive format and hands it to a Sink behind a circuit
// breaker. Archive delivery is at-least-once; object names are derived from
// the ledger key and the archived sequence range, so a repeated delivery of
// the same day overwrites the same object.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/plugin"
)

// Lister is implemented by sinks that can enumerate their objects.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrNotFound is returned by Sink.Get for unknown objects.
var ErrNotFound = errors.New("archive: object not found")

// Sink stores archive documents.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// ObjectName returns the storage name of an archive:
// "{tenant}/{country}/{site}/{date}_{first}-{last}.{ext}".
func ObjectName(key ledger.Key, date string, a *export.Artifact, f export.Format) string {
	return path.Join(
		safe(key.TenantID),
		safe(key.Country),
		safe(key.SiteID),
		fmt.Sprintf("%s_%010d-%010d.%s", date, a.Footer.FirstSequenceNumber, a.Footer.LastSequenceNumber, f.Extension()),
	)
}

func safe(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

var (
	_ plugin.Plugin                  = (*Plugin)(nil)
	_ plugin.OnDailyArchiveGenerated = (*Plugin)(nil)
	_ plugin.ArchiveSink             = (*Plugin)(nil)
)

// Plugin writes every generated daily archive to a Sink.
type Plugin struct {
	sink    Sink
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	format  func(*event.DailyArchiveGenerated) export.Format
}

// Option configures a Plugin.
type Option func(*pluginConfig)

type pluginConfig struct {
	settings gobreaker.Settings
	logger   *slog.Logger
	format   func(*event.DailyArchiveGenerated) export.Format
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *pluginConfig) { c.logger = l }
}

// WithBreaker replaces the circuit breaker settings.
func WithBreaker(s gobreaker.Settings) Option {
	return func(c *pluginConfig) { c.settings = s }
}

// WithFormat overrides the archive format carried by the event.
func WithFormat(f export.Format) Option {
	return func(c *pluginConfig) {
		c.format = func(*event.DailyArchiveGenerated) export.Format { return f }
	}
}

// NewPlugin creates a Plugin. By default the breaker opens after five
// consecutive failures and retries after a minute.
func NewPlugin(sink Sink, opts ...Option) *Plugin {
	cfg := &pluginConfig{
		logger: slog.Default(),
		format: func(e *event.DailyArchiveGenerated) export.Format { return e.Format },
	}
	cfg.settings = gobreaker.Settings{
		Name:    "fiscal-archive",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if cfg.settings.OnStateChange == nil {
		cfg.settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("archive breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}
	}

	return &Plugin{
		sink:    sink,
		breaker: gobreaker.NewCircuitBreaker(cfg.settings),
		logger:  cfg.logger,
		format:  cfg.format,
	}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "archive" }

// PersistsArchives implements plugin.ArchiveSink. A failed Put aborts the
// rollover or close, and the day stays in the ledger until the sink
// accepts it.
func (p *Plugin) PersistsArchives() bool { return true }

// State reports the breaker state.
func (p *Plugin) State() gobreaker.State { return p.breaker.State() }

// OnDailyArchiveGenerated implements plugin.OnDailyArchiveGenerated.
func (p *Plugin) OnDailyArchiveGenerated(ctx context.Context, e *event.DailyArchiveGenerated) error {
	if e.Artifact == nil {
		return nil
	}
	name, err := p.Store(ctx, e)
	if err != nil {
		p.logger.Error("daily archive not stored",
			"key", e.Key.String(),
			"business_date", e.BusinessDate,
			"error", err,
		)
		return err
	}
	p.logger.Info("daily archive stored",
		"key", e.Key.String(),
		"business_date", e.BusinessDate,
		"object", name,
		"entries", len(e.Artifact.Entries),
	)
	return nil
}

// Store serializes and writes the archive of e and returns its object name.
func (p *Plugin) Store(ctx context.Context, e *event.DailyArchiveGenerated) (string, error) {
	f := p.format(e)
	if f == "" {
		f = export.FormatJSON
	}
	doc, err := export.Encode(ctx, e.Artifact, f, e.Location())
	if err != nil {
		return "", fmt.Errorf("archive: encode %s: %w", e.BusinessDate, err)
	}

	name := ObjectName(e.Key, e.BusinessDate, e.Artifact, doc.Format)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.sink.Put(ctx, name, doc.ContentType, doc.Data)
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", name, err)
	}
	return name, nil
}

// Load reads an archive back and decodes it. The format is taken from the
// object name's extension.
func Load(ctx context.Context, sink Sink, name string) (*export.Artifact, error) {
	f, err := export.ParseFormat(strings.TrimPrefix(path.Ext(name), "."))
	if err != nil {
		return nil, err
	}
	data, err := sink.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return export.Decode(f, data)
}
