// Package natsbus publishes fiscal engine events to NATS.
//
// Every event is wrapped in an Envelope and published as JSON on
// "{prefix}{event type}.{tenant}.{country}.{site}", for example
// "fiscal.journal.entry_recorded.acme.DE.berlin-1". Consumers subscribe with
// wildcards such as "fiscal.daily.>" or "fiscal.*.*.acme.>".
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/plugin"
)

var (
	_ plugin.Plugin                  = (*Publisher)(nil)
	_ plugin.OnLedgerConfigured      = (*Publisher)(nil)
	_ plugin.OnJournalEntryRecorded  = (*Publisher)(nil)
	_ plugin.OnRecordFailed          = (*Publisher)(nil)
	_ plugin.OnDailyArchiveGenerated = (*Publisher)(nil)
	_ plugin.OnDailyClosed           = (*Publisher)(nil)
	_ plugin.OnShutdown              = (*Publisher)(nil)
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// Envelope is the message body.
type Envelope struct {
	Type        string          `json:"type"`
	Key         ledger.Key      `json:"key"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Decode parses a message body.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("natsbus: decode envelope: %w", err)
	}
	return &env, nil
}

// Publisher is a plugin that forwards events to NATS.
type Publisher struct {
	conn     Conn
	prefix   string
	archives bool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPrefix prepends prefix to every subject. A trailing dot is added when
// missing.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" && !strings.HasSuffix(prefix, ".") {
			prefix += "."
		}
		p.prefix = prefix
	}
}

// WithArchives includes the archived artifact in DailyArchiveGenerated
// messages. By default only the footer is sent.
func WithArchives() Option {
	return func(p *Publisher) { p.archives = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher on conn.
func New(conn Conn, opts ...Option) *Publisher {
	p := &Publisher{
		conn:   conn,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config holds connection settings for Connect.
type Config struct {
	URL            string        `json:"url" yaml:"url"`
	Name           string        `json:"name" yaml:"name"`
	ReconnectWait  time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	MaxReconnects  int           `json:"max_reconnects" yaml:"max_reconnects"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// Connect dials NATS and logs connection state changes.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "fiscal"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 60
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// Subject returns the subject an event of type eventType for key is
// published on.
func (p *Publisher) Subject(eventType string, key ledger.Key) string {
	return p.prefix + eventType + "." + token(key.TenantID) + "." + token(key.Country) + "." + token(key.SiteID)
}

// token replaces characters NATS reserves in subjects.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "natsbus" }

// OnLedgerConfigured implements plugin.OnLedgerConfigured.
func (p *Publisher) OnLedgerConfigured(_ context.Context, e *event.LedgerConfigured) error {
	return p.publish(e, e)
}

// OnJournalEntryRecorded implements plugin.OnJournalEntryRecorded.
func (p *Publisher) OnJournalEntryRecorded(_ context.Context, e *event.JournalEntryRecorded) error {
	return p.publish(e, e)
}

// OnRecordFailed implements plugin.OnRecordFailed.
func (p *Publisher) OnRecordFailed(_ context.Context, e *event.RecordFailed) error {
	return p.publish(e, e)
}

// ArchiveSummary is the payload of DailyArchiveGenerated messages without
// the artifact.
type ArchiveSummary struct {
	BusinessDate        string `json:"business_date"`
	Format              string `json:"format"`
	TransactionCount    int64  `json:"transaction_count"`
	GrandTotal          string `json:"grand_total"`
	FirstSequenceNumber uint64 `json:"first_sequence_number"`
	LastSequenceNumber  uint64 `json:"last_sequence_number"`
}

// OnDailyArchiveGenerated implements plugin.OnDailyArchiveGenerated.
func (p *Publisher) OnDailyArchiveGenerated(_ context.Context, e *event.DailyArchiveGenerated) error {
	if p.archives || e.Artifact == nil {
		return p.publish(e, e)
	}
	f := e.Artifact.Footer
	return p.publish(e, ArchiveSummary{
		BusinessDate:        e.BusinessDate,
		Format:              string(e.Format),
		TransactionCount:    f.TransactionCount,
		GrandTotal:          f.GrandTotal.StringFixed(2),
		FirstSequenceNumber: f.FirstSequenceNumber,
		LastSequenceNumber:  f.LastSequenceNumber,
	})
}

// OnDailyClosed implements plugin.OnDailyClosed.
func (p *Publisher) OnDailyClosed(_ context.Context, e *event.DailyClosed) error {
	return p.publish(e, e)
}

// OnShutdown flushes buffered messages.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.conn.FlushTimeout(5 * time.Second)
}

func (p *Publisher) publish(e event.Event, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("natsbus: marshal %s: %w", e.EventType(), err)
	}
	data, err := json.Marshal(Envelope{
		Type:        e.EventType(),
		Key:         e.LedgerKey(),
		PublishedAt: p.now().UTC(),
		Payload:     body,
	})
	if err != nil {
		return fmt.Errorf("natsbus: marshal envelope: %w", err)
	}

	subject := p.Subject(e.EventType(), e.LedgerKey())
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("nats publish failed",
			"subject", subject,
			"error", err,
		)
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	return nil
}
