package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
)

// rollover moves l from its current business date to next. With
// auto-archive enabled and a non-empty buffer, the closing day is exported
// and handed to plugins before anything is reset, so delivery is
// at-least-once: a failed save later in the same call repeats the archive on
// the next attempt. A failing archive sink aborts the rollover and l keeps
// the closing day.
//
// Days without transactions in between are skipped; they produce no archive.
func (e *Engine) rollover(ctx context.Context, l *ledger.Ledger, next string) error {
	closing := l.CurrentBusinessDate
	archived := 0

	if l.Config.AutoArchive && len(l.Journal) > 0 {
		rng, err := archiveRange(l, closing)
		if err != nil {
			return err
		}
		art, err := e.builder.Build(ctx, l, rng)
		if err != nil {
			return fmt.Errorf("build archive for %s: %w", closing, err)
		}
		archived = len(art.Entries)
		err = e.plugins.EmitDailyArchiveGenerated(ctx, &event.DailyArchiveGenerated{
			Key:          l.Key,
			BusinessDate: closing,
			Timezone:     l.Config.Timezone,
			Format:       e.archiveFormat(l.Key),
			Artifact:     art,
		})
		if err != nil {
			return fmt.Errorf("store archive for %s: %w", closing, err)
		}
	}

	l.Daily = totals.ResetDaily(l.Perpetual)
	l.Journal = []journal.Entry{}
	l.CurrentBusinessDate = next

	e.logger.Info("business day rolled over",
		"key", l.Key.String(),
		"from", closing,
		"to", next,
		"archived", archived,
		"auto_archive", l.Config.AutoArchive,
	)
	return nil
}

// archiveRange covers the closing day. Entries recorded during that day with
// an earlier timestamp are pulled in by widening the start, so the archive
// always carries the whole buffer.
func archiveRange(l *ledger.Ledger, date string) (export.Range, error) {
	rng, err := export.DayRange(date, l.Location())
	if err != nil {
		return export.Range{}, err
	}
	for i := range l.Journal {
		if ts := l.Journal[i].Timestamp; ts.Before(rng.Start) {
			rng.Start = ts
		}
	}
	return rng, nil
}

// ──────────────────────────────────────────────────
// Scheduled close
// ──────────────────────────────────────────────────

// scheduledCloseWorker closes finished business days on a timer.
func (e *Engine) scheduledCloseWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.closeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			start := time.Now()
			n, err := e.CloseDue(ctx)
			if err != nil {
				e.logger.Error("scheduled close failed",
					"error", err,
					"closed", n,
				)
				continue
			}
			if n > 0 {
				e.logger.Info("scheduled close finished",
					"closed", n,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

// closePageSize is the page size used when scanning ledgers for due closes.
const closePageSize = 100

// CloseDue runs PerformDailyClose for every auto-archiving ledger whose
// current business date lies before today in its zone and whose archive
// time has passed. It returns the number of days closed.
func (e *Engine) CloseDue(ctx context.Context) (int, error) {
	closed := 0
	var errs MultiError

	for offset := 0; ; offset += closePageSize {
		page, err := e.store.ListLedgers(ctx, ledger.ListOpts{Limit: closePageSize, Offset: offset})
		if err != nil {
			return closed, fmt.Errorf("list ledgers: %w", err)
		}

		for _, l := range page {
			if !closeDue(l, e.now()) {
				continue
			}
			sum, err := e.PerformDailyClose(ctx, l.Key, l.CurrentBusinessDate)
			if err != nil {
				errs.Add(fmt.Errorf("close %s %s: %w", l.Key, l.CurrentBusinessDate, err))
				continue
			}
			if sum.Success && sum.EntriesArchived > 0 {
				closed++
			}
		}

		if len(page) < closePageSize {
			break
		}
	}

	if errs.HasErrors() {
		return closed, errs
	}
	return closed, nil
}

// closeDue reports whether l has a finished business day waiting for its
// scheduled archive time.
func closeDue(l *ledger.Ledger, now time.Time) bool {
	if !l.Enabled() || !l.Config.AutoArchive || l.CurrentBusinessDate == "" || len(l.Journal) == 0 {
		return false
	}
	local := now.In(l.Location())
	if ledger.CompareDates(l.CurrentBusinessDate, local.Format(ledger.DateLayout)) >= 0 {
		return false
	}
	hour, minute, err := l.Config.ArchiveClock()
	if err != nil {
		return false
	}
	due := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	return !local.Before(due)
}
