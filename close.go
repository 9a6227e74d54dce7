package fiscal

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
)

// PerformDailyClose archives the buffered entries of date and removes them
// from the journal. Closing the current business date also resets the daily
// totals; the business date itself only moves with the next transaction.
// An empty date means the current business date.
//
// A second close of the same date finds nothing left and succeeds with zero
// entries archived. Store and export failures return a *Error with code
// DAILY_CLOSE_FAILED.
func (e *Engine) PerformDailyClose(ctx context.Context, key ledger.Key, date string) (*CloseSummary, error) {
	key = key.Normalize()
	unlock := e.locks.lock(key)
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	l, err := e.store.GetLedger(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return &CloseSummary{
				Code:         CodeNotConfigured,
				Message:      "no fiscal ledger configured for " + key.String(),
				BusinessDate: date,
			}, nil
		}
		return nil, e.closeFailed(key, newError(CodeDailyCloseFailed, "load ledger", err))
	}

	if date == "" {
		date = l.CurrentBusinessDate
	}
	summary := &CloseSummary{
		Success:       true,
		CloseID:       id.NewDailyCloseID(),
		BusinessDate:  date,
		ArchivedTotal: decimal.Zero,
		ClosedAt:      e.now().UTC(),
	}
	if date == "" {
		return summary, nil
	}

	current := date == l.CurrentBusinessDate
	var rng export.Range
	if current {
		rng, err = archiveRange(l, date)
	} else {
		rng, err = export.DayRange(date, l.Location())
	}
	if err != nil {
		return nil, e.closeFailed(key, newError(CodeDailyCloseFailed, "invalid business date", err))
	}

	inRange := func(en journal.Entry) bool {
		return !en.Timestamp.Before(rng.Start) && !en.Timestamp.After(rng.End)
	}
	matched, rest := journal.Partition(l.Journal, inRange)
	resetDaily := current && !l.Daily.IsZero()

	if len(matched) == 0 && !resetDaily {
		e.logger.Debug("daily close found nothing to archive",
			"key", key.String(),
			"business_date", date,
		)
		return summary, nil
	}

	work := l.Clone()
	closingDaily := work.Daily.Clone()

	if len(matched) > 0 {
		art, err := e.builder.Build(ctx, work, rng)
		if err != nil {
			return nil, e.closeFailed(key, newError(CodeDailyCloseFailed, "build archive", err))
		}
		summary.Artifact = art
		summary.EntriesArchived = len(art.Entries)
		summary.FirstSequenceNumber = art.Footer.FirstSequenceNumber
		summary.LastSequenceNumber = art.Footer.LastSequenceNumber
		summary.ArchivedTotal = art.Footer.GrandTotal

		err = e.plugins.EmitDailyArchiveGenerated(ctx, &event.DailyArchiveGenerated{
			Key:          key,
			BusinessDate: date,
			Timezone:     work.Config.Timezone,
			Format:       e.archiveFormat(key),
			Artifact:     art,
		})
		if err != nil {
			return nil, e.closeFailed(key, newError(CodeDailyCloseFailed, "store archive", err))
		}
	}

	if rest == nil {
		rest = []journal.Entry{}
	}
	work.Journal = rest
	if resetDaily {
		work.Daily = totals.ResetDaily(work.Perpetual)
	}
	work.Touch()

	if err := e.store.SaveLedger(ctx, work); err != nil {
		return nil, e.closeFailed(key, newError(CodeDailyCloseFailed, "save ledger", err))
	}

	e.logger.Info("daily close performed",
		"key", key.String(),
		"business_date", date,
		"archived", summary.EntriesArchived,
		"daily_reset", resetDaily,
	)

	e.plugins.EmitDailyClosed(ctx, &event.DailyClosed{
		Key:             key,
		CloseID:         summary.CloseID,
		BusinessDate:    date,
		EntriesArchived: summary.EntriesArchived,
		Daily:           closingDaily,
		ClosedAt:        summary.ClosedAt,
	})

	return summary, nil
}

func (e *Engine) closeFailed(key ledger.Key, fe *Error) error {
	e.setLastError(key, fe.Code, fe.Error())
	e.logger.Error("daily close failed",
		"key", key.String(),
		"error", fe,
	)
	return fe
}
