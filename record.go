package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
)

// RecordTransaction appends tx to the journal of key.
//
// Expected domain conditions (ledger missing or disabled, malformed
// transaction) return a receipt with Success false and a nil error. Failures
// of the store or the key provider return a *Error and nothing is written.
// Once the key lock is held the call is not cancellable.
func (e *Engine) RecordTransaction(ctx context.Context, key ledger.Key, tx *journal.TransactionRecord) (*Receipt, error) {
	key = key.Normalize()
	if tx == nil {
		return e.rejectInvalid(ctx, key, failedReceipt(CodeInvalidTransaction, "", "transaction is required")), nil
	}
	if err := tx.Validate(); err != nil {
		return e.rejectInvalid(ctx, key, failedReceipt(CodeInvalidTransaction, tx.ID, err.Error())), nil
	}
	if tx.SiteID != "" && tx.SiteID != key.SiteID {
		return e.rejectInvalid(ctx, key, failedReceipt(CodeInvalidTransaction, tx.ID,
			fmt.Sprintf("transaction site %q does not match ledger site %q", tx.SiteID, key.SiteID))), nil
	}

	unlock := e.locks.lock(key)
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	l, err := e.store.GetLedger(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return e.report(ctx, key, failedReceipt(CodeNotConfigured, tx.ID, "no fiscal ledger configured for "+key.String())), nil
		}
		return nil, e.fail(ctx, key, tx.ID, newError(CodeRecordFailed, "load ledger", err))
	}
	if !l.Enabled() {
		return e.reject(ctx, key, failedReceipt(CodeNotConfigured, tx.ID, "fiscal ledger is disabled for "+key.String())), nil
	}

	signer, err := e.signer(ctx, l)
	if err != nil {
		if isUnknownKey(err) {
			return e.reject(ctx, key, failedReceipt(CodeNotConfigured, tx.ID, err.Error())), nil
		}
		return nil, e.fail(ctx, key, tx.ID, newError(CodeRecordFailed, "resolve signing key", err))
	}

	work := l.Clone()
	ts := tx.Timestamp.UTC().Truncate(time.Millisecond)
	date := work.BusinessDate(ts)

	switch {
	case work.CurrentBusinessDate == "":
		work.CurrentBusinessDate = date
	case ledger.CompareDates(date, work.CurrentBusinessDate) > 0:
		if err := e.rollover(ctx, work, date); err != nil {
			return nil, e.fail(ctx, key, tx.ID, newError(CodeDailyCloseFailed, "day rollover", err))
		}
	}

	entry, err := appendEntry(work, signer, tx, ts)
	if err != nil {
		return nil, e.fail(ctx, key, tx.ID, newError(CodeRecordFailed, "build journal entry", err))
	}
	work.Touch()

	if err := e.store.SaveLedger(ctx, work); err != nil {
		return nil, e.fail(ctx, key, tx.ID, newError(CodeRecordFailed, "save ledger", err))
	}
	e.clearLastError(key)

	in := &VerificationInput{
		Key:           key,
		Config:        work.Config,
		Transaction:   tx,
		Entry:         entry,
		Daily:         work.Daily,
		Perpetual:     work.Perpetual,
		BusinessDate:  work.CurrentBusinessDate,
		ReceiptNumber: entry.SequenceNumber,
	}
	receipt := &Receipt{
		Success:           true,
		ReceiptID:         id.NewReceiptID(),
		TransactionID:     tx.ID,
		Signature:         entry.Signature,
		SequenceNumber:    entry.SequenceNumber,
		CertificateSerial: work.Config.CertificateSerial,
		VerificationCode:  e.coder(in),
		BusinessDate:      work.CurrentBusinessDate,
		RecordedAt:        entry.Timestamp,
		Metadata:          receiptMetadata(work.Daily, work.Perpetual, entry),
	}

	e.logger.Debug("transaction recorded",
		"key", key.String(),
		"transaction_id", tx.ID,
		"sequence", entry.SequenceNumber,
		"business_date", work.CurrentBusinessDate,
	)

	e.plugins.EmitJournalEntryRecorded(ctx, &event.JournalEntryRecorded{
		Key:          key,
		LedgerID:     work.ID,
		BusinessDate: work.CurrentBusinessDate,
		Entry:        *entry,
		Daily:        work.Daily.Clone(),
		Perpetual:    work.Perpetual.Clone(),
	})

	return receipt, nil
}

// appendEntry applies tx to both totals of l, signs the next link of the
// chain and appends the entry to the journal buffer. ts is the transaction
// timestamp normalized to UTC milliseconds.
func appendEntry(l *ledger.Ledger, s *chain.Signer, tx *journal.TransactionRecord, ts time.Time) (*journal.Entry, error) {
	normalized := *tx
	normalized.Timestamp = ts
	if normalized.SiteID == "" {
		normalized.SiteID = l.Key.SiteID
	}
	data, err := journal.EncodeEvent(&normalized)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	previous := l.Daily.LastSignature
	if previous == "" {
		previous = chain.Initial
	}
	seq := l.Perpetual.SequenceNumber + 1

	l.Daily = totals.Apply(l.Daily, &normalized)
	l.Perpetual = totals.Apply(l.Perpetual, &normalized)

	amount := normalized.GrossAmount
	if normalized.Type.IsVoid() {
		amount = normalized.Magnitude()
	}

	entry := journal.Entry{
		ID:                id.NewJournalEntryID(),
		SequenceNumber:    seq,
		Timestamp:         ts,
		EventType:         journal.EventTransactionRecorded,
		EventData:         data,
		TransactionID:     normalized.ID,
		TransactionType:   normalized.Type,
		Amount:            amount,
		RunningTotal:      l.Perpetual.GrandTotal,
		PreviousSignature: previous,
		OperatorID:        normalized.OperatorID,
	}
	entry.Signature = s.Next(entry.Link())
	entry.IntegrityHash = chain.IntegrityHash(entry.EventData, entry.Signature)

	l.Daily.SequenceNumber = seq
	l.Perpetual.SequenceNumber = seq
	l.Daily.LastSignature = entry.Signature
	l.Perpetual.LastSignature = entry.Signature
	l.Journal = append(l.Journal, entry)

	return &l.Journal[len(l.Journal)-1], nil
}

// reject reports a failed receipt without touching the ledger and keeps it
// as the last error of key.
func (e *Engine) reject(ctx context.Context, key ledger.Key, r *Receipt) *Receipt {
	e.setLastError(key, r.Code, r.Message)
	return e.report(ctx, key, r)
}

// rejectInvalid rejects a transaction that failed validation before the
// ledger was loaded. Only keys with a stored ledger keep a last error.
func (e *Engine) rejectInvalid(ctx context.Context, key ledger.Key, r *Receipt) *Receipt {
	if _, err := e.store.GetLedger(ctx, key); err == nil {
		e.setLastError(key, r.Code, r.Message)
	}
	return e.report(ctx, key, r)
}

// report logs r and emits RecordFailed.
func (e *Engine) report(ctx context.Context, key ledger.Key, r *Receipt) *Receipt {
	e.logger.Warn("transaction rejected",
		"key", key.String(),
		"transaction_id", r.TransactionID,
		"code", r.Code,
		"message", r.Message,
	)
	e.plugins.EmitRecordFailed(ctx, &event.RecordFailed{
		Key:           key,
		TransactionID: r.TransactionID,
		Code:          string(r.Code),
		Message:       r.Message,
		At:            e.now().UTC(),
	})
	return r
}

// fail records an exceptional failure and returns it.
func (e *Engine) fail(ctx context.Context, key ledger.Key, txID string, fe *Error) error {
	e.setLastError(key, fe.Code, fe.Error())
	e.logger.Error("transaction failed",
		"key", key.String(),
		"transaction_id", txID,
		"code", fe.Code,
		"error", fe.Err,
	)
	e.plugins.EmitRecordFailed(ctx, &event.RecordFailed{
		Key:           key,
		TransactionID: txID,
		Code:          string(fe.Code),
		Message:       fe.Error(),
		At:            e.now().UTC(),
	})
	return fe
}
