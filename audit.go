package fiscal

import (
	"context"
	"fmt"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
)

// AuditExport builds an artifact of the buffered entries of key within rng.
// The ledger is copied under the key lock and the artifact is built outside
// it; cancellation of ctx aborts the build.
func (e *Engine) AuditExport(ctx context.Context, key ledger.Key, rng export.Range) (*export.Artifact, error) {
	key = key.Normalize()
	art, _, err := e.auditExport(ctx, key, rng)
	return art, err
}

// GenerateAuditExport builds and serializes an audit export.
func (e *Engine) GenerateAuditExport(ctx context.Context, key ledger.Key, rng export.Range, format export.Format) (*export.Document, error) {
	key = key.Normalize()
	art, l, err := e.auditExport(ctx, key, rng)
	if err != nil {
		return nil, err
	}
	doc, err := export.Encode(ctx, art, format, l.Location())
	if err != nil {
		return nil, newError(CodeExportFailed, "encode export", err)
	}

	e.logger.Info("audit export generated",
		"key", key.String(),
		"file", doc.FileName,
		"entries", len(art.Entries),
		"bytes", len(doc.Data),
	)
	return doc, nil
}

func (e *Engine) auditExport(ctx context.Context, key ledger.Key, rng export.Range) (*export.Artifact, *ledger.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, newError(CodeExportFailed, "export cancelled", err)
	}

	l, err := e.Snapshot(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, newError(CodeNotConfigured, "no fiscal ledger configured for "+key.String(), err)
		}
		return nil, nil, newError(CodeExportFailed, "load ledger", err)
	}

	art, err := e.builder.Build(ctx, l, rng)
	if err != nil {
		return nil, nil, newError(CodeExportFailed, "build export", err)
	}
	return art, l, nil
}

// VerifyChain replays the signature chain of the working buffer of key with
// its signing key and checks that the buffer ends at the recorded head.
func (e *Engine) VerifyChain(ctx context.Context, key ledger.Key) (*chain.Report, error) {
	l, err := e.Snapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	signer, err := e.signer(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownSigningKey, err)
	}
	return VerifyLedger(signer, l)
}

// VerifyLedger checks the buffer of l against signer and the perpetual head.
func VerifyLedger(signer *chain.Signer, l *ledger.Ledger) (*chain.Report, error) {
	entries := make([]journal.Entry, len(l.Journal))
	copy(entries, l.Journal)
	journal.SortBySequence(entries)

	anchor := ""
	if len(entries) > 0 && entries[0].SequenceNumber == 1 {
		anchor = chain.Initial
	}
	rep, err := chain.Verify(signer, anchor, journal.Links(entries))
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		if rep.LastSequence != l.Perpetual.SequenceNumber {
			return nil, &chain.BreakError{Sequence: rep.LastSequence,
				Err: fmt.Errorf("%w: head sequence is %d", chain.ErrSequenceGap, l.Perpetual.SequenceNumber)}
		}
		if rep.Head != l.Perpetual.LastSignature {
			return nil, &chain.BreakError{Sequence: rep.LastSequence, Err: chain.ErrBrokenLink}
		}
	} else {
		rep.Head = l.Perpetual.LastSignature
		rep.LastSequence = l.Perpetual.SequenceNumber
	}
	return rep, nil
}
