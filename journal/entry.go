package journal

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/id"
)

// EventTransactionRecorded is the event type of an entry written for a
// recorded transaction.
const EventTransactionRecorded = "transaction.recorded"

// Entry is one immutable, chained record in the journal.
type Entry struct {
	ID                id.JournalEntryID `json:"id"`
	SequenceNumber    uint64            `json:"sequence_number"`
	Timestamp         time.Time         `json:"timestamp"`
	EventType         string            `json:"event_type"`
	EventData         string            `json:"event_data"`
	TransactionID     string            `json:"transaction_id"`
	TransactionType   TransactionType   `json:"transaction_type"`
	Amount            decimal.Decimal   `json:"amount"`
	RunningTotal      decimal.Decimal   `json:"running_total"`
	Signature         string            `json:"signature"`
	PreviousSignature string            `json:"previous_signature"`
	IntegrityHash     string            `json:"integrity_hash"`
	OperatorID        string            `json:"operator_id,omitempty"`
}

// Link returns the fields the entry's signature was computed over.
func (e *Entry) Link() chain.Link {
	return chain.Link{
		Sequence:     e.SequenceNumber,
		Timestamp:    e.Timestamp,
		Amount:       e.Amount,
		RunningTotal: e.RunningTotal,
		Previous:     e.PreviousSignature,
	}
}

// SignedLink returns the entry in the shape chain verification expects.
func (e *Entry) SignedLink() chain.SignedLink {
	return chain.SignedLink{
		Link:          e.Link(),
		Signature:     e.Signature,
		EventData:     e.EventData,
		IntegrityHash: e.IntegrityHash,
	}
}

// IntegrityOK reports whether the stored integrity hash still matches.
func (e *Entry) IntegrityOK() bool {
	return chain.CheckIntegrity(e.EventData, e.Signature, e.IntegrityHash)
}

// EncodeEvent serializes the transaction as the entry's event data.
// encoding/json writes map keys sorted, so the output is deterministic.
func EncodeEvent(tx *TransactionRecord) (string, error) {
	b, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeEvent parses event data written by EncodeEvent.
func DecodeEvent(data string) (*TransactionRecord, error) {
	var tx TransactionRecord
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Links converts entries for chain verification.
func Links(entries []Entry) []chain.SignedLink {
	out := make([]chain.SignedLink, len(entries))
	for i := range entries {
		out[i] = entries[i].SignedLink()
	}
	return out
}

// InRange returns the entries whose timestamp lies in [start, end], ordered
// by sequence number.
func InRange(entries []Entry, start, end time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		out = append(out, e)
	}
	SortBySequence(out)
	return out
}

// SortBySequence orders entries by ascending sequence number in place.
func SortBySequence(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SequenceNumber < entries[j].SequenceNumber
	})
}

// Partition splits entries by predicate, preserving order.
func Partition(entries []Entry, match func(Entry) bool) (matched, rest []Entry) {
	for _, e := range entries {
		if match(e) {
			matched = append(matched, e)
		} else {
			rest = append(rest, e)
		}
	}
	return matched, rest
}
