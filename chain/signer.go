// Package chain computes and verifies the keyed signature chain that links
// every journal entry to its predecessor.
//
// Each signature is an HMAC-SHA256 over the entry's sequence number,
// timestamp, amount, running total and the previous signature. Altering any
// historical entry therefore invalidates every signature after it, and
// verification is a strictly sequential replay.
package chain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/types"
)

// Initial is the previous-signature value used by the first entry of a chain.
const Initial = "INITIAL"

// TimestampLayout is the ISO-8601 form timestamps are signed in.
// Timestamps are always rendered in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const fieldSep = "|"

// ErrEmptyKey is returned when a signer is created without key material.
var ErrEmptyKey = errors.New("chain: empty signing key")

// Link holds the fields that go into one signature.
type Link struct {
	Sequence     uint64
	Timestamp    time.Time
	Amount       decimal.Decimal
	RunningTotal decimal.Decimal
	Previous     string
}

// Message returns the canonical byte string that is signed for the link.
func (l Link) Message() []byte {
	prev := l.Previous
	if prev == "" {
		prev = Initial
	}
	return []byte(strings.Join([]string{
		strconv.FormatUint(l.Sequence, 10),
		FormatTimestamp(l.Timestamp),
		types.Fixed(l.Amount),
		types.Fixed(l.RunningTotal),
		prev,
	}, fieldSep))
}

// FormatTimestamp renders t the way it is signed.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Signer produces chained signatures with a single key.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer. The key is copied.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}, nil
}

// Next computes the signature for l as a lowercase hex string.
func (s *Signer) Next(l Link) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(l.Message())
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether signature is the valid signature of l, using a
// constant-time comparison.
func (s *Signer) Matches(l Link, signature string) bool {
	want, err := hex.DecodeString(s.Next(l))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// IntegrityHash is the non-keyed SHA-256 over the serialized event data and
// the entry's signature. It detects corruption without the signing key.
func IntegrityHash(eventData, signature string) string {
	sum := sha256.Sum256([]byte(eventData + fieldSep + signature))
	return hex.EncodeToString(sum[:])
}

// CheckIntegrity reports whether hash matches IntegrityHash(eventData, signature).
func CheckIntegrity(eventData, signature, hash string) bool {
	return IntegrityHash(eventData, signature) == hash
}
