package chain

import (
	"errors"
	"fmt"
)

// Verification failures. They are wrapped in a *BreakError that carries the
// sequence number of the first offending entry.
var (
	ErrSequenceGap       = errors.New("chain: sequence gap")
	ErrBrokenLink        = errors.New("chain: previous signature does not match predecessor")
	ErrSignatureMismatch = errors.New("chain: signature mismatch")
	ErrIntegrityMismatch = errors.New("chain: integrity hash mismatch")
)

// SignedLink is a Link together with what was stored for it.
type SignedLink struct {
	Link
	Signature     string
	EventData     string
	IntegrityHash string
}

// BreakError reports where a chain stopped verifying.
type BreakError struct {
	Sequence uint64
	Err      error
}

func (e *BreakError) Error() string {
	return fmt.Sprintf("chain: entry %d: %v", e.Sequence, e.Err)
}

func (e *BreakError) Unwrap() error { return e.Err }

// Report summarizes a successful verification.
type Report struct {
	Checked       int
	FirstSequence uint64
	LastSequence  uint64
	Head          string
}

// Verify replays links in order and re-derives every signature.
//
// anchor is the previous signature expected on the first link: Initial for a
// chain that starts at sequence 1, the known head of an earlier segment, or
// "" to accept whatever the first link claims (a window cut from the middle
// of a chain). Integrity hashes are checked when present.
func Verify(s *Signer, anchor string, links []SignedLink) (*Report, error) {
	return replay(s, anchor, links)
}

// VerifyIntegrity checks sequence continuity, previous-signature links and
// integrity hashes without the signing key.
func VerifyIntegrity(links []SignedLink) (*Report, error) {
	return replay(nil, "", links)
}

func replay(s *Signer, anchor string, links []SignedLink) (*Report, error) {
	rep := &Report{}
	if len(links) == 0 {
		rep.Head = anchor
		return rep, nil
	}

	prev := anchor
	for i, l := range links {
		if i > 0 && l.Sequence != links[i-1].Sequence+1 {
			return nil, &BreakError{Sequence: l.Sequence, Err: fmt.Errorf("%w: expected %d", ErrSequenceGap, links[i-1].Sequence+1)}
		}
		if (i > 0 || anchor != "") && l.Previous != prev {
			return nil, &BreakError{Sequence: l.Sequence, Err: ErrBrokenLink}
		}
		if l.IntegrityHash != "" && !CheckIntegrity(l.EventData, l.Signature, l.IntegrityHash) {
			return nil, &BreakError{Sequence: l.Sequence, Err: ErrIntegrityMismatch}
		}
		if s != nil && !s.Matches(l.Link, l.Signature) {
			return nil, &BreakError{Sequence: l.Sequence, Err: ErrSignatureMismatch}
		}
		prev = l.Signature
		rep.Checked++
	}

	rep.FirstSequence = links[0].Sequence
	rep.LastSequence = links[len(links)-1].Sequence
	rep.Head = prev
	return rep, nil
}
