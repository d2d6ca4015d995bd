package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/scoring"
)

// PENLength is the fixed width of a student identifier.
const PENLength = 9

// ConfirmationResult selects between the trust-the-identifier and
// full-search branches of the outcome state machine.
type ConfirmationResult int

const (
	// ConfirmationNoResult: checksum invalid or identifier unknown.
	ConfirmationNoResult ConfirmationResult = iota

	// ConfirmationNotConfirmed: identifier on file but the record does not
	// match the transaction.
	ConfirmationNotConfirmed

	// ConfirmationConfirmed: identifier on file and the record matches.
	ConfirmationConfirmed
)

// CheckDigit validates the mod-11 check digit of a student identifier:
// nine digits, positional weights 10 down to 2, weighted sum divisible
// by 11.
func CheckDigit(pen string) bool {
	if len(pen) != PENLength {
		return false
	}
	sum := 0
	for i := 0; i < PENLength; i++ {
		d := pen[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += (10 - i) * int(d-'0')
	}
	return sum%11 == 0
}

// confirmation is the full result of the identifier-confirmation stage.
type confirmation struct {
	result    ConfirmationResult
	candidate *domain.CandidateRecord

	// viaMerge is set when the claimed identifier resolved through a
	// merge chain to a surviving record.
	viaMerge bool
	deceased bool

	// Provenance of a confirmed result: a named legacy algorithm, or a
	// match code with its table result.
	algorithm scoring.Algorithm
	matchCode string
}

// confirm runs identifier confirmation and merge resolution for a
// transaction carrying a claimed identifier.
func (e *Engine) confirm(ctx context.Context, tx *domain.TransactionRecord) (*confirmation, error) {
	if !CheckDigit(tx.PEN) {
		return &confirmation{result: ConfirmationNoResult}, nil
	}

	cand, err := e.dir.LookupByIdentifier(ctx, tx.PEN)
	if errors.Is(err, domain.ErrNotFound) {
		return &confirmation{result: ConfirmationNoResult}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identifier lookup: %w", err)
	}

	c := &confirmation{candidate: cand}

	if cand.Status == domain.StatusMerged {
		resolved, err := e.resolveMerge(ctx, cand)
		if errors.Is(err, domain.ErrNotFound) {
			// Merge direction unknown: degrade to treating the
			// identifier as unmatched.
			return &confirmation{result: ConfirmationNoResult}, nil
		}
		if err != nil {
			return nil, err
		}
		c.candidate = resolved
		c.viaMerge = true
		cand = resolved
	}

	if cand.Status == domain.StatusDeceased {
		c.deceased = true
	}

	if alg := scoring.ExactMatch(tx, cand); alg != scoring.AlgNone {
		c.result = ConfirmationConfirmed
		c.algorithm = alg
		return c, nil
	}

	code, result, err := e.matcher.Resolve(ctx, tx, cand)
	if err != nil {
		return nil, err
	}
	c.matchCode = code
	if result == domain.ResultPass {
		c.result = ConfirmationConfirmed
		return c, nil
	}

	c.result = ConfirmationNotConfirmed
	return c, nil
}

// resolveMerge follows a merged record to its surviving identifier. The
// record's own forward pointer is preferred; the merge-direction table
// covers rows written before the pointer existed.
func (e *Engine) resolveMerge(ctx context.Context, cand *domain.CandidateRecord) (*domain.CandidateRecord, error) {
	target := cand.TruePEN
	if target == "" {
		t, err := e.dir.LookupMergeTarget(ctx, cand.PEN)
		if err != nil {
			return nil, err
		}
		target = t
	}

	resolved, err := e.dir.LookupByIdentifier(ctx, target)
	if err != nil {
		return nil, err
	}
	// A merge chain ends at an unmerged record; a second hop means the
	// registry data is inconsistent.
	if resolved.Status == domain.StatusMerged {
		return nil, domain.ErrNotFound
	}
	return resolved, nil
}
