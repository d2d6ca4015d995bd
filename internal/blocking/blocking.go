// Package blocking narrows the candidate search to a bounded key while
// preserving recall on partial, noisy fields.
package blocking

import (
	"context"
	"fmt"

	"github.com/edu-registry/penmatch/internal/domain"
)

// Surname frequency thresholds controlling key width.
const (
	// RareThreshold: at or below this prefix frequency the search uses
	// birth date + surname prefix only, favoring recall on rare names.
	RareThreshold = 50

	// CommonThreshold: above this frequency the key widens (full surname
	// for the full-name count, 6-char prefix + 2-char given prefix for
	// the prefix count).
	CommonThreshold = 500
)

// Prefix widths.
const (
	MinSurnameSize = 4
	MaxSurnameSize = 6
)

// FrequencyGetter reports how many registry records carry a surname starting
// with prefix. It is satisfied by the frequency service.
type FrequencyGetter func(ctx context.Context, prefix string) (int, error)

// Plan is the computed search plan for one transaction.
type Plan struct {
	Key domain.SearchKey

	// Derived values surfaced back onto the transaction record.
	SurnameSize      int
	PartialSurname   string
	PartialGiven     string
	FullFrequency    int
	PartialFrequency int
}

// Strategy chooses search keys and delegates row retrieval to the directory.
type Strategy struct {
	dir  domain.Directory
	freq FrequencyGetter
}

// NewStrategy creates a blocking strategy over a directory and a surname
// frequency source.
func NewStrategy(dir domain.Directory, freq FrequencyGetter) *Strategy {
	return &Strategy{dir: dir, freq: freq}
}

// BuildPlan computes the search key for a transaction. The transaction's
// name set must already be derived.
func (s *Strategy) BuildPlan(ctx context.Context, tx *domain.TransactionRecord) (*Plan, error) {
	surname := tx.Derived.Names.Surname
	given := tx.Derived.Names.Given
	if surname == "" {
		return nil, fmt.Errorf("%w: surname is required for blocking", domain.ErrInvalidInput)
	}

	full, err := s.freq(ctx, surname)
	if err != nil {
		return nil, fmt.Errorf("surname frequency lookup failed: %w", err)
	}

	plan := &Plan{FullFrequency: full}

	if full > CommonThreshold {
		// Common full surname: prefix narrowing buys nothing, search on
		// the whole surname.
		plan.SurnameSize = len(surname)
		plan.PartialSurname = surname
		plan.PartialFrequency = full
	} else {
		size := clamp(MinSurnameSize, len(surname))
		prefix := surname[:size]

		partial, err := s.freq(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("surname prefix frequency lookup failed: %w", err)
		}

		switch {
		case partial <= RareThreshold:
			// Rare prefix: no given-name filter.
		case partial <= CommonThreshold:
			plan.PartialGiven = prefixOf(given, 1)
		default:
			// Common prefix: widen the surname and require a 2-char
			// given prefix.
			size = clamp(MaxSurnameSize, len(surname))
			prefix = surname[:size]
			partial, err = s.freq(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("surname prefix frequency lookup failed: %w", err)
			}
			plan.PartialGiven = prefixOf(given, 2)
		}

		plan.SurnameSize = size
		plan.PartialSurname = prefix
		plan.PartialFrequency = partial
	}

	plan.Key = domain.SearchKey{
		DOB:           tx.DOB,
		SurnamePrefix: plan.PartialSurname,
		GivenPrefix:   plan.PartialGiven,
	}

	// With a school and local ID present, the directory OR-combines the
	// demographic key with a (dob, surname, mincode, localId) key.
	if tx.Mincode != "" && tx.LocalID != "" {
		plan.Key.Mincode = tx.Mincode
		plan.Key.LocalID = tx.LocalID
	}

	return plan, nil
}

// Retrieve fetches the bounded candidate set for a plan.
func (s *Strategy) Retrieve(ctx context.Context, plan *Plan) ([]*domain.CandidateRecord, error) {
	return s.dir.LookupByKey(ctx, plan.Key)
}

func clamp(size, length int) int {
	if length < size {
		return length
	}
	return size
}

func prefixOf(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
