// Package domain defines the core interfaces and types for penmatch.
package domain

import (
	"context"
)

// SearchKey is a blocking key for a bounded candidate search. DOB and
// SurnamePrefix are always present; the remaining fields narrow or widen the
// search per the blocking strategy. When Mincode and LocalID are both set
// the directory OR-combines the (dob, surname) key with the
// (dob, surname, mincode, localId) key.
type SearchKey struct {
	DOB           string
	SurnamePrefix string
	GivenPrefix   string
	Mincode       string
	LocalID       string
}

// Directory provides read access to the master student population. The
// engine treats every call as a blocking external lookup; retry policy
// belongs to the implementation.
type Directory interface {
	// LookupByKey returns a bounded, unordered candidate set for a
	// blocking key.
	LookupByKey(ctx context.Context, key SearchKey) ([]*CandidateRecord, error)

	// LookupByIdentifier returns the record for an identifier, or
	// ErrNotFound.
	LookupByIdentifier(ctx context.Context, pen string) (*CandidateRecord, error)

	// LookupMergeTarget resolves a merged identifier to its surviving
	// identifier, or ErrNotFound when the merge direction is unknown.
	LookupMergeTarget(ctx context.Context, pen string) (string, error)
}

// NicknamePair is one base/synonym row of the nickname table.
type NicknamePair struct {
	Base    string `json:"base"`
	Synonym string `json:"synonym"`
}

// LookupTables provides the static reference tables the engine consults.
type LookupTables interface {
	// SurnameFrequency reports how many registry records carry a surname
	// starting with prefix.
	SurnameFrequency(ctx context.Context, prefix string) (int, error)

	// Nicknames returns every base/synonym pair in which name appears as
	// either column. An empty result is not an error.
	Nicknames(ctx context.Context, name string) ([]NicknamePair, error)

	// ForeignSurname reports whether surname is flagged under the given
	// ancestry category.
	ForeignSurname(ctx context.Context, surname, category string) (bool, error)

	// MatchCodeResult resolves a 7-digit match code against the static
	// result table. Unknown codes resolve to ResultFail.
	MatchCodeResult(ctx context.Context, code string) (MatchResult, error)
}
