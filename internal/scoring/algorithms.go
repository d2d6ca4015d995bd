package scoring

import (
	"strings"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/names"
)

// Algorithm identifies which rule-set a candidate first satisfied.
type Algorithm string

const (
	AlgNone Algorithm = ""
	AlgS1   Algorithm = "S1"
	AlgS2   Algorithm = "S2"
	Alg20   Algorithm = "20"
	Alg30   Algorithm = "30"
	Alg40   Algorithm = "40"
	Alg50   Algorithm = "50"
	Alg51   Algorithm = "51"
)

// Confidence buckets used to short-circuit multi-candidate resolution.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidencePrettyGood
	ConfidenceReallyGood
)

// ExactMatch runs the S1/S2 exact and near-exact checks used during
// identifier confirmation. Returns AlgNone when neither passes.
func ExactMatch(tx *domain.TransactionRecord, cand *domain.CandidateRecord) Algorithm {
	sameCore := names.Upper(tx.Surname) == names.Upper(cand.Surname) &&
		names.Upper(tx.GivenName) == names.Upper(cand.GivenName) &&
		tx.DOB == cand.DOB

	if !sameCore {
		return AlgNone
	}

	if names.Upper(tx.Sex) == names.Upper(cand.Sex) {
		return AlgS1
	}

	txID := TrimLocalID(tx.LocalID)
	candID := cand.LocalIDTrimmed
	if candID == "" {
		candID = TrimLocalID(cand.LocalID)
	}
	if len(txID) > 1 && tx.Mincode != "" && tx.Mincode == cand.Mincode && txID == candID {
		return AlgS2
	}

	return AlgNone
}

// Evaluate applies the seven weighted rule-sets in fixed order and tags the
// candidate's confidence bucket. The first satisfied rule-set wins.
func Evaluate(b *Breakdown, localID string) (Algorithm, Confidence) {
	total := b.Total()

	if passes20(b) {
		b.Algorithm = Alg20
		return Alg20, ConfidenceReallyGood
	}
	if passes30(b) {
		b.Algorithm = Alg30
		return Alg30, ConfidenceReallyGood
	}
	if passes40(b) {
		b.Algorithm = Alg40
		return Alg40, ConfidenceReallyGood
	}
	if passes50(b, total, localID) {
		b.Algorithm = Alg50
		switch {
		case total >= 70:
			return Alg50, ConfidenceReallyGood
		case total >= 60 || b.LocalID >= 20:
			return Alg50, ConfidencePrettyGood
		default:
			return Alg50, ConfidenceNone
		}
	}
	if passes51(b) {
		b.Algorithm = Alg51
		// Stronger than the rule's floor on either axis.
		if b.Birthday >= 15 || b.Given >= 15 {
			return Alg51, ConfidencePrettyGood
		}
		return Alg51, ConfidenceNone
	}

	return AlgNone, ConfidenceNone
}

func passes20(b *Breakdown) bool {
	// Local ID contributes only when unambiguous: an exact match (20) or
	// the weak district signal (5), never the bare same-school 10.
	lid := 0
	if b.LocalID == 5 || b.LocalID == 20 {
		lid = b.LocalID
	}
	return b.Sex >= 5 && b.Birthday >= 20 && b.Surname >= 20 &&
		b.Given+b.Middle+lid >= 25
}

func passes30(b *Breakdown) bool {
	return b.LocalID >= 20 && b.Surname >= 20 &&
		b.Sex+b.Given+b.Middle+b.Address >= 25
}

func passes40(b *Breakdown) bool {
	return b.LocalID >= 20 && b.Sex >= 5 && b.Birthday >= 20 &&
		b.Surname+b.Given+b.Middle+b.Address >= 20
}

func passes50(b *Breakdown, total int, localID string) bool {
	switch {
	case total >= 55:
		return true
	case total >= 40 && b.LocalID >= 20:
		return true
	case total >= 50 && b.Surname >= 10 && b.Birthday >= 15 && b.Given >= 15:
		return true
	case total >= 50 && b.Birthday >= 20:
		return true
	case total >= 50 && strings.HasPrefix(names.Upper(localID), "ZZZ"):
		return true
	}
	return false
}

func passes51(b *Breakdown) bool {
	return b.Sex == 5 && b.Birthday >= 10 && b.Surname >= 20 && b.Given >= 10
}
