package engine

import (
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/scoring"
)

// searchBranch selects the status prefix for the full-search path.
type searchBranch byte

const (
	// branchSearchOnly: no identifier was supplied.
	branchSearchOnly searchBranch = 'D'

	// branchNoResult: an identifier was supplied but the checksum failed
	// or the identifier is not on file.
	branchNoResult searchBranch = 'C'

	// branchRejected: the identifier is on file but was not confirmed; the
	// search ran with that identifier excluded.
	branchRejected searchBranch = 'B'
)

// Diagnostic messages attached to demoted outcomes.
const (
	msgBirthdateMismatch = "confirmed record disagrees on date of birth"
	msgPossibleTwin      = "possible twin: same school, different local ID"
	msgIncompleteAssign  = "assign-new requires school code and postal code"
)

// searchStatus maps a branch prefix and a match count onto a terminal
// status code. The trailing character encodes the count: 0 none, 1 one,
// M multiple.
func searchStatus(br searchBranch, count int) string {
	suffix := byte('M')
	switch count {
	case 0:
		suffix = '0'
	case 1:
		suffix = '1'
	}
	return string([]byte{byte(br), suffix})
}

// applyOverrides runs the post-processing rules on a provisional outcome,
// in fixed order: deceased first, then the demotions of a confirmed
// record, then the assign-new completeness check.
func applyOverrides(tx *domain.TransactionRecord, out *domain.MatchOutcome, confirmed *domain.CandidateRecord, deceased bool) {
	if deceased {
		out.Status = domain.StatusC0
		out.Deceased = true
		out.PEN = ""
		out.Candidates = nil
		return
	}

	if confirmed != nil {
		if tx.DOB != confirmed.DOB {
			out.Status = domain.StatusF1
			out.Message = msgBirthdateMismatch
		} else if possibleTwin(tx, confirmed) {
			out.Status = domain.StatusF1
			out.Message = msgPossibleTwin
		}
	}

	if tx.UpdateCode == domain.UpdateCodeAssignNew &&
		(out.Status == domain.StatusC0 || out.Status == domain.StatusD0) &&
		!assignFieldsComplete(tx) {
		out.Status = domain.StatusG0
		out.Message = msgIncompleteAssign
	}
}

// possibleTwin reports a same-school, different-local-ID conflict between
// the transaction and an otherwise-confirmed record.
func possibleTwin(tx *domain.TransactionRecord, cand *domain.CandidateRecord) bool {
	if tx.Mincode == "" || tx.Mincode != cand.Mincode {
		return false
	}
	txID := scoring.TrimLocalID(tx.LocalID)
	candID := cand.LocalIDTrimmed
	if candID == "" {
		candID = scoring.TrimLocalID(cand.LocalID)
	}
	return txID != "" && candID != "" && txID != candID
}

// assignFieldsComplete reports whether the record carries everything a
// new-identifier assignment needs beyond the always-mandatory fields.
func assignFieldsComplete(tx *domain.TransactionRecord) bool {
	return tx.Mincode != "" && tx.PostalCode != ""
}
