package domain

import (
	"time"
)

// MatchResult classifies one candidate comparison on the categorical path.
type MatchResult string

const (
	ResultPass         MatchResult = "PASS"
	ResultFail         MatchResult = "FAIL"
	ResultQuestionable MatchResult = "QUES"
)

// MatchCodeLength is the fixed width of a categorical match code: one digit
// per compared field in order surname, given, middle, birth-year,
// birth-month, birth-day, sex.
const MatchCodeLength = 7

// Terminal status codes. The trailing character encodes the match count:
// 0 none, 1 exactly one, M multiple.
const (
	// StatusAA: claimed identifier confirmed directly.
	StatusAA = "AA"
	// StatusB1: claimed identifier confirmed through a merge chain, or the
	// post-rejection search found exactly one match.
	StatusB0 = "B0"
	StatusB1 = "B1"
	StatusBM = "BM"
	// C branch: identifier supplied but checksum-invalid or not on file.
	StatusC0 = "C0"
	StatusC1 = "C1"
	StatusCM = "CM"
	// D branch: no identifier supplied, search only.
	StatusD0 = "D0"
	StatusD1 = "D1"
	StatusDM = "DM"
	// StatusF1: confirmed record demoted by a birthday mismatch or a
	// possible-twin conflict; carries a diagnostic message.
	StatusF1 = "F1"
	// StatusG0: assign-new requested but mandatory fields are incomplete.
	StatusG0 = "G0"
)

// StatusCodes lists every terminal code the engine can return.
var StatusCodes = []string{
	StatusAA,
	StatusB0, StatusB1, StatusBM,
	StatusC0, StatusC1, StatusCM,
	StatusD0, StatusD1, StatusDM,
	StatusF1, StatusG0,
}

// MaxCandidates bounds the number of retained candidate matches per session.
const MaxCandidates = 20

// CandidateMatch is one retained outcome for an evaluated candidate.
// Provenance is either a 7-digit match code (categorical path) or a named
// algorithm plus points (legacy path).
type CandidateMatch struct {
	PEN       string      `json:"pen"`
	Result    MatchResult `json:"result"`
	MatchCode string      `json:"matchCode,omitempty"`
	Algorithm string      `json:"algorithm,omitempty"`
	Points    int         `json:"points,omitempty"`
}

// MatchOutcome is the complete result of resolving one transaction record.
type MatchOutcome struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	PEN       string    `json:"pen,omitempty"` // confirmed or best-match identifier
	Deceased  bool      `json:"deceased,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Candidates is the ranked list, best first, at most MaxCandidates.
	Candidates []CandidateMatch `json:"candidates"`

	Metadata OutcomeMetadata `json:"metadata"`
}

// OutcomeMetadata carries processing information for one match request.
type OutcomeMetadata struct {
	TraceID             string `json:"traceId,omitempty"`
	BlockingMs          int64  `json:"blockingMs"`
	ScoringMs           int64  `json:"scoringMs"`
	TotalMs             int64  `json:"totalMs"`
	CandidatesRetrieved int    `json:"candidatesRetrieved"`
	CandidatesEvaluated int    `json:"candidatesEvaluated"`
	EngineVersion       string `json:"engineVersion"`
}

// PossibleMatch is a persisted link between a processed transaction and a
// candidate it may refer to. Written by the surrounding service, never by
// the engine.
type PossibleMatch struct {
	ID        string      `json:"id"`
	OutcomeID string      `json:"outcomeId"`
	PEN       string      `json:"pen"`
	Rank      int         `json:"rank"`
	Result    MatchResult `json:"result"`
	CreatedAt time.Time   `json:"createdAt"`
}
