package domain

// ScreeningRule is an admin-configurable data-quality rule evaluated at the
// request boundary before the match engine runs. The expression is CEL over
// the submitted demographic fields and yields a numeric score that bands map
// to an outcome.
type ScreeningRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is the CEL source.
	Expression string `json:"expression"`

	// Bands map score ranges to outcomes.
	Bands []ScreeningBand `json:"bands"`

	Enabled bool `json:"enabled"`
}

// ScreeningBand maps a score range to an outcome. A nil limit means
// unbounded on that side.
type ScreeningBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"`
	Reason     string   `json:"reason"`
}

// ScreeningResult is the output of one screening rule evaluation.
type ScreeningResult struct {
	RuleID  string  `json:"ruleId"`
	Outcome string  `json:"outcome"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// Screening outcomes.
const (
	ScreeningAccept     = ".accept"
	ScreeningQuarantine = ".quarantine"
	ScreeningReject     = ".reject"
	ScreeningError      = ".err"
)
