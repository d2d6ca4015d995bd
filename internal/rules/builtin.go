package rules

import "github.com/edu-registry/penmatch/internal/domain"

func f(v float64) *float64 { return &v }

// BuiltinRules returns the default screening rule set seeded on first start.
// Administrators can disable or replace them through the rules API.
func BuiltinRules() []*domain.ScreeningRule {
	return []*domain.ScreeningRule{
		{
			ID:          "placeholder-surname",
			Name:        "Placeholder surname",
			Description: "Quarantines records submitted with a filler surname.",
			Version:     "1",
			Expression:  `surname == "UNKNOWN" || surname == "XX" || surname == "TBD"`,
			Bands: []domain.ScreeningBand{
				{LowerLimit: f(1), Outcome: domain.ScreeningQuarantine, Reason: "placeholder surname"},
			},
			Enabled: true,
		},
		{
			ID:          "single-letter-names",
			Name:        "Single-letter legal names",
			Description: "Quarantines records where both legal names are bare initials.",
			Version:     "1",
			Expression:  `size(surname) <= 1 && size(given_name) <= 1`,
			Bands: []domain.ScreeningBand{
				{LowerLimit: f(1), Outcome: domain.ScreeningQuarantine, Reason: "legal names are initials"},
			},
			Enabled: true,
		},
		{
			ID:          "numeric-name",
			Name:        "Digits in legal name",
			Description: "Rejects records whose names contain digits.",
			Version:     "1",
			Expression:  `surname.matches(".*[0-9].*") || given_name.matches(".*[0-9].*")`,
			Bands: []domain.ScreeningBand{
				{LowerLimit: f(1), Outcome: domain.ScreeningReject, Reason: "digits in legal name"},
			},
			Enabled: true,
		},
		{
			ID:          "assign-new-with-pen",
			Name:        "Assign-new carries identifier",
			Description: "Quarantines assign-new requests that also claim an identifier.",
			Version:     "1",
			Expression:  `update_code == "Y" && pen != ""`,
			Bands: []domain.ScreeningBand{
				{LowerLimit: f(1), Outcome: domain.ScreeningQuarantine, Reason: "assign-new with claimed identifier"},
			},
			Enabled: true,
		},
	}
}
