package matchcode

import "github.com/edu-registry/penmatch/internal/domain"

// TableVersion identifies the active code set. Result rows persisted with
// an older version are superseded by these defaults.
const TableVersion = "2026.1"

// Digit order within a code: surname, given, middle, year, month, day, sex.
//
// Pass codes all carry a surname match. Names agree (exactly, by initial,
// or with a blank middle) and at most one birth component is off, or the
// sex digit alone disagrees against an otherwise perfect record.
var passCodes = codeSet(
	// full demographic agreement
	"1111111", "1131111", "1141111",
	"1311111", "1331111", "1341111",
	// one birth component off, names and sex solid
	"1112111", "1142111",
	"1111211", "1141211",
	"1111121", "1141121",
	// sex digit alone disagrees
	"1111112", "1131112", "1141112",
)

// Questionable codes keep the surname match but weaken one more axis:
// a contradicted middle, a different given with supporting demographics,
// two birth components off, or an initial-only given with a birth slip.
var questionableCodes = codeSet(
	"1121111", "1121112",
	"1211111", "1241111",
	"1132111", "1131211", "1131121",
	"1312111", "1342111",
	"1311211", "1341211",
	"1311121", "1341121",
	"1112211", "1142211",
	"1112121", "1142121",
	"1111221", "1141221",
	"1311112", "1341112",
)

// Override code sets. Overrides run only for the codes enumerated here;
// every other code takes the table result as-is.
var (
	// concatOverrideCodes: given and middle both contradicted. Compound
	// given names split across the two fields can resolve by joining them.
	concatOverrideCodes = codeSet("1221111", "1221112", "1224111", "1221211", "1221121")

	// swapOverrideCodes: name fields entered in each other's slot. A single
	// given/middle swap can resolve the pair.
	swapOverrideCodes = codeSet("1221111", "1221112", "1231111", "1321111", "1232111", "1322111")

	// identifierOverrideCodes: borderline codes decided by the claimed
	// identifier instead of the table.
	identifierOverrideCodes = codeSet("1121111", "1211111", "1241111")

	// foreignSurnameOverrideCodes: codes whose pass/questionable standing
	// relies on the surname digit alone carrying the match. For surnames in
	// the configured foreign category that reliance is unsafe.
	foreignSurnameOverrideCodes = codeSet("1241111", "1242111", "1244111")
)

// DefaultResult resolves a match code against the static table. Codes not
// present in either set fail.
func DefaultResult(code string) domain.MatchResult {
	if _, ok := passCodes[code]; ok {
		return domain.ResultPass
	}
	if _, ok := questionableCodes[code]; ok {
		return domain.ResultQuestionable
	}
	return domain.ResultFail
}

// DefaultResults returns every non-fail row for seeding a repository.
func DefaultResults() map[string]domain.MatchResult {
	out := make(map[string]domain.MatchResult, len(passCodes)+len(questionableCodes))
	for code := range passCodes {
		out[code] = domain.ResultPass
	}
	for code := range questionableCodes {
		out[code] = domain.ResultQuestionable
	}
	return out
}

func codeSet(codes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
