// Package matchcode implements the categorical matcher: a 7-digit match
// code per candidate, resolved through a static code→result table with
// override rules for enumerated codes.
package matchcode

import (
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/names"
)

// Digit values. Surname, birth components, and sex use the 2-value domain;
// given and middle use the wider domains.
const (
	DigitMatch     = '1' // identical, partial, or nickname
	DigitDifferent = '2'
	DigitInitial   = '3' // initial-only, or detected one-character typo
	DigitBothBlank = '4' // middle only
)

// Typo-detector thresholds: both names at least MinTypoLength characters,
// lengths within one, exactly one substitution after optimal alignment.
const MinTypoLength = 5

// CandidateNames derives the normalized name set for a candidate on the
// categorical path.
func CandidateNames(cand *domain.CandidateRecord) domain.NameSet {
	return names.DeriveSet(cand.Surname, cand.GivenName, cand.MiddleName,
		cand.UsualSurname, cand.UsualGiven, cand.UsualMiddle)
}

// Compute builds the 7-digit match code for a transaction/candidate pair.
// Digit order: surname, given, middle, birth-year, birth-month, birth-day,
// sex. The result is always exactly 7 characters, each in {1,2,3,4}.
func Compute(tx *domain.TransactionRecord, cand *domain.CandidateRecord) string {
	candSet := CandidateNames(cand)
	return ComputeWithNames(&tx.Derived.Names, tx.DOB, tx.Sex, &candSet, cand.DOB, cand.Sex)
}

// ComputeWithNames is the pure core of Compute; overrides call it with
// modified name sets rather than mutating transaction state.
func ComputeWithNames(txNames *domain.NameSet, txDOB, txSex string, candNames *domain.NameSet, candDOB, candSex string) string {
	code := make([]byte, 0, domain.MatchCodeLength)

	code = append(code, surnameDigit(txNames.Surname, candNames.Surname))
	code = append(code, givenDigit(txNames, candNames))
	code = append(code, middleDigit(txNames, candNames))
	code = append(code, birthDigits(txDOB, candDOB)...)
	code = append(code, sexDigit(txSex, candSex))

	return string(code)
}

func surnameDigit(a, c string) byte {
	if a != "" && a == c {
		return DigitMatch
	}
	return DigitDifferent
}

func givenDigit(tx, cand *domain.NameSet) byte {
	txVars := tx.GivenVariants()
	candVars := cand.GivenVariants()

	if anyPair(txVars, candVars, sameName) {
		return DigitMatch
	}
	if anyPair(txVars, candVars, initialOnly) {
		return DigitInitial
	}
	return DigitDifferent
}

func middleDigit(tx, cand *domain.NameSet) byte {
	txVars := tx.MiddleVariants()
	candVars := cand.MiddleVariants()

	if len(txVars) == 0 && len(candVars) == 0 {
		return DigitBothBlank
	}
	if anyPair(txVars, candVars, sameName) {
		return DigitMatch
	}
	if anyPair(txVars, candVars, initialOnly) {
		return DigitInitial
	}
	// A single-character typo reclassifies "different" as "same initial".
	if anyPair(txVars, candVars, oneCharTypo) {
		return DigitInitial
	}
	return DigitDifferent
}

// birthDigits compares the year, month, and day components. A full
// month/day transposition, or a transposed pair inside the year, still
// counts as a match.
func birthDigits(a, c string) []byte {
	if len(a) != 8 || len(c) != 8 {
		return []byte{DigitDifferent, DigitDifferent, DigitDifferent}
	}

	year := byte(DigitDifferent)
	if a[:4] == c[:4] || transposedYear(a[:4], c[:4]) {
		year = DigitMatch
	}

	month, day := byte(DigitDifferent), byte(DigitDifferent)
	if a[4:6] == c[4:6] {
		month = DigitMatch
	}
	if a[6:8] == c[6:8] {
		day = DigitMatch
	}
	if a[4:6] == c[6:8] && a[6:8] == c[4:6] && a[4:6] != a[6:8] {
		month, day = DigitMatch, DigitMatch
	}

	return []byte{year, month, day}
}

// transposedYear reports whether the years differ only by one swapped
// adjacent digit pair.
func transposedYear(a, c string) bool {
	for i := 0; i < 3; i++ {
		if a[i] != c[i] {
			return a[i] == c[i+1] && a[i+1] == c[i] && a[i+2:] == c[i+2:]
		}
	}
	return false
}

func sexDigit(a, c string) byte {
	if a != "" && names.Upper(a) == names.Upper(c) {
		return DigitMatch
	}
	return DigitDifferent
}

// sameName covers the identical, partial (prefix subset), and equal cases.
func sameName(a, c string) bool {
	if a == c {
		return true
	}
	shorter, longer := a, c
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return len(shorter) >= 2 && longer[:len(shorter)] == shorter
}

func initialOnly(a, c string) bool {
	if len(a) == 1 && len(c) >= 1 {
		return a[0] == c[0]
	}
	if len(c) == 1 && len(a) >= 1 {
		return a[0] == c[0]
	}
	return false
}

// oneCharTypo detects a single-character substitution between two names of
// near-equal length.
func oneCharTypo(a, c string) bool {
	if len(a) < MinTypoLength || len(c) < MinTypoLength {
		return false
	}
	diff := len(a) - len(c)
	if diff < -1 || diff > 1 {
		return false
	}
	return levenshtein(a, c) == 1
}

// levenshtein is the edit distance between two names, two-row variant.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	row := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = minInt(minInt(row[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		row, prev = prev, row
	}

	return prev[len(b)]
}

func anyPair(txVars, candVars []string, match func(a, c string) bool) bool {
	for _, a := range txVars {
		for _, c := range candVars {
			if a != "" && c != "" && match(a, c) {
				return true
			}
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
