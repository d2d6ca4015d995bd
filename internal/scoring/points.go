// Package scoring implements the legacy point-based matcher: per-field
// similarity points and the weighted pass rules S1/S2/20/30/40/50/51.
package scoring

import (
	"strings"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/names"
)

// Field point values.
const (
	// RareSurnameMax is the full-surname frequency at or below which an
	// exact surname match earns the rarity bonus.
	RareSurnameMax = 5

	// SurnameRarityBonus is added to an exact match on a rare surname.
	SurnameRarityBonus = 5

	// LocalIDDemerit is subtracted when local IDs at the same school
	// actually conflict.
	LocalIDDemerit = 10

	// RuralPostalPrefix marks rural postal codes, which carry almost no
	// address signal.
	RuralPostalPrefix = "V0"

	// SuppressedDistrict is the district whose same-district points are
	// suppressed.
	SuppressedDistrict = "102"
)

// Breakdown holds the per-field points for one transaction/candidate pair.
type Breakdown struct {
	Sex      int // 0 or 5
	Birthday int // 0, 5, 10, 15, 20
	Surname  int // 0, 10, 20, 25 (exact + rarity bonus)
	Given    int // 0, 5, 10, 15, 20
	Middle   int // 0, 5, 10, 15, 20
	LocalID  int // 0, 5, 10, 20
	Demerits int // subtracted from the algorithm-50 total
	Address  int // 0, 1, 10

	// GivenFlip records that given and middle cross-matched and were
	// upgraded, so transposed data entry is not penalized.
	GivenFlip bool

	// Algorithm is the first rule-set satisfied, if any.
	Algorithm Algorithm
}

// Total is the algorithm-50 sum: every field minus local-ID demerits.
func (b *Breakdown) Total() int {
	return b.Sex + b.Birthday + b.Surname + b.Given + b.Middle + b.LocalID + b.Address - b.Demerits
}

// Score computes the full field breakdown for a candidate. The transaction's
// legacy name set (punctuation intact) must already be derived.
func Score(tx *domain.TransactionRecord, cand *domain.CandidateRecord) *Breakdown {
	candSet := names.LegacySet(cand.Surname, cand.GivenName, cand.MiddleName,
		cand.UsualSurname, cand.UsualGiven, cand.UsualMiddle)
	txSet := tx.Derived.LegacyNames

	b := &Breakdown{
		Sex:      scoreSex(tx.Sex, cand.Sex),
		Birthday: scoreBirthday(tx.DOB, cand.DOB),
		Surname:  scoreSurname(&txSet, &candSet, tx.Derived.FullSurnameFrequency),
		Address:  scoreAddress(tx.PostalCode, cand.PostalCode),
	}
	b.LocalID, b.Demerits = scoreLocalID(tx, cand)

	scoreGivenMiddle(b, &txSet, &candSet)

	return b
}

func scoreSex(a, c string) int {
	if a != "" && names.Upper(a) == names.Upper(c) {
		return 5
	}
	return 0
}

// scoreBirthday compares two 8-digit YYYYMMDD strings. Malformed DOBs are
// rejected at the boundary, so both are assumed well-formed here.
func scoreBirthday(a, c string) int {
	if len(a) != 8 || len(c) != 8 {
		return 0
	}
	if a == c {
		return 20
	}

	year, month, day := a[:4] == c[:4], a[4:6] == c[4:6], a[6:8] == c[6:8]

	// Month/day transposed with matching year.
	if year && a[4:6] == c[6:8] && a[6:8] == c[4:6] {
		return 15
	}

	// Five or more of the six rightmost digits equal.
	same := 0
	for i := 2; i < 8; i++ {
		if a[i] == c[i] {
			same++
		}
	}
	if same >= 5 {
		return 15
	}

	if (year && month) || (year && day) {
		return 10
	}
	if (month && day) || year {
		return 5
	}
	return 0
}

func scoreSurname(tx, cand *domain.NameSet, fullFreq int) int {
	txNames := nonBlank(tx.Surname, tx.UsualSurname)
	candNames := nonBlank(cand.Surname, cand.UsualSurname)

	for _, a := range txNames {
		for _, c := range candNames {
			if a == c {
				if fullFreq > 0 && fullFreq <= RareSurnameMax {
					return 20 + SurnameRarityBonus
				}
				return 20
			}
		}
	}

	for _, a := range txNames {
		for _, c := range candNames {
			if len(a) >= 4 && len(c) >= 4 && a[:4] == c[:4] {
				return 10
			}
			if names.Soundex(a) == names.Soundex(c) {
				return 10
			}
		}
	}

	return 0
}

// scoreGivenMiddle fills the given and middle fields, including the
// cross-match flip upgrade.
func scoreGivenMiddle(b *Breakdown, tx, cand *domain.NameSet) {
	txGiven := nonBlank(tx.Given, tx.UsualGiven, tx.AltGiven)
	txMiddle := tx.MiddleVariants()
	candGiven := nonBlank(cand.Given, cand.UsualGiven, cand.AltGiven)
	candMiddle := nonBlank(cand.Middle, cand.UsualMiddle, cand.AltMiddle)

	givenDirect := scoreNameField(txGiven, candGiven, tx.Nicknames)
	middleDirect := scoreNameField(txMiddle, candMiddle, nil)

	// Cross-match against the other field earns 10 with a flip flag.
	givenCross := 0
	if crossMatches(txGiven, candMiddle) {
		givenCross = 10
	}
	middleCross := 0
	if crossMatches(txMiddle, candGiven) {
		middleCross = 10
	}

	b.Given = maxInt(givenDirect, givenCross)
	b.Middle = maxInt(middleDirect, middleCross)

	// Flip upgrade: both names matched only crosswise and the rest of the
	// record carries at least 10 more points.
	if givenCross > givenDirect && middleCross > middleDirect {
		rest := b.Sex + b.Birthday + b.Surname + b.LocalID + b.Address - b.Demerits
		if rest >= 10 {
			b.Given = 15
			b.Middle = 15
			b.GivenFlip = true
		}
	}
}

// scoreNameField computes the point ladder for one name field across every
// variant pair. Nicknames are transaction-side only and score 10.
func scoreNameField(txVars, candVars, nicknames []string) int {
	best := 0
	for _, a := range txVars {
		for _, c := range candVars {
			if p := nameLevel(a, c); p > best {
				best = p
			}
		}
	}
	if best < 10 {
		for _, n := range nicknames {
			for _, c := range candVars {
				if n == c {
					return 10
				}
			}
		}
	}
	return best
}

// nameLevel is the shared similarity ladder for given and middle names.
func nameLevel(a, c string) int {
	if a == "" || c == "" {
		return 0
	}
	if a == c {
		return 20
	}
	if len(a) >= 10 && len(c) >= 10 && a[:10] == c[:10] {
		return 20
	}
	shorter := len(a)
	if len(c) < shorter {
		shorter = len(c)
	}
	if shorter >= 2 && (strings.Contains(a, c) || strings.Contains(c, a)) {
		return 15
	}
	if len(a) >= 4 && len(c) >= 4 && a[:4] == c[:4] {
		return 15
	}
	if a[0] == c[0] {
		return 5
	}
	return 0
}

// crossMatches reports a strong match (exact or 4-char prefix) between a
// name and the candidate's other name field.
func crossMatches(txVars, candOther []string) bool {
	for _, a := range txVars {
		for _, c := range candOther {
			if a == "" || c == "" {
				continue
			}
			if a == c || (len(a) >= 4 && len(c) >= 4 && a[:4] == c[:4]) {
				return true
			}
		}
	}
	return false
}

func scoreLocalID(tx *domain.TransactionRecord, cand *domain.CandidateRecord) (points, demerits int) {
	txID := TrimLocalID(tx.LocalID)
	candID := cand.LocalIDTrimmed
	if candID == "" {
		candID = TrimLocalID(cand.LocalID)
	}

	sameSchool := tx.Mincode != "" && tx.Mincode == cand.Mincode

	if sameSchool && txID != "" && txID == candID {
		return 20, 0
	}
	if sameSchool {
		if txID != "" && candID != "" && txID != candID {
			demerits = LocalIDDemerit
		}
		return 10, demerits
	}
	if len(tx.Mincode) >= 3 && len(cand.Mincode) >= 3 && tx.Mincode[:3] == cand.Mincode[:3] {
		if tx.Mincode[:3] == SuppressedDistrict {
			return 0, 0
		}
		return 5, 0
	}
	return 0, 0
}

func scoreAddress(a, c string) int {
	a = names.Upper(a)
	c = names.Upper(c)
	if len(a) < 3 || len(c) < 3 || a[:3] != c[:3] {
		return 0
	}
	if strings.HasPrefix(a, RuralPostalPrefix) {
		return 1
	}
	return 10
}

// TrimLocalID strips leading zeros and blanks from a local identifier.
func TrimLocalID(id string) string {
	id = names.Upper(id)
	return strings.TrimLeft(id, "0 ")
}

func nonBlank(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
