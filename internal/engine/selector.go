package engine

import (
	"fmt"
	"sort"

	"github.com/edu-registry/penmatch/internal/domain"
)

// sentinelKey sorts after every real match-code key; candidates carrying
// only legacy-algorithm provenance rank behind categorical ones.
const sentinelKey = "999999999999"

// Rank orders candidate matches best first. The sort key per candidate is
// the numeric concatenation sum(digits) ‖ (7-ones) ‖ (7-twos) ‖ (7-threes)
// ‖ code; smaller keys rank higher. Ties are left in insertion order.
func Rank(matches []domain.CandidateMatch) []domain.CandidateMatch {
	ranked := make([]domain.CandidateMatch, len(matches))
	copy(ranked, matches)

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankKey(ranked[i]) < rankKey(ranked[j])
	})
	return ranked
}

// rankKey builds the fixed-width comparable key for one candidate. Every
// component is zero-padded so lexicographic comparison equals numeric
// comparison.
func rankKey(m domain.CandidateMatch) string {
	code := m.MatchCode
	if len(code) != domain.MatchCodeLength {
		return sentinelKey
	}

	sum, ones, twos, threes := 0, 0, 0, 0
	for i := 0; i < len(code); i++ {
		d := code[i]
		if d < '1' || d > '4' {
			return sentinelKey
		}
		sum += int(d - '0')
		switch d {
		case '1':
			ones++
		case '2':
			twos++
		case '3':
			threes++
		}
	}

	return fmt.Sprintf("%02d%d%d%d%s", sum, 7-ones, 7-twos, 7-threes, code)
}
