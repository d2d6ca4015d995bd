package engine

import (
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/scoring"
)

// session holds the request-scoped state of one match resolution. It is
// created per request and discarded after the outcome is returned.
type session struct {
	matches []domain.CandidateMatch

	// Confidence bucket bookkeeping from the legacy pass. Only the single
	// best really-good candidate is kept.
	reallyGoodCount int
	prettyGoodCount int
	bestReallyGood  domain.CandidateMatch
	bestPoints      int

	deceasedSeen bool
}

func newSession() *session {
	return &session{}
}

// addLegacy records a candidate that passed a legacy rule-set.
func (s *session) addLegacy(pen string, alg scoring.Algorithm, points int, conf scoring.Confidence) {
	m := domain.CandidateMatch{
		PEN:       pen,
		Result:    domain.ResultPass,
		Algorithm: string(alg),
		Points:    points,
	}

	switch conf {
	case scoring.ConfidenceReallyGood:
		s.reallyGoodCount++
		if s.reallyGoodCount == 1 || points > s.bestPoints {
			s.bestReallyGood = m
			s.bestPoints = points
		}
	case scoring.ConfidencePrettyGood:
		s.prettyGoodCount++
	}

	s.add(m)
}

// addCategorical records a candidate retained by the categorical matcher.
// An existing legacy entry for the same identifier is upgraded in place so
// the selector can rank it by match code.
func (s *session) addCategorical(pen, code string, result domain.MatchResult) {
	for i := range s.matches {
		if s.matches[i].PEN == pen {
			s.matches[i].MatchCode = code
			s.matches[i].Result = result
			return
		}
	}
	s.add(domain.CandidateMatch{PEN: pen, Result: result, MatchCode: code})
}

func (s *session) add(m domain.CandidateMatch) {
	if len(s.matches) >= domain.MaxCandidates {
		return
	}
	for _, existing := range s.matches {
		if existing.PEN == m.PEN {
			return
		}
	}
	s.matches = append(s.matches, m)
}

// singleReallyGood reports whether the legacy pass resolved to exactly one
// really-good candidate with no pretty-good contenders, the short-circuit
// that skips the categorical matcher.
func (s *session) singleReallyGood() (domain.CandidateMatch, bool) {
	if s.reallyGoodCount == 1 && s.prettyGoodCount == 0 {
		return s.bestReallyGood, true
	}
	return domain.CandidateMatch{}, false
}
