// Package engine implements the match engine: identifier confirmation,
// candidate blocking, the chained legacy and categorical scorers, best-match
// ranking, and the outcome state machine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/edu-registry/penmatch/internal/blocking"
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/matchcode"
	"github.com/edu-registry/penmatch/internal/names"
	"github.com/edu-registry/penmatch/internal/scoring"
)

// Version is reported in outcome metadata.
const Version = "1.2.0"

// Engine resolves transaction records against the master registry. It holds
// no per-request state and is safe for concurrent use.
type Engine struct {
	dir     domain.Directory
	tables  domain.LookupTables
	blocker *blocking.Strategy
	nicks   *names.Resolver
	matcher *matchcode.Resolver
	logger  *slog.Logger
}

// New creates a match engine. freq supplies surname-frequency counts; pass
// nil to read them straight from the lookup tables.
func New(dir domain.Directory, tables domain.LookupTables, freq blocking.FrequencyGetter, cfg domain.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if freq == nil {
		freq = tables.SurnameFrequency
	}
	return &Engine{
		dir:     dir,
		tables:  tables,
		blocker: blocking.NewStrategy(dir, freq),
		nicks:   names.NewResolver(tables),
		matcher: matchcode.NewResolver(tables, cfg.ForeignSurnameCategory),
		logger:  logger.With("component", "engine"),
	}
}

// Validate checks the mandatory fields of a transaction record. Surname,
// given name, date of birth, and sex are required; the date of birth must
// be a plausible YYYYMMDD string. A claimed identifier is not validated
// here: an invalid checksum is an outcome, not an input error.
func Validate(tx *domain.TransactionRecord) error {
	switch {
	case tx.Surname == "":
		return fmt.Errorf("%w: surname is required", domain.ErrInvalidInput)
	case tx.GivenName == "":
		return fmt.Errorf("%w: given name is required", domain.ErrInvalidInput)
	case tx.Sex == "":
		return fmt.Errorf("%w: sex is required", domain.ErrInvalidInput)
	}
	if !validDOB(tx.DOB) {
		return fmt.Errorf("%w: dob must be YYYYMMDD", domain.ErrInvalidInput)
	}
	return nil
}

func validDOB(dob string) bool {
	if len(dob) != 8 {
		return false
	}
	for i := 0; i < 8; i++ {
		if dob[i] < '0' || dob[i] > '9' {
			return false
		}
	}
	month := (int(dob[4]-'0') * 10) + int(dob[5]-'0')
	day := (int(dob[6]-'0') * 10) + int(dob[7]-'0')
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// Match resolves one transaction record to a terminal outcome. The engine
// performs no writes; persisting the outcome belongs to the caller.
func (e *Engine) Match(ctx context.Context, tx *domain.TransactionRecord) (*domain.MatchOutcome, error) {
	start := time.Now()

	if err := Validate(tx); err != nil {
		return nil, err
	}
	if err := e.derive(ctx, tx); err != nil {
		return nil, err
	}

	out := &domain.MatchOutcome{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Metadata:  domain.OutcomeMetadata{EngineVersion: Version},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		out.Metadata.TraceID = sc.TraceID().String()
	}

	branch := branchSearchOnly
	excludePEN := ""

	if tx.PEN != "" && tx.UpdateCode != domain.UpdateCodeSearchOnly {
		conf, err := e.confirm(ctx, tx)
		if err != nil {
			return nil, err
		}

		switch conf.result {
		case ConfirmationConfirmed:
			e.finishConfirmed(tx, out, conf)
			out.Metadata.TotalMs = time.Since(start).Milliseconds()
			e.logOutcome(ctx, tx, out)
			return out, nil
		case ConfirmationNotConfirmed:
			branch = branchRejected
			excludePEN = conf.candidate.PEN
		case ConfirmationNoResult:
			branch = branchNoResult
		}
	}

	if err := e.search(ctx, tx, out, branch, excludePEN); err != nil {
		return nil, err
	}

	applyOverrides(tx, out, nil, false)
	out.Metadata.TotalMs = time.Since(start).Milliseconds()
	e.logOutcome(ctx, tx, out)
	return out, nil
}

// derive computes the per-request fields: both name sets, nickname
// expansion, and the normalized local ID comparisons downstream rely on.
func (e *Engine) derive(ctx context.Context, tx *domain.TransactionRecord) error {
	tx.Derived.Names = names.DeriveSet(tx.Surname, tx.GivenName, tx.MiddleName,
		tx.UsualSurname, tx.UsualGiven, tx.UsualMiddle)
	tx.Derived.LegacyNames = names.LegacySet(tx.Surname, tx.GivenName, tx.MiddleName,
		tx.UsualSurname, tx.UsualGiven, tx.UsualMiddle)

	nicks, err := e.nicks.Resolve(ctx, tx.GivenName)
	if err != nil {
		return fmt.Errorf("nickname lookup: %w", err)
	}
	tx.Derived.Names.Nicknames = nicks
	tx.Derived.LegacyNames.Nicknames = nicks
	return nil
}

// finishConfirmed completes the outcome for a confirmed identifier: AA
// directly, B1 through a merge chain, then the post-processing demotions.
func (e *Engine) finishConfirmed(tx *domain.TransactionRecord, out *domain.MatchOutcome, conf *confirmation) {
	out.Status = domain.StatusAA
	if conf.viaMerge {
		out.Status = domain.StatusB1
	}
	out.PEN = conf.candidate.PEN

	m := domain.CandidateMatch{PEN: conf.candidate.PEN, Result: domain.ResultPass}
	if conf.algorithm != scoring.AlgNone {
		m.Algorithm = string(conf.algorithm)
	} else {
		m.MatchCode = conf.matchCode
	}
	out.Candidates = []domain.CandidateMatch{m}
	out.Metadata.CandidatesEvaluated = 1

	applyOverrides(tx, out, conf.candidate, conf.deceased)
}

// search runs blocking, the legacy pass, and, unless the legacy pass
// short-circuits, the categorical pass, then ranks whatever survived.
func (e *Engine) search(ctx context.Context, tx *domain.TransactionRecord, out *domain.MatchOutcome, branch searchBranch, excludePEN string) error {
	blockStart := time.Now()
	plan, err := e.blocker.BuildPlan(ctx, tx)
	if err != nil {
		return err
	}
	tx.Derived.PartialSurname = plan.PartialSurname
	tx.Derived.SurnameSize = plan.SurnameSize
	tx.Derived.PartialGiven = plan.PartialGiven
	tx.Derived.FullSurnameFrequency = plan.FullFrequency
	tx.Derived.PartialSurnameFrequency = plan.PartialFrequency

	cands, err := e.blocker.Retrieve(ctx, plan)
	if err != nil {
		return err
	}
	out.Metadata.BlockingMs = time.Since(blockStart).Milliseconds()
	out.Metadata.CandidatesRetrieved = len(cands)

	scoreStart := time.Now()
	defer func() {
		out.Metadata.ScoringMs = time.Since(scoreStart).Milliseconds()
	}()

	sess := newSession()
	evaluated := 0

	// Legacy pass.
	for _, cand := range cands {
		if cand.PEN == excludePEN || cand.Status == domain.StatusMerged {
			continue
		}
		if cand.Status == domain.StatusDeceased {
			sess.deceasedSeen = true
			continue
		}
		evaluated++

		// An exact demographic hit confirms directly, unless a same-school
		// local-ID conflict suggests a twin; then it stays an ordinary
		// search match for a human to review.
		if alg := scoring.ExactMatch(tx, cand); alg != scoring.AlgNone && !possibleTwin(tx, cand) {
			out.Status = domain.StatusAA
			out.PEN = cand.PEN
			out.Candidates = []domain.CandidateMatch{{
				PEN:       cand.PEN,
				Result:    domain.ResultPass,
				Algorithm: string(alg),
			}}
			out.Metadata.CandidatesEvaluated = evaluated
			out.Deceased = sess.deceasedSeen
			return nil
		}

		b := scoring.Score(tx, cand)
		if alg, conf := scoring.Evaluate(b, tx.LocalID); alg != scoring.AlgNone {
			sess.addLegacy(cand.PEN, alg, b.Total(), conf)
		}
	}
	out.Metadata.CandidatesEvaluated = evaluated

	// A skipped deceased record is still worth surfacing to the caller.
	out.Deceased = sess.deceasedSeen

	// One really-good candidate and no contenders: skip the categorical
	// matcher entirely.
	if m, ok := sess.singleReallyGood(); ok {
		out.Status = searchStatus(branch, 1)
		out.PEN = m.PEN
		out.Candidates = []domain.CandidateMatch{m}
		return nil
	}

	// Categorical pass.
	for _, cand := range cands {
		if cand.PEN == excludePEN || cand.Status != domain.StatusActive {
			continue
		}
		code, result, err := e.matcher.Resolve(ctx, tx, cand)
		if err != nil {
			return err
		}
		if result != domain.ResultFail {
			sess.addCategorical(cand.PEN, code, result)
		}
	}

	ranked := Rank(sess.matches)
	out.Status = searchStatus(branch, len(ranked))
	out.Candidates = ranked
	if len(ranked) == 1 {
		out.PEN = ranked[0].PEN
	}
	return nil
}

func (e *Engine) logOutcome(ctx context.Context, tx *domain.TransactionRecord, out *domain.MatchOutcome) {
	e.logger.InfoContext(ctx, "match resolved",
		"outcome_id", out.ID,
		"status", out.Status,
		"candidates", len(out.Candidates),
		"retrieved", out.Metadata.CandidatesRetrieved,
		"evaluated", out.Metadata.CandidatesEvaluated,
		"update_code", tx.UpdateCode,
		"total_ms", out.Metadata.TotalMs,
	)
}
