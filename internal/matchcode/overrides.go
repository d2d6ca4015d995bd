package matchcode

import (
	"context"
	"fmt"

	"github.com/edu-registry/penmatch/internal/domain"
)

// Resolver evaluates a transaction/candidate pair on the categorical path:
// compute the code, look it up, then apply the override rules for the
// enumerated codes. Overrides run only for transactions carrying
// domain.ApplicationSpecial.
type Resolver struct {
	tables          domain.LookupTables
	foreignCategory string
}

// NewResolver builds a categorical resolver over the given lookup tables.
// foreignCategory selects the ancestry class for the foreign-surname
// override.
func NewResolver(tables domain.LookupTables, foreignCategory string) *Resolver {
	return &Resolver{tables: tables, foreignCategory: foreignCategory}
}

// Resolve returns the final match code and result for the pair. The
// returned code reflects any override that changed it (concatenation or
// swap); forced results keep the original code.
func (r *Resolver) Resolve(ctx context.Context, tx *domain.TransactionRecord, cand *domain.CandidateRecord) (string, domain.MatchResult, error) {
	code := Compute(tx, cand)
	result, err := r.lookup(ctx, code)
	if err != nil {
		return "", "", err
	}

	if tx.ApplicationCode != domain.ApplicationSpecial {
		return code, result, nil
	}
	return r.applyOverrides(ctx, tx, cand, code, result)
}

func (r *Resolver) lookup(ctx context.Context, code string) (domain.MatchResult, error) {
	result, err := r.tables.MatchCodeResult(ctx, code)
	if err != nil {
		return "", fmt.Errorf("match code lookup: %w", err)
	}
	return result, nil
}

// applyOverrides runs the override rules in a fixed order. Name-mutating
// overrides (concatenation, swap) recompute the code against modified name
// sets and adopt the recomputed code only when it resolves to a pass.
// Forcing overrides (identifier, foreign surname) replace the result
// without touching the code.
func (r *Resolver) applyOverrides(ctx context.Context, tx *domain.TransactionRecord, cand *domain.CandidateRecord, code string, result domain.MatchResult) (string, domain.MatchResult, error) {
	candNames := CandidateNames(cand)

	if _, ok := concatOverrideCodes[code]; ok && result != domain.ResultPass {
		if c, res, ok, err := r.tryConcat(ctx, tx, &candNames, cand); err != nil {
			return "", "", err
		} else if ok {
			code, result = c, res
		}
	}

	if _, ok := swapOverrideCodes[code]; ok && result != domain.ResultPass {
		if c, res, ok, err := r.trySwap(ctx, tx, &candNames, cand); err != nil {
			return "", "", err
		} else if ok {
			code, result = c, res
		}
	}

	if _, ok := identifierOverrideCodes[code]; ok && tx.PEN != "" {
		if tx.PEN == cand.PEN {
			return code, domain.ResultPass, nil
		}
		return code, domain.ResultFail, nil
	}

	if _, ok := foreignSurnameOverrideCodes[code]; ok && result != domain.ResultFail {
		foreign, err := r.tables.ForeignSurname(ctx, cand.Surname, r.foreignCategory)
		if err != nil {
			return "", "", fmt.Errorf("foreign surname lookup: %w", err)
		}
		if foreign {
			return code, domain.ResultFail, nil
		}
	}

	return code, result, nil
}

// tryConcat joins the transaction's given and middle names in both orders
// and recomputes. The first order that resolves to a pass wins.
func (r *Resolver) tryConcat(ctx context.Context, tx *domain.TransactionRecord, candNames *domain.NameSet, cand *domain.CandidateRecord) (string, domain.MatchResult, bool, error) {
	base := tx.Derived.Names
	if base.Given == "" || base.Middle == "" {
		return "", "", false, nil
	}

	for _, joined := range []string{base.Given + base.Middle, base.Middle + base.Given} {
		mod := base
		mod.Given = joined
		mod.Middle = ""
		mod.UsualGiven = ""
		mod.UsualMiddle = ""
		mod.AltGiven = ""
		mod.AltMiddle = ""
		mod.Nicknames = nil

		code := ComputeWithNames(&mod, tx.DOB, tx.Sex, candNames, cand.DOB, cand.Sex)
		result, err := r.lookup(ctx, code)
		if err != nil {
			return "", "", false, err
		}
		if result == domain.ResultPass {
			return code, result, true, nil
		}
	}
	return "", "", false, nil
}

// trySwap exchanges the transaction's given and middle names once and
// recomputes.
func (r *Resolver) trySwap(ctx context.Context, tx *domain.TransactionRecord, candNames *domain.NameSet, cand *domain.CandidateRecord) (string, domain.MatchResult, bool, error) {
	base := tx.Derived.Names
	if base.Given == "" && base.Middle == "" {
		return "", "", false, nil
	}

	mod := base
	mod.Given, mod.Middle = base.Middle, base.Given
	mod.UsualGiven, mod.UsualMiddle = base.UsualMiddle, base.UsualGiven
	mod.AltGiven, mod.AltMiddle = base.AltMiddle, base.AltGiven
	mod.Nicknames = nil

	code := ComputeWithNames(&mod, tx.DOB, tx.Sex, candNames, cand.DOB, cand.Sex)
	result, err := r.lookup(ctx, code)
	if err != nil {
		return "", "", false, err
	}
	if result == domain.ResultPass {
		return code, result, true, nil
	}
	return "", "", false, nil
}
