// Package rules provides the CEL-based screening engine. Screening rules
// run at the request boundary, before the match engine, and classify a
// submission as accept, quarantine, or reject based on data quality.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/edu-registry/penmatch/internal/domain"
)

// Engine compiles and evaluates screening rules. Rules can be reloaded at
// runtime; evaluation takes a read lock only.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.ScreeningRule
	Program cel.Program
}

// NewEngine creates a screening engine. The CEL environment exposes the
// submitted demographic fields as top-level variables.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("surname", cel.StringType),
		cel.Variable("given_name", cel.StringType),
		cel.Variable("middle_name", cel.StringType),
		cel.Variable("dob", cel.StringType),
		cel.Variable("sex", cel.StringType),
		cel.Variable("mincode", cel.StringType),
		cel.Variable("local_id", cel.StringType),
		cel.Variable("postal_code", cel.StringType),
		cel.Variable("pen", cel.StringType),
		cel.Variable("update_code", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.ScreeningRule) error {
	if rule == nil {
		return fmt.Errorf("screening rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads one rule.
func (e *Engine) LoadRule(rule *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}
	e.compiled[rule.ID] = compiled
	return nil
}

// ReloadRules replaces the loaded rule set. Disabled rules are skipped.
// This enables hot-reloading from the repository.
func (e *Engine) ReloadRules(rules []*domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Screen evaluates every loaded rule against a transaction record and
// returns one result per rule. An empty rule set accepts everything.
func (e *Engine) Screen(tx *domain.TransactionRecord) []domain.ScreeningResult {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"surname":     tx.Surname,
		"given_name":  tx.GivenName,
		"middle_name": tx.MiddleName,
		"dob":         tx.DOB,
		"sex":         tx.Sex,
		"mincode":     tx.Mincode,
		"local_id":    tx.LocalID,
		"postal_code": tx.PostalCode,
		"pen":         tx.PEN,
		"update_code": tx.UpdateCode,
	}

	results := make([]domain.ScreeningResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, evaluateRule(rule, activation))
	}
	return results
}

// Verdict reduces a result set to the single strictest outcome: reject
// beats quarantine beats accept. Evaluation errors quarantine the record
// rather than letting it through unscreened.
func Verdict(results []domain.ScreeningResult) string {
	verdict := domain.ScreeningAccept
	for _, r := range results {
		switch r.Outcome {
		case domain.ScreeningReject:
			return domain.ScreeningReject
		case domain.ScreeningQuarantine, domain.ScreeningError:
			verdict = domain.ScreeningQuarantine
		}
	}
	return verdict
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the currently loaded rule definitions.
func (e *Engine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiled))
	for _, compiled := range e.compiled {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledRule)
	return nil
}

func evaluateRule(rule *CompiledRule, activation map[string]any) domain.ScreeningResult {
	result := domain.ScreeningResult{RuleID: rule.Rule.ID}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.ScreeningError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Score = toScore(out)
	result.Outcome, result.Reason = matchBand(result.Score, rule.Rule.Bands)
	return result
}

// toScore converts a CEL value to a numeric score. Booleans map to 0/1 so
// predicate-style rules band cleanly.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the band containing score: lower inclusive, upper
// exclusive, nil meaning unbounded. No matching band accepts.
func matchBand(score float64, bands []domain.ScreeningBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.Outcome, band.Reason
		}
	}
	return domain.ScreeningAccept, "no matching band"
}

func (e *Engine) compileRule(rule *domain.ScreeningRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}
