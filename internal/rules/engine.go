package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine layers analyst-defined CEL rules on top of the builtin catalog.
// Builtin semantics are never altered: Evaluate (catalog.go) stays a pure
// function, and the engine appends custom hits after the builtin ones before
// re-aggregating.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]*CompiledRule
	velocityGetter VelocityGetter
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.CustomRuleConfig
	Program cel.Program
}

// VelocityGetter returns the number of evaluations recorded for an SR office
// within a time window.
type VelocityGetter func(ctx context.Context, tenantID, srCode string, windowSecs int) (int64, error)

// NewEngine creates a rule engine with an optional velocity getter.
func NewEngine(velocityGetter VelocityGetter) (*Engine, error) {
	// CEL environment over the derived case facts. Custom expressions see
	// the same quantities the builtin catalog computes.
	env, err := cel.NewEnv(
		cel.Variable("payable_total", cel.DoubleType),
		cel.Variable("paid_total", cel.DoubleType),
		cel.Variable("gap", cel.DoubleType),
		cel.Variable("declared_value", cel.DoubleType),
		cel.Variable("expected_value", cel.DoubleType),
		cel.Variable("final_taxable_value", cel.DoubleType),
		cel.Variable("unit_rate_current", cel.DoubleType),
		cel.Variable("unit_rate_previous", cel.DoubleType),
		cel.Variable("nearby_median_rate", cel.DoubleType),
		cel.Variable("receipt_count", cel.IntType),
		cel.Variable("exemption_count", cel.IntType),
		cel.Variable("party_count", cel.IntType),
		cel.Variable("prohibited_land", cel.BoolType),
		cel.Variable("is_urban", cel.BoolType),
		cel.Variable("schedule_data_exists", cel.BoolType),
		cel.Variable("holiday_registration", cel.BoolType),
		cel.Variable("zone", cel.StringType),
		cel.Variable("district", cel.StringType),
		cel.Variable("reg_year", cel.IntType),
		cel.Variable("office_eval_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]*CompiledRule),
		velocityGetter: velocityGetter,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.CustomRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.CustomRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.CustomRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing custom rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.CustomRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded custom rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded custom rule configurations.
func (e *Engine) GetLoadedRules() []*domain.CustomRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.CustomRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// EvaluateCase runs the builtin catalog and then the loaded custom rules
// over one case fact sheet. Custom rules run in rule-ID order so repeated
// evaluations of the same input produce identical output.
func (e *Engine) EvaluateCase(ctx context.Context, tenantID string, in domain.ManualCaseInput) (domain.RuleEvaluationResult, error) {
	result := Evaluate(in)

	e.mu.RLock()
	compiled := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		compiled = append(compiled, r)
	}
	e.mu.RUnlock()

	if len(compiled) == 0 {
		return result, nil
	}

	sort.Slice(compiled, func(i, j int) bool { return compiled[i].Config.ID < compiled[j].Config.ID })

	activation := e.activation(in)

	hits := result.TriggeredRules
	for _, rule := range compiled {
		if rule.Config.VelocityWindowSecs > 0 && e.velocityGetter != nil {
			count, err := e.velocityGetter(ctx, tenantID, in.SRCode, rule.Config.VelocityWindowSecs)
			if err == nil {
				activation["office_eval_count"] = count
			}
		}

		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			// A broken custom rule must not poison the builtin result.
			continue
		}
		if !truthy(out) {
			continue
		}

		hits = append(hits, domain.RuleHit{
			RuleID:      rule.Config.ID,
			RuleName:    rule.Config.Name,
			Category:    rule.Config.Category,
			Severity:    rule.Config.Severity,
			ImpactINR:   0,
			Explanation: rule.Config.Description,
			FieldsUsed:  []string{"custom_rule"},
			Confidence:  rule.Config.Confidence,
		})
	}

	return Aggregate(hits, in.PayableTotal(), in.Gap()), nil
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) activation(in domain.ManualCaseInput) map[string]any {
	return map[string]any{
		"payable_total":        in.PayableTotal(),
		"paid_total":           in.PaidTotal(),
		"gap":                  in.Gap(),
		"declared_value":       in.DeclaredValue,
		"expected_value":       in.ExpectedValue,
		"final_taxable_value":  in.FinalTaxableValue,
		"unit_rate_current":    in.UnitRateCurrent,
		"unit_rate_previous":   in.UnitRatePrevious,
		"nearby_median_rate":   in.NearbyMedianRate,
		"receipt_count":        int64(len(in.Receipts)),
		"exemption_count":      int64(len(in.Exemptions)),
		"party_count":          int64(len(in.Parties)),
		"prohibited_land":      in.ProhibitedLandMatch,
		"is_urban":             in.IsUrban,
		"schedule_data_exists": in.ScheduleDataExists,
		"holiday_registration": in.HolidayRegistration,
		"zone":                 in.Zone,
		"district":             in.District,
		"reg_year":             int64(in.RegYear),
		"office_eval_count":    int64(0),
	}
}

// truthy converts a CEL value to a fired/not-fired decision.
func truthy(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

func (e *Engine) compileRule(cfg *domain.CustomRuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
