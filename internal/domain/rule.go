package domain

// Severity of a triggered rule.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// SignalType is a canonical leakage-signal category.
type SignalType string

const (
	SignalRevenueGap      SignalType = "RevenueGap"
	SignalChallanDelay    SignalType = "ChallanDelay"
	SignalProhibitedLand  SignalType = "ProhibitedLand"
	SignalDataIntegrity   SignalType = "DataIntegrity"
	SignalMarketValueRisk SignalType = "MarketValueRisk"
	SignalExemptionRisk   SignalType = "ExemptionRisk"
	SignalHolidayFee      SignalType = "HolidayFee"
)

// Risk level thresholds: score >= 60 is High, >= 30 is Medium, else Low.
const (
	RiskLevelHigh   = "High"
	RiskLevelMedium = "Medium"
	RiskLevelLow    = "Low"
)

// Calculation is one label/value pair in a rule hit's audit trail.
// Order is preserved for display.
type Calculation struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// RuleHit is the output of one triggered rule.
type RuleHit struct {
	RuleID       string        `json:"rule_id"`
	RuleName     string        `json:"rule_name"`
	Category     SignalType    `json:"category"`
	Severity     Severity      `json:"severity"`
	ImpactINR    float64       `json:"impact_inr"`
	Explanation  string        `json:"explanation"`
	FieldsUsed   []string      `json:"fields_used"`
	Calculations []Calculation `json:"calculations"`
	Confidence   int           `json:"confidence"`
}

// RuleEvaluationResult aggregates all rule hits for one case.
// TriggeredRules preserves rule evaluation order; LeakageSignals preserves
// first-occurrence insertion order.
type RuleEvaluationResult struct {
	TriggeredRules  []RuleHit    `json:"triggered_rules"`
	LeakageSignals  []SignalType `json:"leakage_signals"`
	RiskScore       int          `json:"risk_score"`
	RiskLevel       string       `json:"risk_level"`
	Confidence      int          `json:"confidence"`
	ImpactAmountINR float64      `json:"impact_amount_inr"`
	GapINR          float64      `json:"gap_inr"`
	PayableINR      float64      `json:"payable_total_inr"`
}

// EvaluationRecord is a persisted rule evaluation, linked to its case.
// SRCode identifies the office, for per-office velocity counting.
type EvaluationRecord struct {
	ID        string               `json:"id"`
	TenantID  string               `json:"tenantId"`
	CaseID    string               `json:"caseId"`
	SRCode    string               `json:"srCode,omitempty"`
	Result    RuleEvaluationResult `json:"result"`
	CreatedAt int64                `json:"createdAt"` // unix seconds
}

// CustomRuleConfig is an analyst-defined rule layered on top of the builtin
// catalog. Expression is a CEL predicate over the derived case facts; when it
// evaluates to true the rule contributes one hit with the configured
// category, severity, and confidence.
type CustomRuleConfig struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Expression  string     `json:"expression"`
	Category    SignalType `json:"category"`
	Severity    Severity   `json:"severity"`
	Confidence  int        `json:"confidence"`

	// VelocityWindowSecs enables the office_eval_count variable for this
	// rule: the number of evaluations recorded for the case's SR office
	// within the window. Zero disables the lookup.
	VelocityWindowSecs int `json:"velocityWindowSecs,omitempty"`

	Enabled bool `json:"enabled"`
}
