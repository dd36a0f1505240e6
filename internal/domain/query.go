package domain

import "time"

// Intent is the classified purpose of a free-text analyst query.
type Intent string

const (
	IntentExemptionUsage Intent = "EXEMPTION_USAGE"
	IntentProhibitedLand Intent = "PROHIBITED_LAND"
	IntentChallanDelay   Intent = "CHALLAN_DELAY"
	IntentSLABreach      Intent = "SLA_BREACH"
	IntentHighValue      Intent = "HIGH_VALUE_CASES"
	IntentPaymentGap     Intent = "PAYMENT_GAP"
	IntentLeakageSummary Intent = "LEAKAGE_SUMMARY"
	IntentCaseSearch     Intent = "CASE_SEARCH"
	IntentGeneralQuery   Intent = "GENERAL_QUERY"
)

// ExtractedParams is the structured filter derived from one free-text query.
// Empty strings and nil pointers mean "no constraint on this dimension".
type ExtractedParams struct {
	Zone       string     `json:"zone,omitempty"`
	District   string     `json:"district,omitempty"`
	RiskLevel  string     `json:"risk_level,omitempty"`
	SignalType SignalType `json:"signal_type,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	MinGap     *float64   `json:"min_gap,omitempty"`

	// MinPayable is honored by the filter but has no natural-language
	// extraction path; it exists for programmatic callers.
	MinPayable *float64 `json:"min_payable,omitempty"`

	CaseStatus  string `json:"case_status,omitempty"`
	SLABreached *bool  `json:"sla_breached,omitempty"`
	Limit       *int   `json:"limit,omitempty"`
}

// QuerySummary aggregates the filtered case set.
type QuerySummary struct {
	TotalPayableINR float64 `json:"total_payable_inr"`
	TotalPaidINR    float64 `json:"total_paid_inr"`
	TotalGapINR     float64 `json:"total_gap_inr"`
	HighRiskCount   int     `json:"high_risk_count"`
	AvgConfidence   int     `json:"avg_confidence"`
}

// RevenueResultRow is a flat projection of one matched case for tabular
// display.
type RevenueResultRow struct {
	CaseID     string       `json:"case_id"`
	SRName     string       `json:"sr_name"`
	District   string       `json:"district"`
	Zone       string       `json:"zone"`
	DocType    string       `json:"doc_type"`
	RegDate    string       `json:"reg_date"`
	PayableINR float64      `json:"payable_total_inr"`
	PaidINR    float64      `json:"paid_total_inr"`
	GapINR     float64      `json:"gap_inr"`
	RiskLevel  string       `json:"risk_level"`
	RiskScore  int          `json:"risk_score"`
	Signals    []SignalType `json:"signals"`
	CaseStatus string       `json:"case_status"`
	Confidence int          `json:"confidence"`
}

// Clarifier asks the analyst for the parameters a general query is missing.
type Clarifier struct {
	Missing     []string          `json:"missing"`
	Suggestions map[string]string `json:"suggestions"`
}

// Response stages.
const (
	StageClarifier = "clarifier"
	StageResults   = "results"
)

// RevenueChatResponse is the interpreter's answer to one analyst query.
type RevenueChatResponse struct {
	Stage     string             `json:"stage"`
	Intent    Intent             `json:"intent"`
	Response  string             `json:"response"`
	Rows      []RevenueResultRow `json:"rows,omitempty"`
	RowCount  int                `json:"row_count"`
	Summary   *QuerySummary      `json:"summary,omitempty"`
	Params    ExtractedParams    `json:"params"`
	Filters   map[string]string  `json:"filters,omitempty"`
	Clarifier *Clarifier         `json:"clarifier,omitempty"`
}

// ChatMessage is one turn of prior conversation, passed through for context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
