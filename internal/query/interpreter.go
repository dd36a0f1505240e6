package query

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/inr"
)

// defaultLimit caps the number of result rows when the analyst does not ask
// for a specific "top N".
const defaultLimit = 15

// CaseProvider fetches the full case collection for one query. A provider
// failure propagates to the caller unhandled; the pipeline itself never
// fails.
type CaseProvider func(ctx context.Context) ([]domain.LeakageCase, error)

// Interpreter answers free-text analyst questions over the case collection.
// It holds no mutable state; concurrent Process calls are independent.
type Interpreter struct {
	provider CaseProvider
	now      func() time.Time
}

// NewInterpreter builds an interpreter over the given case provider.
func NewInterpreter(provider CaseProvider) *Interpreter {
	return &Interpreter{
		provider: provider,
		now:      time.Now,
	}
}

// clarifierSuggestions is the fixed suggestion set offered whenever a general
// query lacks required parameters, regardless of what was asked.
var clarifierSuggestions = map[string]string{
	"zone":        "Coastal",
	"district":    "Visakhapatnam",
	"signal_type": string(domain.SignalRevenueGap),
	"risk_level":  "High",
}

// Process runs the full interpreter pipeline on one message: intent
// detection, parameter extraction, clarification check, then filter,
// aggregate, and message generation over the provider's cases. History is
// accepted for conversational context but does not influence classification.
func (it *Interpreter) Process(ctx context.Context, message string, history []domain.ChatMessage) (*domain.RevenueChatResponse, error) {
	intent := DetectIntent(message)
	params := extractParams(message, it.now())

	if missing := missingParams(intent, params); len(missing) > 0 {
		return &domain.RevenueChatResponse{
			Stage:    domain.StageClarifier,
			Intent:   intent,
			Response: clarifierMessage(missing),
			Params:   params,
			Clarifier: &domain.Clarifier{
				Missing:     missing,
				Suggestions: clarifierSuggestions,
			},
		}, nil
	}

	cases, err := it.provider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cases: %w", err)
	}

	filtered := filterCases(cases, params)
	summary := aggregateSummary(filtered)

	limit := defaultLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	top := filtered
	if len(top) > limit {
		top = top[:limit]
	}

	rows := make([]domain.RevenueResultRow, 0, len(top))
	for _, c := range top {
		rows = append(rows, toRow(c))
	}

	return &domain.RevenueChatResponse{
		Stage:    domain.StageResults,
		Intent:   intent,
		Response: resultMessage(intent, len(filtered), summary, params),
		Rows:     rows,
		RowCount: len(rows),
		Summary:  &summary,
		Params:   params,
		Filters:  filterEcho(params),
	}, nil
}

// missingParams applies the clarification rule: only a general query requires
// parameters; every specific intent proceeds with whatever was extracted.
func missingParams(intent domain.Intent, p domain.ExtractedParams) []string {
	if intent != domain.IntentGeneralQuery {
		return nil
	}
	var missing []string
	if p.Zone == "" && p.District == "" {
		missing = append(missing, "zone")
	}
	if p.SignalType == "" && p.RiskLevel == "" {
		missing = append(missing, "signal_type")
	}
	return missing
}

func clarifierMessage(missing []string) string {
	var asks []string
	for _, m := range missing {
		switch m {
		case "zone":
			asks = append(asks, "a zone or district")
		case "signal_type":
			asks = append(asks, "a signal type or risk level")
		}
	}
	return fmt.Sprintf("I can look that up, but I need %s to narrow it down. For example: Coastal zone, Visakhapatnam district, RevenueGap signal, or High risk.", strings.Join(asks, " and "))
}

// aggregateSummary totals the filtered set. Mean confidence is rounded to the
// nearest integer and zero for an empty set.
func aggregateSummary(cases []domain.LeakageCase) domain.QuerySummary {
	var s domain.QuerySummary
	confidenceSum := 0
	for _, c := range cases {
		s.TotalPayableINR += c.PayableINR
		s.TotalPaidINR += c.PaidINR
		s.TotalGapINR += c.GapINR
		if c.RiskLevel == domain.RiskLevelHigh {
			s.HighRiskCount++
		}
		confidenceSum += c.Confidence
	}
	if len(cases) > 0 {
		s.AvgConfidence = int(math.Round(float64(confidenceSum) / float64(len(cases))))
	}
	return s
}

func toRow(c domain.LeakageCase) domain.RevenueResultRow {
	return domain.RevenueResultRow{
		CaseID:     c.ID,
		SRName:     c.Office.SRName,
		District:   c.Office.District,
		Zone:       c.Office.Zone,
		DocType:    c.DocType,
		RegDate:    c.Dates.RDate,
		PayableINR: c.PayableINR,
		PaidINR:    c.PaidINR,
		GapINR:     c.GapINR,
		RiskLevel:  c.RiskLevel,
		RiskScore:  c.RiskScore,
		Signals:    c.LeakageSignals,
		CaseStatus: c.CaseStatus,
		Confidence: c.Confidence,
	}
}

// resultMessage renders the intent-specific summary sentence. totalFiltered
// is the size of the whole filtered set, not the truncated row count.
func resultMessage(intent domain.Intent, totalFiltered int, s domain.QuerySummary, p domain.ExtractedParams) string {
	loc := locationClause(p)
	switch intent {
	case domain.IntentExemptionUsage:
		return fmt.Sprintf("Found %d cases with exemption-related risk%s. The combined revenue gap is %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	case domain.IntentProhibitedLand:
		return fmt.Sprintf("Found %d registrations touching prohibited land%s. Revenue at risk totals %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	case domain.IntentChallanDelay:
		return fmt.Sprintf("Found %d cases with challan delays or missing challan data%s. The combined gap is %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	case domain.IntentSLABreach:
		return fmt.Sprintf("%d cases%s have breached their review SLA. The combined gap is %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	case domain.IntentHighValue:
		return fmt.Sprintf("Found %d high-value cases%s with a combined payable of %s and a gap of %s.", totalFiltered, loc, inr.Format(s.TotalPayableINR), inr.Format(s.TotalGapINR))
	case domain.IntentPaymentGap:
		return fmt.Sprintf("Found %d cases%s where payments fall short of the payable. Total uncollected: %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	case domain.IntentLeakageSummary:
		return fmt.Sprintf("Leakage summary%s: %d cases with %s payable, %s collected, and a gap of %s. %d are high risk.", loc, totalFiltered, inr.Format(s.TotalPayableINR), inr.Format(s.TotalPaidINR), inr.Format(s.TotalGapINR), s.HighRiskCount)
	default:
		return fmt.Sprintf("Found %d matching cases%s with a combined gap of %s.", totalFiltered, loc, inr.Format(s.TotalGapINR))
	}
}

// locationClause builds " in District, Zone" from whichever parts are
// present, or an empty string when neither is.
func locationClause(p domain.ExtractedParams) string {
	switch {
	case p.District != "" && p.Zone != "":
		return " in " + p.District + ", " + p.Zone
	case p.District != "":
		return " in " + p.District
	case p.Zone != "":
		return " in " + p.Zone
	default:
		return ""
	}
}

// filterEcho flattens the extracted params to a string map for building a
// "view expanded results" link. Absent params are omitted; the SLA boolean
// becomes the literal "breached".
func filterEcho(p domain.ExtractedParams) map[string]string {
	echo := make(map[string]string)
	if p.Zone != "" {
		echo["zone"] = p.Zone
	}
	if p.District != "" {
		echo["district"] = p.District
	}
	if p.RiskLevel != "" {
		echo["risk_level"] = p.RiskLevel
	}
	if p.SignalType != "" {
		echo["signal_type"] = string(p.SignalType)
	}
	if p.MinGap != nil {
		echo["min_gap"] = strconv.FormatFloat(*p.MinGap, 'f', -1, 64)
	}
	if p.MinPayable != nil {
		echo["min_payable"] = strconv.FormatFloat(*p.MinPayable, 'f', -1, 64)
	}
	if p.CaseStatus != "" {
		echo["case_status"] = p.CaseStatus
	}
	if p.SLABreached != nil {
		echo["sla_breached"] = "breached"
	}
	if p.DateFrom != nil {
		echo["date_from"] = p.DateFrom.Format("2006-01-02")
	}
	if p.DateTo != nil {
		echo["date_to"] = p.DateTo.Format("2006-01-02")
	}
	if p.Limit != nil {
		echo["limit"] = strconv.Itoa(*p.Limit)
	}
	if len(echo) == 0 {
		return nil
	}
	return echo
}
