// Package rules implements the revenue-leakage rule evaluation engine:
// a fixed catalog of builtin rules plus a CEL-based custom rule layer.
package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/inr"
)

// Severity contributions to the risk score.
const (
	scoreHigh   = 20
	scoreMedium = 10
	scoreLow    = 5

	maxRiskScore = 100
)

// Per-rule confidence values for the builtin catalog.
const (
	confPay01  = 90
	confPay02  = 95
	confPay03  = 75
	confPay04  = 70
	confChln01 = 85
	confChln02 = 60
	confProb01 = 95
	confProb02 = 95
	confData01 = 80
	confData02 = 75
	confMV01   = 85
	confMV02   = 70
	confMV03   = 70
	confEx01   = 90
	confEx02   = 85
	confEx03   = 75
	confEx04   = 65
	confComp05 = 70
)

const dateLayout = "2006-01-02"

// parseDate parses a "YYYY-MM-DD" fact date. An empty or malformed date
// behaves as absent.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Evaluate runs the builtin rule catalog over one case fact sheet.
// It is a pure, total function: no I/O, no clock, no mutation of the input,
// and identical input always yields identical output. Rule order is fixed
// and load-bearing; downstream first-match logic and display ordering depend
// on it.
func Evaluate(in domain.ManualCaseInput) domain.RuleEvaluationResult {
	payable := in.PayableTotal()
	paid := in.PaidTotal()
	gap := in.Gap()

	var hits []domain.RuleHit

	payableFields := []string{"SD_PAYABLE", "TD_PAYABLE", "RF_PAYABLE", "DSD_PAYABLE", "OTHER_FEE", "receipts"}

	// R-PAY-01: payment recorded but short of the payable total.
	if payable > 0 && paid > 0 && paid < payable {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PAY-01",
			RuleName:    "Paid Less Than Payable",
			Category:    domain.SignalRevenueGap,
			Severity:    domain.SeverityHigh,
			ImpactINR:   gap,
			Explanation: fmt.Sprintf("Receipts total %s against a payable of %s, leaving %s uncollected.", inr.Format(paid), inr.Format(payable), inr.Format(gap)),
			FieldsUsed:  payableFields,
			Calculations: []domain.Calculation{
				{Label: "Payable total", Value: inr.Format(payable)},
				{Label: "Paid total", Value: inr.Format(paid)},
				{Label: "Gap", Value: inr.Format(gap)},
			},
			Confidence: confPay01,
		})
	}

	// R-PAY-02: duty payable but nothing collected at all.
	// Mutually exclusive with R-PAY-01, which requires paid > 0.
	if payable > 0 && paid == 0 {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PAY-02",
			RuleName:    "Zero Payment Recorded",
			Category:    domain.SignalRevenueGap,
			Severity:    domain.SeverityHigh,
			ImpactINR:   payable,
			Explanation: fmt.Sprintf("No active receipts found against a payable of %s.", inr.Format(payable)),
			FieldsUsed:  payableFields,
			Calculations: []domain.Calculation{
				{Label: "Payable total", Value: inr.Format(payable)},
				{Label: "Paid total", Value: inr.Format(0)},
			},
			Confidence: confPay02,
		})
	}

	// R-PAY-03: shortfall spread across multiple receipts.
	activeCount := 0
	for _, r := range in.Receipts {
		if r.Active() {
			activeCount++
		}
	}
	if activeCount > 1 && paid < payable {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PAY-03",
			RuleName:    "Multi-Receipt Shortfall",
			Category:    domain.SignalRevenueGap,
			Severity:    domain.SeverityMedium,
			ImpactINR:   gap,
			Explanation: fmt.Sprintf("%d active receipts together cover %s of a %s payable; %s remains short.", activeCount, inr.Format(paid), inr.Format(payable), inr.Format(gap)),
			FieldsUsed:  []string{"receipts"},
			Calculations: []domain.Calculation{
				{Label: "Active receipts", Value: fmt.Sprintf("%d", activeCount)},
				{Label: "Paid total", Value: inr.Format(paid)},
				{Label: "Gap", Value: inr.Format(gap)},
			},
			Confidence: confPay03,
		})
	}

	// R-PAY-04: cancelled receipts would have covered part of the gap.
	excludedCount := 0
	var excludedTotal float64
	for _, r := range in.Receipts {
		if !r.Active() {
			excludedCount++
			excludedTotal += r.Amount
		}
	}
	if excludedCount > 0 && excludedTotal > 0 && gap > 0 {
		impact := math.Min(excludedTotal, gap)
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PAY-04",
			RuleName:    "Cancelled Receipts Contributing to Gap",
			Category:    domain.SignalRevenueGap,
			Severity:    domain.SeverityMedium,
			ImpactINR:   impact,
			Explanation: fmt.Sprintf("%d cancelled receipts worth %s coincide with a %s gap; %s of the gap is attributable to them.", excludedCount, inr.Format(excludedTotal), inr.Format(gap), inr.Format(impact)),
			FieldsUsed:  []string{"receipts"},
			Calculations: []domain.Calculation{
				{Label: "Cancelled receipts", Value: fmt.Sprintf("%d", excludedCount)},
				{Label: "Cancelled total", Value: inr.Format(excludedTotal)},
				{Label: "Gap", Value: inr.Format(gap)},
			},
			Confidence: confPay04,
		})
	}

	// R-CHLN-01: first active receipt whose challan preceded the receipt by
	// more than 7 days. One hit at most, regardless of later matches.
	for _, r := range in.Receipts {
		if !r.Active() {
			continue
		}
		rd, rok := parseDate(r.ReceiptDate)
		cd, cok := parseDate(r.ChallanDate)
		if !rok || !cok {
			continue
		}
		delayDays := int(math.Round(rd.Sub(cd).Hours() / 24))
		if delayDays > 7 {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-CHLN-01",
				RuleName:    "Challan Delay Over 7 Days",
				Category:    domain.SignalChallanDelay,
				Severity:    domain.SeverityMedium,
				ImpactINR:   0,
				Explanation: fmt.Sprintf("Receipt dated %s was recorded %d days after its challan dated %s.", r.ReceiptDate, delayDays, r.ChallanDate),
				FieldsUsed:  []string{"receipts.receipt_date", "receipts.challan_date"},
				Calculations: []domain.Calculation{
					{Label: "Receipt date", Value: r.ReceiptDate},
					{Label: "Challan date", Value: r.ChallanDate},
					{Label: "Delay days", Value: fmt.Sprintf("%d", delayDays)},
				},
				Confidence: confChln01,
			})
			break
		}
	}

	// R-CHLN-02: first active receipt carrying a challan number but no
	// challan date.
	for _, r := range in.Receipts {
		if !r.Active() {
			continue
		}
		if r.ChallanNo != "" && r.ChallanDate == "" {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-CHLN-02",
				RuleName:    "Challan Date Missing",
				Category:    domain.SignalChallanDelay,
				Severity:    domain.SeverityLow,
				ImpactINR:   0,
				Explanation: fmt.Sprintf("Receipt references challan %s but carries no challan date.", r.ChallanNo),
				FieldsUsed:  []string{"receipts.challan_no", "receipts.challan_date"},
				Calculations: []domain.Calculation{
					{Label: "Challan number", Value: r.ChallanNo},
				},
				Confidence: confChln02,
			})
			break
		}
	}

	// R-PROB-01 / R-PROB-02: prohibited land match, split by locality.
	if in.ProhibitedLandMatch && !in.IsUrban {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PROB-01",
			RuleName:    "Prohibited Land Registration (Rural)",
			Category:    domain.SignalProhibitedLand,
			Severity:    domain.SeverityHigh,
			ImpactINR:   in.FinalTaxableValue,
			Explanation: fmt.Sprintf("Rural survey number matches the prohibited land register; taxable value at risk is %s.", inr.Format(in.FinalTaxableValue)),
			FieldsUsed:  []string{"prohibited_land_match", "is_urban", "FINAL_TAXABLE_VALUE"},
			Calculations: []domain.Calculation{
				{Label: "Final taxable value", Value: inr.Format(in.FinalTaxableValue)},
			},
			Confidence: confProb01,
		})
	}
	if in.ProhibitedLandMatch && in.IsUrban {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-PROB-02",
			RuleName:    "Prohibited Land Registration (Urban)",
			Category:    domain.SignalProhibitedLand,
			Severity:    domain.SeverityHigh,
			ImpactINR:   in.FinalTaxableValue,
			Explanation: fmt.Sprintf("Urban property matches the prohibited land register; taxable value at risk is %s.", inr.Format(in.FinalTaxableValue)),
			FieldsUsed:  []string{"prohibited_land_match", "is_urban", "FINAL_TAXABLE_VALUE"},
			Calculations: []domain.Calculation{
				{Label: "Final taxable value", Value: inr.Format(in.FinalTaxableValue)},
			},
			Confidence: confProb02,
		})
	}

	// R-DATA-01: schedule (property description) data missing.
	if !in.ScheduleDataExists {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-DATA-01",
			RuleName:    "Missing Schedule Data",
			Category:    domain.SignalDataIntegrity,
			Severity:    domain.SeverityMedium,
			ImpactINR:   0,
			Explanation: "No schedule data recorded for the document; property details cannot be verified.",
			FieldsUsed:  []string{"schedule_data_exists"},
			Confidence:  confData01,
		})
	}

	// R-DATA-02: no parties on record.
	if len(in.Parties) == 0 {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-DATA-02",
			RuleName:    "Missing Party Records",
			Category:    domain.SignalDataIntegrity,
			Severity:    domain.SeverityMedium,
			ImpactINR:   0,
			Explanation: "No party records attached to the document.",
			FieldsUsed:  []string{"parties"},
			Confidence:  confData02,
		})
	}

	// R-MV-01: declared value more than 15% below the expected value.
	if in.ExpectedValue > 0 && in.DeclaredValue > 0 {
		deviationPct := (in.DeclaredValue - in.ExpectedValue) / in.ExpectedValue * 100
		if deviationPct < -15 {
			impact := in.ExpectedValue - in.DeclaredValue
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-MV-01",
				RuleName:    "Declared Value Below Expected",
				Category:    domain.SignalMarketValueRisk,
				Severity:    domain.SeverityHigh,
				ImpactINR:   impact,
				Explanation: fmt.Sprintf("Declared value %s is %.1f%% below the expected %s, undervaluing the property by %s.", inr.Format(in.DeclaredValue), -deviationPct, inr.Format(in.ExpectedValue), inr.Format(impact)),
				FieldsUsed:  []string{"declared_value", "expected_value"},
				Calculations: []domain.Calculation{
					{Label: "Declared value", Value: inr.Format(in.DeclaredValue)},
					{Label: "Expected value", Value: inr.Format(in.ExpectedValue)},
					{Label: "Deviation", Value: fmt.Sprintf("%.1f%%", deviationPct)},
				},
				Confidence: confMV01,
			})
		}
	}

	// R-MV-02: unit rate dropped more than 20% year on year.
	if in.UnitRateCurrent > 0 && in.UnitRatePrevious > 0 {
		rateDrop := (in.UnitRateCurrent - in.UnitRatePrevious) / in.UnitRatePrevious * 100
		if rateDrop < -20 {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-MV-02",
				RuleName:    "Unit Rate Drop Year-on-Year",
				Category:    domain.SignalMarketValueRisk,
				Severity:    domain.SeverityMedium,
				ImpactINR:   0,
				Explanation: fmt.Sprintf("Current unit rate %s is %.1f%% below last year's %s.", inr.Format(in.UnitRateCurrent), -rateDrop, inr.Format(in.UnitRatePrevious)),
				FieldsUsed:  []string{"unit_rate_current", "unit_rate_previous"},
				Calculations: []domain.Calculation{
					{Label: "Current rate", Value: inr.Format(in.UnitRateCurrent)},
					{Label: "Previous rate", Value: inr.Format(in.UnitRatePrevious)},
					{Label: "Change", Value: fmt.Sprintf("%.1f%%", rateDrop)},
				},
				Confidence: confMV02,
			})
		}
	}

	// R-MV-03: unit rate below half the nearby median.
	if in.NearbyMedianRate > 0 && in.UnitRateCurrent > 0 {
		ratio := in.UnitRateCurrent / in.NearbyMedianRate * 100
		if ratio < 50 {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-MV-03",
				RuleName:    "Unit Rate Below Nearby Median",
				Category:    domain.SignalMarketValueRisk,
				Severity:    domain.SeverityMedium,
				ImpactINR:   0,
				Explanation: fmt.Sprintf("Unit rate %s is only %.1f%% of the nearby median %s.", inr.Format(in.UnitRateCurrent), ratio, inr.Format(in.NearbyMedianRate)),
				FieldsUsed:  []string{"unit_rate_current", "nearby_median_rate"},
				Calculations: []domain.Calculation{
					{Label: "Current rate", Value: inr.Format(in.UnitRateCurrent)},
					{Label: "Nearby median", Value: inr.Format(in.NearbyMedianRate)},
					{Label: "Ratio", Value: fmt.Sprintf("%.1f%%", ratio)},
				},
				Confidence: confMV03,
			})
		}
	}

	// R-EX-01: first exemption claimed on an ineligible document type.
	for _, ex := range in.Exemptions {
		if !ex.DocTypeEligible {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-EX-01",
				RuleName:    "Exemption on Ineligible Document Type",
				Category:    domain.SignalExemptionRisk,
				Severity:    domain.SeverityHigh,
				ImpactINR:   ex.Amount,
				Explanation: fmt.Sprintf("Exemption %s worth %s was claimed on a document type not eligible for it.", ex.Code, inr.Format(ex.Amount)),
				FieldsUsed:  []string{"exemptions.code", "exemptions.doc_type_eligible", "exemptions.amount"},
				Calculations: []domain.Calculation{
					{Label: "Exemption code", Value: ex.Code},
					{Label: "Exemption amount", Value: inr.Format(ex.Amount)},
				},
				Confidence: confEx01,
			})
			break
		}
	}

	// R-EX-02: first exemption exceeding its cap.
	for _, ex := range in.Exemptions {
		if ex.CapAmount > 0 && ex.Amount > ex.CapAmount {
			excess := ex.Amount - ex.CapAmount
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-EX-02",
				RuleName:    "Exemption Exceeds Cap",
				Category:    domain.SignalExemptionRisk,
				Severity:    domain.SeverityHigh,
				ImpactINR:   excess,
				Explanation: fmt.Sprintf("Exemption %s of %s exceeds its cap of %s by %s.", ex.Code, inr.Format(ex.Amount), inr.Format(ex.CapAmount), inr.Format(excess)),
				FieldsUsed:  []string{"exemptions.code", "exemptions.amount", "exemptions.cap_amount"},
				Calculations: []domain.Calculation{
					{Label: "Exemption amount", Value: inr.Format(ex.Amount)},
					{Label: "Cap amount", Value: inr.Format(ex.CapAmount)},
					{Label: "Excess", Value: inr.Format(excess)},
				},
				Confidence: confEx02,
			})
			break
		}
	}

	// R-EX-03: first exemption used more than twice before.
	for _, ex := range in.Exemptions {
		if ex.RepeatUsageCount > 2 {
			hits = append(hits, domain.RuleHit{
				RuleID:      "R-EX-03",
				RuleName:    "Repeat Exemption Usage",
				Category:    domain.SignalExemptionRisk,
				Severity:    domain.SeverityMedium,
				ImpactINR:   ex.Amount,
				Explanation: fmt.Sprintf("Exemption %s worth %s has been claimed %d times by the same party.", ex.Code, inr.Format(ex.Amount), ex.RepeatUsageCount),
				FieldsUsed:  []string{"exemptions.code", "exemptions.repeat_usage_count", "exemptions.amount"},
				Calculations: []domain.Calculation{
					{Label: "Usage count", Value: fmt.Sprintf("%d", ex.RepeatUsageCount)},
					{Label: "Exemption amount", Value: inr.Format(ex.Amount)},
				},
				Confidence: confEx03,
			})
			break
		}
	}

	// R-EX-04: more than one exemption on a single document.
	if len(in.Exemptions) > 1 {
		var exemptionTotal float64
		for _, ex := range in.Exemptions {
			exemptionTotal += ex.Amount
		}
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-EX-04",
			RuleName:    "Multiple Exemptions Claimed",
			Category:    domain.SignalExemptionRisk,
			Severity:    domain.SeverityMedium,
			ImpactINR:   exemptionTotal,
			Explanation: fmt.Sprintf("%d exemptions totalling %s were claimed on a single document.", len(in.Exemptions), inr.Format(exemptionTotal)),
			FieldsUsed:  []string{"exemptions"},
			Calculations: []domain.Calculation{
				{Label: "Exemption count", Value: fmt.Sprintf("%d", len(in.Exemptions))},
				{Label: "Exemption total", Value: inr.Format(exemptionTotal)},
			},
			Confidence: confEx04,
		})
	}

	// R-COMP-05: holiday registration with an outstanding gap.
	if in.HolidayRegistration && gap > 0 {
		hits = append(hits, domain.RuleHit{
			RuleID:      "R-COMP-05",
			RuleName:    "Holiday Registration Missing Fee",
			Category:    domain.SignalHolidayFee,
			Severity:    domain.SeverityMedium,
			ImpactINR:   gap,
			Explanation: fmt.Sprintf("Document registered on a holiday with %s still uncollected.", inr.Format(gap)),
			FieldsUsed:  []string{"holiday_registration", "receipts"},
			Calculations: []domain.Calculation{
				{Label: "Gap", Value: inr.Format(gap)},
			},
			Confidence: confComp05,
		})
	}

	return Aggregate(hits, payable, gap)
}

// Aggregate derives signals, scores, and totals from an ordered list of rule
// hits. It is shared by the builtin catalog and the custom-rule layer so
// both produce identically shaped results.
func Aggregate(hits []domain.RuleHit, payable, gap float64) domain.RuleEvaluationResult {
	result := domain.RuleEvaluationResult{
		TriggeredRules: hits,
		GapINR:         gap,
		PayableINR:     payable,
	}

	seen := make(map[domain.SignalType]bool)
	addSignal := func(s domain.SignalType) {
		if !seen[s] {
			seen[s] = true
			result.LeakageSignals = append(result.LeakageSignals, s)
		}
	}

	score := 0
	confidenceSum := 0
	for _, h := range hits {
		addSignal(h.Category)
		// A holiday-fee hit always implies a revenue gap as well.
		if h.Category == domain.SignalHolidayFee {
			addSignal(domain.SignalRevenueGap)
		}

		switch h.Severity {
		case domain.SeverityHigh:
			score += scoreHigh
		case domain.SeverityMedium:
			score += scoreMedium
		case domain.SeverityLow:
			score += scoreLow
		}

		result.ImpactAmountINR += h.ImpactINR
		confidenceSum += h.Confidence
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	result.RiskScore = score

	switch {
	case score >= 60:
		result.RiskLevel = domain.RiskLevelHigh
	case score >= 30:
		result.RiskLevel = domain.RiskLevelMedium
	default:
		result.RiskLevel = domain.RiskLevelLow
	}

	if len(hits) > 0 {
		result.Confidence = int(math.Round(float64(confidenceSum) / float64(len(hits))))
	}

	return result
}
