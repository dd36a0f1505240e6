package query

import (
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// filterCases keeps the cases that satisfy every present constraint and
// returns them sorted by risk score, highest first. The sort is stable; ties
// keep their original relative order.
func filterCases(cases []domain.LeakageCase, p domain.ExtractedParams) []domain.LeakageCase {
	filtered := make([]domain.LeakageCase, 0, len(cases))
	for _, c := range cases {
		if matches(c, p) {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].RiskScore > filtered[j].RiskScore
	})
	return filtered
}

func matches(c domain.LeakageCase, p domain.ExtractedParams) bool {
	if p.Zone != "" && !strings.EqualFold(c.Office.Zone, p.Zone) {
		return false
	}
	if p.District != "" && !strings.EqualFold(c.Office.District, p.District) {
		return false
	}
	if p.RiskLevel != "" && c.RiskLevel != p.RiskLevel {
		return false
	}
	if p.CaseStatus != "" && c.CaseStatus != p.CaseStatus {
		return false
	}
	if p.SignalType != "" && !hasSignal(c.LeakageSignals, p.SignalType) {
		return false
	}
	if p.MinGap != nil && c.GapINR < *p.MinGap {
		return false
	}
	if p.MinPayable != nil && c.PayableINR < *p.MinPayable {
		return false
	}
	// Cases without SLA data always pass the SLA filter.
	if p.SLABreached != nil && c.SLA != nil && c.SLA.SLABreached != *p.SLABreached {
		return false
	}
	if p.DateFrom != nil || p.DateTo != nil {
		// The date filter only applies when the case date is parseable.
		if rd, err := time.Parse("2006-01-02", c.Dates.RDate); err == nil {
			if p.DateFrom != nil && rd.Before(truncateDay(*p.DateFrom)) {
				return false
			}
			if p.DateTo != nil && rd.After(endOfDay(*p.DateTo)) {
				return false
			}
		}
	}
	return true
}

func hasSignal(signals []domain.SignalType, want domain.SignalType) bool {
	for _, s := range signals {
		if s == want {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// AvailableZones returns the distinct zones present in a case collection,
// sorted.
func AvailableZones(cases []domain.LeakageCase) []string {
	return distinct(cases, func(c domain.LeakageCase) string { return c.Office.Zone })
}

// AvailableDistricts returns the distinct districts present in a case
// collection, sorted.
func AvailableDistricts(cases []domain.LeakageCase) []string {
	return distinct(cases, func(c domain.LeakageCase) string { return c.Office.District })
}

func distinct(cases []domain.LeakageCase, key func(domain.LeakageCase) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cases {
		k := key(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
