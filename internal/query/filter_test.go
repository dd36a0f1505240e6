package query

import (
	"reflect"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func testCases() []domain.LeakageCase {
	return []domain.LeakageCase{
		{
			ID:             "case-1",
			Office:         domain.Office{Zone: "Coastal", District: "Visakhapatnam", SRName: "SRO Vizag I"},
			RiskLevel:      "High",
			RiskScore:      70,
			LeakageSignals: []domain.SignalType{domain.SignalRevenueGap, domain.SignalExemptionRisk},
			CaseStatus:     "New",
			GapINR:         120000,
			PayableINR:     200000,
			PaidINR:        80000,
			Confidence:     85,
			Dates:          domain.CaseDates{RDate: "2026-03-01"},
			SLA:            &domain.SLAInfo{SLABreached: true},
		},
		{
			ID:             "case-2",
			Office:         domain.Office{Zone: "Coastal", District: "Guntur", SRName: "SRO Guntur"},
			RiskLevel:      "Medium",
			RiskScore:      40,
			LeakageSignals: []domain.SignalType{domain.SignalChallanDelay},
			CaseStatus:     "In Review",
			GapINR:         30000,
			PayableINR:     90000,
			PaidINR:        60000,
			Confidence:     70,
			Dates:          domain.CaseDates{RDate: "2026-01-15"},
			SLA:            &domain.SLAInfo{SLABreached: false},
		},
		{
			ID:             "case-3",
			Office:         domain.Office{Zone: "Rayalaseema", District: "YSR Kadapa", SRName: "SRO Kadapa"},
			RiskLevel:      "High",
			RiskScore:      70,
			LeakageSignals: []domain.SignalType{domain.SignalProhibitedLand},
			CaseStatus:     "Confirmed",
			GapINR:         500000,
			PayableINR:     500000,
			PaidINR:        0,
			Confidence:     95,
			Dates:          domain.CaseDates{RDate: "not-a-date"},
		},
		{
			ID:             "case-4",
			Office:         domain.Office{Zone: "Central", District: "NTR", SRName: "SRO Vijayawada"},
			RiskLevel:      "Low",
			RiskScore:      10,
			LeakageSignals: []domain.SignalType{domain.SignalDataIntegrity},
			CaseStatus:     "New",
			GapINR:         0,
			PayableINR:     50000,
			PaidINR:        50000,
			Confidence:     60,
			Dates:          domain.CaseDates{RDate: "2026-03-10"},
		},
	}
}

func filteredIDs(cases []domain.LeakageCase) []string {
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestFilterCases(t *testing.T) {
	minGap := 100000.0
	breached := true

	tests := []struct {
		name   string
		params domain.ExtractedParams
		want   []string
	}{
		{
			name:   "no constraints sorts by risk score",
			params: domain.ExtractedParams{},
			want:   []string{"case-1", "case-3", "case-2", "case-4"},
		},
		{
			name:   "zone is case-insensitive",
			params: domain.ExtractedParams{Zone: "coastal"},
			want:   []string{"case-1", "case-2"},
		},
		{
			name:   "district",
			params: domain.ExtractedParams{District: "Guntur"},
			want:   []string{"case-2"},
		},
		{
			name:   "risk level",
			params: domain.ExtractedParams{RiskLevel: "High"},
			want:   []string{"case-1", "case-3"},
		},
		{
			name:   "signal membership",
			params: domain.ExtractedParams{SignalType: domain.SignalExemptionRisk},
			want:   []string{"case-1"},
		},
		{
			name:   "min gap",
			params: domain.ExtractedParams{MinGap: &minGap},
			want:   []string{"case-1", "case-3"},
		},
		{
			name:   "case status",
			params: domain.ExtractedParams{CaseStatus: "New"},
			want:   []string{"case-1", "case-4"},
		},
		{
			name: "sla breach keeps cases without sla data",
			params: domain.ExtractedParams{SLABreached: &breached},
			// case-2 has sla_breached=false and is excluded; case-3 and
			// case-4 carry no SLA data and pass.
			want: []string{"case-1", "case-3", "case-4"},
		},
		{
			name:   "combined constraints",
			params: domain.ExtractedParams{Zone: "Coastal", RiskLevel: "High"},
			want:   []string{"case-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filteredIDs(filterCases(testCases(), tt.params))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("filtered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterDateRange(t *testing.T) {
	from := fixedNow.AddDate(0, 0, -30) // 2026-02-13
	to := fixedNow

	got := filteredIDs(filterCases(testCases(), domain.ExtractedParams{DateFrom: &from, DateTo: &to}))

	// case-2 is before the window; case-3 has an unparseable date and is
	// never excluded by the date filter.
	want := []string{"case-1", "case-3", "case-4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filtered = %v, want %v", got, want)
	}
}

func TestFilterSortIsStable(t *testing.T) {
	got := filterCases(testCases(), domain.ExtractedParams{RiskLevel: "High"})
	// case-1 and case-3 both score 70; original order is kept.
	if got[0].ID != "case-1" || got[1].ID != "case-3" {
		t.Errorf("tie order = [%s %s], want [case-1 case-3]", got[0].ID, got[1].ID)
	}
}

func TestAvailableZonesAndDistricts(t *testing.T) {
	zones := AvailableZones(testCases())
	if want := []string{"Central", "Coastal", "Rayalaseema"}; !reflect.DeepEqual(zones, want) {
		t.Errorf("zones = %v, want %v", zones, want)
	}

	districts := AvailableDistricts(testCases())
	if want := []string{"Guntur", "NTR", "Visakhapatnam", "YSR Kadapa"}; !reflect.DeepEqual(districts, want) {
		t.Errorf("districts = %v, want %v", districts, want)
	}
}
