package query

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func TestExtractParamsExemptionQuery(t *testing.T) {
	p := extractParams("Show me exemption risk cases in Guntur above 50000", fixedNow)

	if p.District != "Guntur" {
		t.Errorf("district = %q, want Guntur", p.District)
	}
	if p.SignalType != domain.SignalExemptionRisk {
		t.Errorf("signal = %q, want ExemptionRisk", p.SignalType)
	}
	if p.MinGap == nil || *p.MinGap != 50000 {
		t.Errorf("min_gap = %v, want 50000", p.MinGap)
	}
	if p.Zone != "" {
		t.Errorf("zone = %q, want empty", p.Zone)
	}
}

func TestExtractDistrictAliases(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"cases in vizag", "Visakhapatnam"},
		{"leakage in ongole", "Prakasam"},
		{"show vijayawada registrations", "NTR"},
		{"rajahmundry office", "East Godavari"},
		{"cuddapah high risk", "YSR Kadapa"},
		{"cases in guntur", "Guntur"},
		{"tirupati temple town cases", "Tirupati"},
		{"no place mentioned", ""},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.District != tt.want {
			t.Errorf("extractParams(%q).District = %q, want %q", tt.message, p.District, tt.want)
		}
	}
}

func TestExtractZone(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"payment gap in coastal zone", "Coastal"},
		{"rayalaseema cases", "Rayalaseema"},
		{"show north zone summary", "North"},
		{"no zone here", ""},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.Zone != tt.want {
			t.Errorf("extractParams(%q).Zone = %q, want %q", tt.message, p.Zone, tt.want)
		}
	}
}

func TestExtractRiskLevel(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"high risk cases", "High"},
		{"show medium cases", "Medium"},
		{"low risk only", "Low"},
		{"no level", ""},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.RiskLevel != tt.want {
			t.Errorf("extractParams(%q).RiskLevel = %q, want %q", tt.message, p.RiskLevel, tt.want)
		}
	}
}

func TestExtractSignalTypePriority(t *testing.T) {
	tests := []struct {
		message string
		want    domain.SignalType
	}{
		{"revenue gap cases", domain.SignalRevenueGap},
		{"payment gap and challan delay", domain.SignalRevenueGap},
		{"challan delay cases", domain.SignalChallanDelay},
		{"exempt usage", domain.SignalExemptionRisk},
		{"market value issues", domain.SignalMarketValueRisk},
		{"mv deviation", domain.SignalMarketValueRisk},
		{"prohibited land", domain.SignalProhibitedLand},
		{"data integrity problems", domain.SignalDataIntegrity},
		{"holiday registrations", domain.SignalHolidayFee},
		{"nothing here", ""},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.SignalType != tt.want {
			t.Errorf("extractParams(%q).SignalType = %q, want %q", tt.message, p.SignalType, tt.want)
		}
	}
}

func TestExtractAmountThreshold(t *testing.T) {
	tests := []struct {
		message string
		want    float64
	}{
		{"gap above 50000", 50000},
		{"over 5 lakh", 500000},
		{"more than 2 cr", 20000000},
		{"greater than 1.5 crore", 15000000},
		{"above 250k", 250000},
		{"over 3l uncollected", 300000},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.MinGap == nil {
			t.Errorf("extractParams(%q).MinGap = nil, want %v", tt.message, tt.want)
			continue
		}
		if *p.MinGap != tt.want {
			t.Errorf("extractParams(%q).MinGap = %v, want %v", tt.message, *p.MinGap, tt.want)
		}
	}

	if p := extractParams("no threshold mentioned", fixedNow); p.MinGap != nil {
		t.Errorf("MinGap = %v, want nil", *p.MinGap)
	}
}

func TestExtractLimit(t *testing.T) {
	p := extractParams("top 25 cases", fixedNow)
	if p.Limit == nil || *p.Limit != 25 {
		t.Errorf("limit = %v, want 25", p.Limit)
	}
	if p := extractParams("all cases", fixedNow); p.Limit != nil {
		t.Errorf("limit = %v, want nil", *p.Limit)
	}
}

func TestExtractDateRanges(t *testing.T) {
	t.Run("last N days", func(t *testing.T) {
		p := extractParams("cases from the last 30 days", fixedNow)
		if p.DateFrom == nil || p.DateTo == nil {
			t.Fatal("expected a date range")
		}
		if want := fixedNow.AddDate(0, 0, -30); !p.DateFrom.Equal(want) {
			t.Errorf("date_from = %v, want %v", p.DateFrom, want)
		}
		if !p.DateTo.Equal(fixedNow) {
			t.Errorf("date_to = %v, want %v", p.DateTo, fixedNow)
		}
	})

	t.Run("today overwrites last N days", func(t *testing.T) {
		p := extractParams("last 7 days or today", fixedNow)
		if p.DateFrom == nil || !p.DateFrom.Equal(fixedNow) {
			t.Errorf("date_from = %v, want %v", p.DateFrom, fixedNow)
		}
	})

	t.Run("explicit from-to ISO", func(t *testing.T) {
		p := extractParams("cases from 2026-01-01 to 2026-02-15", fixedNow)
		if p.DateFrom == nil || p.DateTo == nil {
			t.Fatal("expected a date range")
		}
		if p.DateFrom.Format("2006-01-02") != "2026-01-01" {
			t.Errorf("date_from = %v", p.DateFrom)
		}
		if p.DateTo.Format("2006-01-02") != "2026-02-15" {
			t.Errorf("date_to = %v", p.DateTo)
		}
	})

	t.Run("month-name dates default to current year", func(t *testing.T) {
		p := extractParams("cases from january 5 to feb 20", fixedNow)
		if p.DateFrom == nil || p.DateTo == nil {
			t.Fatal("expected a date range")
		}
		if got := p.DateFrom.Format("2006-01-02"); got != "2026-01-05" {
			t.Errorf("date_from = %s, want 2026-01-05", got)
		}
		if got := p.DateTo.Format("2006-01-02"); got != "2026-02-20" {
			t.Errorf("date_to = %s, want 2026-02-20", got)
		}
	})

	t.Run("month-name dates with explicit year", func(t *testing.T) {
		p := extractParams("from march 1, 2025 to march 31, 2025", fixedNow)
		if p.DateFrom == nil || p.DateFrom.Format("2006-01-02") != "2025-03-01" {
			t.Errorf("date_from = %v, want 2025-03-01", p.DateFrom)
		}
	})
}

func TestExtractSLABreach(t *testing.T) {
	p := extractParams("show sla breach cases", fixedNow)
	if p.SLABreached == nil || !*p.SLABreached {
		t.Errorf("sla_breached = %v, want true", p.SLABreached)
	}
	p = extractParams("any breach anywhere", fixedNow)
	if p.SLABreached == nil || !*p.SLABreached {
		t.Errorf("bare 'breach' should set sla_breached")
	}
	p = extractParams("nothing relevant", fixedNow)
	if p.SLABreached != nil {
		t.Errorf("sla_breached = %v, want nil", *p.SLABreached)
	}
}

func TestExtractCaseStatus(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"new cases in guntur", "New"},
		{"show in review cases", "In Review"},
		{"no status here", ""},
		{"confirmed leakage", "Confirmed"},
		{"resolved this week", "Resolved"},
		{"rejected entries", "Rejected"},
	}

	for _, tt := range tests {
		p := extractParams(tt.message, fixedNow)
		if p.CaseStatus != tt.want {
			t.Errorf("extractParams(%q).CaseStatus = %q, want %q", tt.message, p.CaseStatus, tt.want)
		}
	}
}

func TestMinPayableHasNoExtractionPath(t *testing.T) {
	p := extractParams("cases with payable above 5 lakh", fixedNow)
	if p.MinPayable != nil {
		t.Errorf("min_payable = %v; free text never sets it", *p.MinPayable)
	}
	// The amount lands on min_gap instead.
	if p.MinGap == nil || *p.MinGap != 500000 {
		t.Errorf("min_gap = %v, want 500000", p.MinGap)
	}
}
