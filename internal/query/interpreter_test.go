package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func staticProvider(cases []domain.LeakageCase) CaseProvider {
	return func(ctx context.Context) ([]domain.LeakageCase, error) {
		return cases, nil
	}
}

func TestProcessClarifierPath(t *testing.T) {
	called := false
	it := NewInterpreter(func(ctx context.Context) ([]domain.LeakageCase, error) {
		called = true
		return nil, nil
	})

	resp, err := it.Process(context.Background(), "tell me something", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if resp.Stage != domain.StageClarifier {
		t.Errorf("stage = %s, want clarifier", resp.Stage)
	}
	if resp.Intent != domain.IntentGeneralQuery {
		t.Errorf("intent = %s, want GENERAL_QUERY", resp.Intent)
	}
	if resp.Clarifier == nil {
		t.Fatal("clarifier missing")
	}
	if want := []string{"zone", "signal_type"}; len(resp.Clarifier.Missing) != 2 ||
		resp.Clarifier.Missing[0] != want[0] || resp.Clarifier.Missing[1] != want[1] {
		t.Errorf("missing = %v, want %v", resp.Clarifier.Missing, want)
	}
	if resp.Clarifier.Suggestions["district"] != "Visakhapatnam" {
		t.Errorf("suggestions = %v", resp.Clarifier.Suggestions)
	}
	if called {
		t.Error("clarifier path must not touch the case provider")
	}
}

func TestProcessSpecificIntentNeedsNoParams(t *testing.T) {
	it := NewInterpreter(staticProvider(testCases()))

	resp, err := it.Process(context.Background(), "show me the leakage summary", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Stage != domain.StageResults {
		t.Errorf("stage = %s, want results", resp.Stage)
	}
	if resp.RowCount != 4 {
		t.Errorf("row_count = %d, want 4", resp.RowCount)
	}
}

func TestProcessFiltersAndSummarizes(t *testing.T) {
	it := NewInterpreter(staticProvider(testCases()))

	resp, err := it.Process(context.Background(), "high risk cases in coastal zone", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if resp.Intent != domain.IntentCaseSearch {
		t.Errorf("intent = %s, want CASE_SEARCH", resp.Intent)
	}
	if resp.RowCount != 1 || resp.Rows[0].CaseID != "case-1" {
		t.Fatalf("rows = %+v, want just case-1", resp.Rows)
	}
	if resp.Summary == nil {
		t.Fatal("summary missing")
	}
	if resp.Summary.TotalGapINR != 120000 {
		t.Errorf("total gap = %v, want 120000", resp.Summary.TotalGapINR)
	}
	if resp.Summary.HighRiskCount != 1 {
		t.Errorf("high risk count = %d, want 1", resp.Summary.HighRiskCount)
	}
	if resp.Summary.AvgConfidence != 85 {
		t.Errorf("avg confidence = %d, want 85", resp.Summary.AvgConfidence)
	}
	if !strings.Contains(resp.Response, "in Coastal") {
		t.Errorf("response %q should carry the location clause", resp.Response)
	}
	if !strings.Contains(resp.Response, "₹1,20,000") {
		t.Errorf("response %q should format the gap as ₹1,20,000", resp.Response)
	}
}

func TestProcessLimitAndTotalFiltered(t *testing.T) {
	cases := make([]domain.LeakageCase, 0, 20)
	for i := 0; i < 20; i++ {
		cases = append(cases, domain.LeakageCase{
			ID:         string(rune('a' + i)),
			Office:     domain.Office{Zone: "Coastal", District: "Guntur"},
			RiskLevel:  "High",
			RiskScore:  100 - i,
			GapINR:     1000,
			CaseStatus: "New",
		})
	}
	it := NewInterpreter(staticProvider(cases))

	resp, err := it.Process(context.Background(), "show cases in guntur", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RowCount != defaultLimit {
		t.Errorf("row_count = %d, want default limit %d", resp.RowCount, defaultLimit)
	}
	// The message reports the filtered total, not the truncated row count.
	if !strings.Contains(resp.Response, "20") {
		t.Errorf("response %q should mention all 20 matches", resp.Response)
	}

	resp, err = it.Process(context.Background(), "top 3 cases in guntur", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RowCount != 3 {
		t.Errorf("row_count = %d, want 3", resp.RowCount)
	}
	// Highest risk scores first.
	if resp.Rows[0].RiskScore != 100 || resp.Rows[2].RiskScore != 98 {
		t.Errorf("rows not sorted by risk score: %+v", resp.Rows)
	}
}

func TestProcessEmptyCollection(t *testing.T) {
	it := NewInterpreter(staticProvider(nil))

	resp, err := it.Process(context.Background(), "leakage summary", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RowCount != 0 {
		t.Errorf("row_count = %d, want 0", resp.RowCount)
	}
	if resp.Summary == nil || resp.Summary.TotalGapINR != 0 || resp.Summary.AvgConfidence != 0 {
		t.Errorf("summary = %+v, want zero values", resp.Summary)
	}
}

func TestProcessProviderFailurePropagates(t *testing.T) {
	wantErr := errors.New("store unavailable")
	it := NewInterpreter(func(ctx context.Context) ([]domain.LeakageCase, error) {
		return nil, wantErr
	})

	_, err := it.Process(context.Background(), "leakage summary", nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestProcessFilterEcho(t *testing.T) {
	it := NewInterpreter(staticProvider(testCases()))

	resp, err := it.Process(context.Background(), "high risk exemption cases in vizag above 1 lakh with sla breach", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := map[string]string{
		"district":     "Visakhapatnam",
		"risk_level":   "High",
		"signal_type":  "ExemptionRisk",
		"min_gap":      "100000",
		"sla_breached": "breached",
	}
	for k, v := range want {
		if resp.Filters[k] != v {
			t.Errorf("filters[%s] = %q, want %q", k, resp.Filters[k], v)
		}
	}
	if _, ok := resp.Filters["zone"]; ok {
		t.Error("zone was not in the query and must be omitted from the echo")
	}
}

func TestProcessMessageTemplatesDifferByIntent(t *testing.T) {
	it := NewInterpreter(staticProvider(testCases()))

	messages := map[string]domain.Intent{
		"exemption cases":            domain.IntentExemptionUsage,
		"prohibited land cases":      domain.IntentProhibitedLand,
		"challan delay cases":        domain.IntentChallanDelay,
		"sla breach cases":           domain.IntentSLABreach,
		"top 5 cases":                domain.IntentHighValue,
		"payment gap cases":          domain.IntentPaymentGap,
		"leakage summary":            domain.IntentLeakageSummary,
		"cases in coastal zone":      domain.IntentCaseSearch,
	}

	seen := make(map[string]domain.Intent)
	for msg, wantIntent := range messages {
		resp, err := it.Process(context.Background(), msg, nil)
		if err != nil {
			t.Fatalf("Process(%q): %v", msg, err)
		}
		if resp.Intent != wantIntent {
			t.Errorf("Process(%q) intent = %s, want %s", msg, resp.Intent, wantIntent)
		}
		seen[resp.Response] = resp.Intent
	}

	// Each intent template produces a distinct sentence over the same data.
	if len(seen) != len(messages) {
		t.Errorf("got %d distinct responses for %d intents", len(seen), len(messages))
	}
}
