package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

// createTestServer creates a server backed by a throwaway SQLite repository.
func createTestServer(t *testing.T) (*Server, domain.Repository) {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/api-test.db",
	})
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine, err := rules.NewEngine(nil)
	if err != nil {
		t.Fatalf("rules.NewEngine: %v", err)
	}

	return NewServer(cfg, repo, nil, nil, engine, "test-v1"), repo
}

// highRiskFacts trips zero payment, prohibited land, missing schedule data,
// and missing parties.
func highRiskFacts() domain.ManualCaseInput {
	return domain.ManualCaseInput{
		SRCode:              "SR-101",
		SRName:              "SRO Vizag I",
		BookNo:              "1",
		DoctNo:              "1234",
		RegYear:             2025,
		Zone:                "Coastal",
		District:            "Visakhapatnam",
		RDate:               "2025-03-01",
		SDPayable:           100000,
		ProhibitedLandMatch: true,
		IsUrban:             true,
	}
}

func doRequest(server *Server, method, path string, body interface{}, tenant string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(TenantIDHeader, tenant)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestEvaluateEndpoint(t *testing.T) {
	server, repo := createTestServer(t)

	t.Run("SuccessfulEvaluation", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{
			CaseID: "case-api-001",
			Facts:  highRiskFacts(),
		}, "tenant-001")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp EvaluateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.CaseID != "case-api-001" {
			t.Errorf("caseId = %s, want case-api-001", resp.CaseID)
		}
		if resp.EvaluationID == "" {
			t.Error("evaluationId missing")
		}
		if resp.Result.RiskLevel != domain.RiskLevelHigh {
			t.Errorf("risk_level = %s, want High", resp.Result.RiskLevel)
		}
		if resp.Result.GapINR != 100000 {
			t.Errorf("gap = %v, want 100000", resp.Result.GapINR)
		}

		// The case is persisted for later querying.
		c, err := repo.GetCase(context.Background(), "tenant-001", "case-api-001")
		if err != nil {
			t.Fatalf("GetCase: %v", err)
		}
		if c.CaseStatus != domain.CaseStatusNew {
			t.Errorf("case_status = %s, want New", c.CaseStatus)
		}
	})

	t.Run("MissingTenant", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{Facts: highRiskFacts()}, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBufferString("not json"))
		req.Header.Set(TenantIDHeader, "tenant-001")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingSRCode", func(t *testing.T) {
		facts := highRiskFacts()
		facts.SRCode = ""
		rec := doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{Facts: facts}, "tenant-001")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestQueryEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	// Seed two cases through the evaluate endpoint.
	rec := doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{
		CaseID: "case-q-1",
		Facts:  highRiskFacts(),
	}, "tenant-q")
	if rec.Code != http.StatusOK {
		t.Fatalf("seed evaluate: %d", rec.Code)
	}

	cleanFacts := domain.ManualCaseInput{
		SRCode:             "SR-202",
		BookNo:             "1",
		DoctNo:             "99",
		RegYear:            2025,
		Zone:               "Rayalaseema",
		District:           "Kurnool",
		SDPayable:          50000,
		Receipts:           []domain.Receipt{{Amount: 50000, AccCanc: "A"}},
		ScheduleDataExists: true,
		Parties:            []domain.Party{{Code: "EX", Name: "A"}},
	}
	rec = doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{
		CaseID: "case-q-2",
		Facts:  cleanFacts,
	}, "tenant-q")
	if rec.Code != http.StatusOK {
		t.Fatalf("seed evaluate: %d", rec.Code)
	}

	t.Run("FilteredSearch", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/query", QueryRequest{
			Message: "high risk cases in coastal zone",
		}, "tenant-q")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp domain.RevenueChatResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.Stage != domain.StageResults {
			t.Errorf("stage = %s, want results", resp.Stage)
		}
		if resp.RowCount != 1 || resp.Rows[0].CaseID != "case-q-1" {
			t.Errorf("rows = %+v, want just case-q-1", resp.Rows)
		}
	})

	t.Run("ClarifierForVagueQuery", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/query", QueryRequest{
			Message: "tell me something",
		}, "tenant-q")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp domain.RevenueChatResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.Stage != domain.StageClarifier {
			t.Errorf("stage = %s, want clarifier", resp.Stage)
		}
		if resp.Clarifier == nil || len(resp.Clarifier.Missing) == 0 {
			t.Error("clarifier payload missing")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/query", QueryRequest{
			Message: "leakage summary",
		}, "tenant-other")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp domain.RevenueChatResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.RowCount != 0 {
			t.Errorf("row_count = %d, want 0 for foreign tenant", resp.RowCount)
		}
	})

	t.Run("EmptyMessage", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/query", QueryRequest{}, "tenant-q")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCaseEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	rec := doRequest(server, http.MethodPost, "/evaluate", EvaluateRequest{
		CaseID: "case-c-1",
		Facts:  highRiskFacts(),
	}, "tenant-c")
	if rec.Code != http.StatusOK {
		t.Fatalf("seed evaluate: %d", rec.Code)
	}

	t.Run("ListCases", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/cases", nil, "tenant-c")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})

	t.Run("GetCase", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/cases/case-c-1", nil, "tenant-c")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		rec = doRequest(server, http.MethodGet, "/cases/missing", nil, "tenant-c")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		rec := doRequest(server, http.MethodPatch, "/cases/case-c-1/status", UpdateCaseStatusRequest{
			Status: domain.CaseStatusInReview,
		}, "tenant-c")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(server, http.MethodPatch, "/cases/case-c-1/status", UpdateCaseStatusRequest{
			Status: "Deleted",
		}, "tenant-c")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("invalid status: code = %d, want 400", rec.Code)
		}

		rec = doRequest(server, http.MethodPatch, "/cases/missing/status", UpdateCaseStatusRequest{
			Status: domain.CaseStatusResolved,
		}, "tenant-c")
		if rec.Code != http.StatusNotFound {
			t.Errorf("unknown case: code = %d, want 404", rec.Code)
		}
	})

	t.Run("ZonesAndDistricts", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/zones", nil, "tenant-c")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var zones struct {
			Zones []string `json:"zones"`
		}
		json.Unmarshal(rec.Body.Bytes(), &zones)
		if len(zones.Zones) != 1 || zones.Zones[0] != "Coastal" {
			t.Errorf("zones = %v, want [Coastal]", zones.Zones)
		}

		rec = doRequest(server, http.MethodGet, "/districts", nil, "tenant-c")
		var districts struct {
			Districts []string `json:"districts"`
		}
		json.Unmarshal(rec.Body.Bytes(), &districts)
		if len(districts.Districts) != 1 || districts.Districts[0] != "Visakhapatnam" {
			t.Errorf("districts = %v, want [Visakhapatnam]", districts.Districts)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("CreateAndReload", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "custom-gap",
			Name:       "Large Gap",
			Expression: "gap > 100000.0",
			Category:   domain.SignalRevenueGap,
			Severity:   domain.SeverityHigh,
			Confidence: 80,
			Enabled:    true,
		}, "tenant-r")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(server, http.MethodPost, "/rules/reload", nil, "tenant-r")
		if rec.Code != http.StatusOK {
			t.Fatalf("reload status = %d", rec.Code)
		}

		rec = doRequest(server, http.MethodGet, "/rules", nil, "tenant-r")
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}

		rec = doRequest(server, http.MethodGet, "/rules/custom-gap", nil, "tenant-r")
		if rec.Code != http.StatusOK {
			t.Errorf("get rule status = %d", rec.Code)
		}
		rec = doRequest(server, http.MethodGet, "/rules/missing", nil, "tenant-r")
		if rec.Code != http.StatusNotFound {
			t.Errorf("missing rule status = %d, want 404", rec.Code)
		}
	})

	t.Run("RejectsBadExpression", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad",
			Expression: "gap +",
			Enabled:    true,
		}, "tenant-r")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("RejectsNonBoolean", func(t *testing.T) {
		rec := doRequest(server, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "non-bool",
			Name:       "Non Bool",
			Expression: "gap + 1.0",
			Enabled:    true,
		}, "tenant-r")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	rec := doRequest(server, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health map[string]string
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health["status"] != "healthy" {
		t.Errorf("status = %s, want healthy", health["status"])
	}
	if health["version"] != "test-v1" {
		t.Errorf("version = %s", health["version"])
	}

	rec = doRequest(server, http.MethodGet, "/ready", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}
