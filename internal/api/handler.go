package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/query"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		version: version,
	}
}

// EvaluateRequest is the request body for POST /evaluate: the fact sheet of
// one registration document, with an optional caller-supplied case ID.
type EvaluateRequest struct {
	CaseID string                 `json:"caseId,omitempty"`
	Facts  domain.ManualCaseInput `json:"facts"`
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	EvaluationID string                      `json:"evaluationId"`
	CaseID       string                      `json:"caseId"`
	Result       domain.RuleEvaluationResult `json:"result"`
	Metadata     struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate: synchronous rule evaluation of one
// manually entered case.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Facts.SRCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "facts.SR_CODE is required",
		})
		return
	}
	if req.Facts.PayableTotal() < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "payable components must not be negative",
		})
		return
	}

	caseID := req.CaseID
	if caseID == "" {
		caseID = uuid.New().String()
	}

	result, err := h.engine.EvaluateCase(ctx, tenantID, req.Facts)
	if err != nil {
		slog.Error("rule evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "rule evaluation failed",
		})
		return
	}

	rec := &domain.EvaluationRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		CaseID:    caseID,
		SRCode:    req.Facts.SRCode,
		Result:    result,
		CreatedAt: time.Now().Unix(),
	}

	if h.repo != nil {
		c := &domain.LeakageCase{
			ID: caseID,
			Office: domain.Office{
				Zone:     req.Facts.Zone,
				District: req.Facts.District,
				SRCode:   req.Facts.SRCode,
				SRName:   req.Facts.SRName,
			},
			DocType:        req.Facts.DocType,
			RiskLevel:      result.RiskLevel,
			RiskScore:      result.RiskScore,
			LeakageSignals: result.LeakageSignals,
			CaseStatus:     domain.CaseStatusNew,
			GapINR:         result.GapINR,
			PayableINR:     result.PayableINR,
			PaidINR:        req.Facts.PaidTotal(),
			Confidence:     result.Confidence,
			Dates:          domain.CaseDates{RDate: req.Facts.RDate},
		}
		if err := h.repo.SaveCase(ctx, tenantID, c); err != nil {
			slog.Error("failed to save case", "case_id", caseID, "error", err)
		}
		if err := h.repo.SaveEvaluation(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save evaluation", "case_id", caseID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(rec)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCaseEvaluated, payload); err != nil {
			slog.Error("failed to publish evaluation", "case_id", caseID, "error", err)
		}
		if result.RiskLevel == domain.RiskLevelHigh {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert", "case_id", caseID, "error", err)
			}
		}
	}

	resp := EvaluateResponse{
		EvaluationID: rec.ID,
		CaseID:       caseID,
		Result:       result,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history,omitempty"`
}

// Query handles POST /query: free-text analyst questions over the tenant's
// case collection.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	it := query.NewInterpreter(h.caseProvider(tenantID))
	resp, err := it.Process(ctx, req.Message, req.History)
	if err != nil {
		slog.Error("query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "query failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) caseProvider(tenantID string) query.CaseProvider {
	return func(ctx context.Context) ([]domain.LeakageCase, error) {
		return h.repo.ListCases(ctx, tenantID)
	}
}

// ListCases handles GET /cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cases, err := h.repo.ListCases(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// GetCase handles GET /cases/{id}.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	if caseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "case id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	c, err := h.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get case", "id", caseID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "case not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// UpdateCaseStatusRequest is the request body for PATCH /cases/{id}/status.
type UpdateCaseStatusRequest struct {
	Status string `json:"status"`
}

var validStatuses = map[string]bool{
	domain.CaseStatusNew:       true,
	domain.CaseStatusInReview:  true,
	domain.CaseStatusConfirmed: true,
	domain.CaseStatusResolved:  true,
	domain.CaseStatusRejected:  true,
}

// UpdateCaseStatus handles PATCH /cases/{id}/status. Cases are never deleted;
// this is the only mutation the API offers.
func (h *Handler) UpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	var req UpdateCaseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if !validStatuses[req.Status] {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid case status",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.UpdateCaseStatus(ctx, tenantID, caseID, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "case not found",
			})
			return
		}
		slog.Error("failed to update case status", "id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update case status",
		})
		return
	}

	slog.Info("case status updated", "case_id", caseID, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     caseID,
		"status": req.Status,
	})
}

// GetEvaluation handles GET /evaluations/{id}.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get evaluation", "id", evalID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// ListZones handles GET /zones: the distinct zones present in the tenant's
// case collection, for clarifier UIs.
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	h.listDistinct(w, r, query.AvailableZones, "zones")
}

// ListDistricts handles GET /districts.
func (h *Handler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	h.listDistinct(w, r, query.AvailableDistricts, "districts")
}

func (h *Handler) listDistinct(w http.ResponseWriter, r *http.Request, distinct func([]domain.LeakageCase) []string, key string) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cases, err := h.repo.ListCases(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	values := distinct(cases)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		key:     values,
		"count": len(values),
	})
}

// ListRules returns all custom rules loaded in the engine. The builtin
// catalog is fixed and not listed here.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a custom rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	Expression         string            `json:"expression"`
	Category           domain.SignalType `json:"category"`
	Severity           domain.Severity   `json:"severity"`
	Confidence         int               `json:"confidence"`
	VelocityWindowSecs int               `json:"velocityWindowSecs,omitempty"`
	Enabled            bool              `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new custom rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.CustomRuleConfig{
		ID:                 req.ID,
		TenantID:           GlobalTenantID,
		Name:               req.Name,
		Description:        req.Description,
		Version:            "1.0.0",
		Expression:         req.Expression,
		Category:           req.Category,
		Severity:           req.Severity,
		Confidence:         req.Confidence,
		VelocityWindowSecs: req.VelocityWindowSecs,
		Enabled:            req.Enabled,
	}

	// Validate the CEL expression before persisting
	if err := h.engine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all custom rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
