// Package worker provides async batch case evaluation off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Worker consumes ingested case facts from the EventBus, evaluates them, and
// persists the outcome. This is the batch detection path; manual entry goes
// through the HTTP API instead.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	cache  domain.Cache
	engine *rules.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker. cache may be nil; case digests are
// then not cached.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *rules.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing ingested cases for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicCaseIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCaseIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processCase(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicCaseIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processCase(ctx, msg.TenantID, msg)
}

// processCase evaluates one ingested case through the pipeline.
func (w *Worker) processCase(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var envelope domain.CaseEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		slog.Error("failed to parse case envelope",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	caseID := envelope.CaseID
	if caseID == "" {
		caseID = uuid.New().String()
	}

	slog.Debug("processing case",
		"case_id", caseID,
		"tenant_id", tenantID,
	)

	// 1. Evaluate: builtin catalog plus any loaded custom rules.
	result, err := w.engine.EvaluateCase(ctx, tenantID, envelope.Facts)
	if err != nil {
		slog.Error("rule evaluation failed",
			"case_id", caseID,
			"error", err,
		)
		return err
	}

	// 2. Persist the case and its evaluation.
	leakageCase := caseFromEvaluation(caseID, envelope.Facts, result)
	rec := &domain.EvaluationRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		CaseID:    caseID,
		SRCode:    envelope.Facts.SRCode,
		Result:    result,
		CreatedAt: time.Now().Unix(),
	}

	if w.repo != nil {
		if err := w.repo.SaveCase(ctx, tenantID, leakageCase); err != nil {
			slog.Error("failed to save case",
				"case_id", caseID,
				"error", err,
			)
		}
		if err := w.repo.SaveEvaluation(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save evaluation",
				"case_id", caseID,
				"error", err,
			)
		}
	}

	// 3. Cache the digest for fast query serving.
	if w.cache != nil {
		digest := &domain.CaseDigest{
			CaseID:    caseID,
			SRCode:    envelope.Facts.SRCode,
			Zone:      envelope.Facts.Zone,
			District:  envelope.Facts.District,
			RiskLevel: result.RiskLevel,
			RiskScore: result.RiskScore,
			GapINR:    result.GapINR,
		}
		_ = w.cache.SetCaseDigest(ctx, tenantID, caseID, digest, time.Hour)
	}

	// 4. Publish the evaluated event; High risk also raises an alert.
	payload, _ := json.Marshal(rec)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicCaseEvaluated, payload); err != nil {
		slog.Error("failed to publish evaluation",
			"case_id", caseID,
			"error", err,
		)
	}
	if result.RiskLevel == domain.RiskLevelHigh {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"case_id", caseID,
				"error", err,
			)
		}
	}

	slog.Info("case processed",
		"case_id", caseID,
		"tenant_id", tenantID,
		"risk_level", result.RiskLevel,
		"risk_score", result.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// caseFromEvaluation builds the persisted case from the raw facts and the
// evaluation outcome. New cases always start in status New.
func caseFromEvaluation(caseID string, facts domain.ManualCaseInput, result domain.RuleEvaluationResult) *domain.LeakageCase {
	return &domain.LeakageCase{
		ID: caseID,
		Office: domain.Office{
			Zone:     facts.Zone,
			District: facts.District,
			SRCode:   facts.SRCode,
			SRName:   facts.SRName,
		},
		DocType:        facts.DocType,
		RiskLevel:      result.RiskLevel,
		RiskScore:      result.RiskScore,
		LeakageSignals: result.LeakageSignals,
		CaseStatus:     domain.CaseStatusNew,
		GapINR:         result.GapINR,
		PayableINR:     result.PayableINR,
		PaidINR:        facts.PaidTotal(),
		Confidence:     result.Confidence,
		Dates:          domain.CaseDates{RDate: facts.RDate},
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
