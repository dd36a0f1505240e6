// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCase stores a leakage case with tenant isolation. Saving an existing
// case ID overwrites its mutable attributes; cases are never deleted.
func (r *SQLRepository) SaveCase(ctx context.Context, tenantID string, c *domain.LeakageCase) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: case ID is required", ErrInvalidInput)
	}

	signals, _ := json.Marshal(c.LeakageSignals)
	var sla any
	if c.SLA != nil {
		raw, _ := json.Marshal(c.SLA)
		sla = string(raw)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO cases (
			id, tenant_id, zone, district, sr_code, sr_name, doc_type,
			risk_level, risk_score, leakage_signals, case_status,
			gap_inr, payable_inr, paid_inr, confidence, r_date, sla,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			zone = excluded.zone,
			district = excluded.district,
			sr_code = excluded.sr_code,
			sr_name = excluded.sr_name,
			doc_type = excluded.doc_type,
			risk_level = excluded.risk_level,
			risk_score = excluded.risk_score,
			leakage_signals = excluded.leakage_signals,
			case_status = excluded.case_status,
			gap_inr = excluded.gap_inr,
			payable_inr = excluded.payable_inr,
			paid_inr = excluded.paid_inr,
			confidence = excluded.confidence,
			r_date = excluded.r_date,
			sla = excluded.sla,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.Office.Zone, c.Office.District,
		c.Office.SRCode, c.Office.SRName, c.DocType,
		c.RiskLevel, c.RiskScore, string(signals), c.CaseStatus,
		c.GapINR, c.PayableINR, c.PaidINR, c.Confidence,
		c.Dates.RDate, sla,
		now, now,
	)
	return err
}

// GetCase retrieves a case by ID with tenant isolation.
func (r *SQLRepository) GetCase(ctx context.Context, tenantID string, caseID string) (*domain.LeakageCase, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, zone, district, sr_code, sr_name, doc_type,
			   risk_level, risk_score, leakage_signals, case_status,
			   gap_inr, payable_inr, paid_inr, confidence, r_date, sla
		FROM cases
		WHERE tenant_id = ? AND id = ?
	`

	c, err := scanCase(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, caseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCases retrieves every case for a tenant, highest risk first. This backs
// the query interpreter's case provider; ordering here is only a convenience,
// the interpreter re-sorts after filtering.
func (r *SQLRepository) ListCases(ctx context.Context, tenantID string) ([]domain.LeakageCase, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, zone, district, sr_code, sr_name, doc_type,
			   risk_level, risk_score, leakage_signals, case_status,
			   gap_inr, payable_inr, paid_inr, confidence, r_date, sla
		FROM cases
		WHERE tenant_id = ?
		ORDER BY risk_score DESC, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.LeakageCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}

	return cases, rows.Err()
}

// UpdateCaseStatus transitions a case to a new status.
func (r *SQLRepository) UpdateCaseStatus(ctx context.Context, tenantID string, caseID string, status string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE cases
		SET case_status = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, time.Now().UTC(), tenantID, caseID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveEvaluation stores an evaluation result with tenant isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, tenantID string, rec *domain.EvaluationRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	result, _ := json.Marshal(rec.Result)

	query := `
		INSERT INTO evaluations (id, tenant_id, case_id, sr_code, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.CaseID, rec.SRCode, string(result), rec.CreatedAt,
	)
	return err
}

// GetEvaluation retrieves an evaluation by ID with tenant isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.EvaluationRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, case_id, sr_code, result, created_at
		FROM evaluations
		WHERE tenant_id = ? AND id = ?
	`

	var rec domain.EvaluationRecord
	var result string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, evalID).Scan(
		&rec.ID, &rec.TenantID, &rec.CaseID, &rec.SRCode, &result, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation result: %w", err)
	}

	return &rec, nil
}

// CountEvaluationsByOffice counts evaluations recorded for one SR office
// since a point in time. Feeds the office_eval_count velocity variable in
// custom rules.
func (r *SQLRepository) CountEvaluationsByOffice(ctx context.Context, tenantID string, srCode string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM evaluations
		WHERE tenant_id = ? AND sr_code = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, srCode, since.Unix()).Scan(&count)
	return count, err
}

// SaveRuleConfig stores a custom rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.CustomRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression,
			category, severity, confidence, velocity_window_secs, enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			category = excluded.category,
			severity = excluded.severity,
			confidence = excluded.confidence,
			velocity_window_secs = excluded.velocity_window_secs,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression,
		string(rule.Category), string(rule.Severity),
		rule.Confidence, rule.VelocityWindowSecs, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a custom rule with
// tenant isolation.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.CustomRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   category, severity, confidence, velocity_window_secs, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	cfg, err := scanRuleConfig(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuleConfigs retrieves all active custom rules for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.CustomRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   category, severity, confidence, velocity_window_secs, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.CustomRuleConfig
	for rows.Next() {
		cfg, err := scanRuleConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(s scanner) (*domain.LeakageCase, error) {
	var c domain.LeakageCase
	var signals string
	var docType, rDate, sla sql.NullString

	if err := s.Scan(
		&c.ID, &c.TenantID, &c.Office.Zone, &c.Office.District,
		&c.Office.SRCode, &c.Office.SRName, &docType,
		&c.RiskLevel, &c.RiskScore, &signals, &c.CaseStatus,
		&c.GapINR, &c.PayableINR, &c.PaidINR, &c.Confidence,
		&rDate, &sla,
	); err != nil {
		return nil, err
	}

	c.DocType = docType.String
	c.Dates.RDate = rDate.String
	if signals != "" {
		json.Unmarshal([]byte(signals), &c.LeakageSignals)
	}
	if sla.Valid && sla.String != "" {
		var info domain.SLAInfo
		if err := json.Unmarshal([]byte(sla.String), &info); err == nil {
			c.SLA = &info
		}
	}

	return &c, nil
}

func scanRuleConfig(s scanner) (*domain.CustomRuleConfig, error) {
	var cfg domain.CustomRuleConfig
	var category, severity string
	var enabled int

	if err := s.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &category, &severity,
		&cfg.Confidence, &cfg.VelocityWindowSecs, &enabled,
	); err != nil {
		return nil, err
	}

	cfg.Category = domain.SignalType(category)
	cfg.Severity = domain.Severity(severity)
	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
