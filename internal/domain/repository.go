package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
// Cases are never deleted; they are only status-transitioned.
type Repository interface {
	// Case operations
	SaveCase(ctx context.Context, tenantID string, c *LeakageCase) error
	GetCase(ctx context.Context, tenantID string, caseID string) (*LeakageCase, error)
	ListCases(ctx context.Context, tenantID string) ([]LeakageCase, error)
	UpdateCaseStatus(ctx context.Context, tenantID string, caseID string, status string) error

	// Evaluation results
	SaveEvaluation(ctx context.Context, tenantID string, rec *EvaluationRecord) error
	GetEvaluation(ctx context.Context, tenantID string, evalID string) (*EvaluationRecord, error)
	CountEvaluationsByOffice(ctx context.Context, tenantID string, srCode string, since time.Time) (int64, error)

	// Custom rule configuration operations
	SaveRuleConfig(ctx context.Context, tenantID string, rule *CustomRuleConfig) error
	GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*CustomRuleConfig, error)
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*CustomRuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
