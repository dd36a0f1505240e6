package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetCaseDigest retrieves a cached case digest.
	GetCaseDigest(ctx context.Context, tenantID string, caseID string) (*CaseDigest, error)

	// SetCaseDigest caches the digest of an evaluated case.
	SetCaseDigest(ctx context.Context, tenantID string, caseID string, digest *CaseDigest, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the new
	// value. Used to track evaluation velocity per SR office.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CaseDigest is the compact cached view of an evaluated case.
type CaseDigest struct {
	CaseID    string  `json:"caseId"`
	SRCode    string  `json:"srCode"`
	Zone      string  `json:"zone"`
	District  string  `json:"district"`
	RiskLevel string  `json:"riskLevel"`
	RiskScore int     `json:"riskScore"`
	GapINR    float64 `json:"gapInr"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
