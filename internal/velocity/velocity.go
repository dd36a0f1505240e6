// Package velocity tracks evaluation velocity per SR office.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Service counts recent evaluations for a sub-registrar office. Custom rules
// use the count to flag offices with an unusual evaluation burst.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service. cache may be nil; counts then
// always come from the repository.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetEvaluationCount returns the number of evaluations recorded for an SR
// office within the trailing window. This matches the rules.VelocityGetter
// signature.
func (s *Service) GetEvaluationCount(ctx context.Context, tenantID, srCode string, windowSecs int) (int64, error) {
	if tenantID == "" || srCode == "" {
		return 0, fmt.Errorf("tenantID and srCode are required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	count, err := s.repo.CountEvaluationsByOffice(ctx, tenantID, srCode, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return count, nil
}

// RecordEvaluation bumps the windowed counter for an office. Only used when a
// cache is configured; the repository count stays authoritative.
func (s *Service) RecordEvaluation(ctx context.Context, tenantID, srCode string, window time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	key := fmt.Sprintf("velocity:%s", srCode)
	return s.cache.IncrementCounter(ctx, tenantID, key, window)
}

// Getter returns the VelocityGetter the rule engine plugs into the
// office_eval_count variable.
func (s *Service) Getter() rules.VelocityGetter {
	return s.GetEvaluationCount
}
