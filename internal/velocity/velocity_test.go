package velocity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func TestVelocityService(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/velocity-test.db",
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	svc := NewService(repo, lruCache)

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("EmptyDatabase", func(t *testing.T) {
		count, err := svc.GetEvaluationCount(ctx, tenantID, "SR-101", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for empty database, got %d", count)
		}
	})

	t.Run("WithEvaluations", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			rec := &domain.EvaluationRecord{
				ID:        fmt.Sprintf("eval-%d", i),
				CaseID:    fmt.Sprintf("case-%d", i),
				SRCode:    "SR-101",
				CreatedAt: time.Now().Unix(),
			}
			if err := repo.SaveEvaluation(ctx, tenantID, rec); err != nil {
				t.Fatalf("failed to save evaluation: %v", err)
			}
		}

		count, err := svc.GetEvaluationCount(ctx, tenantID, "SR-101", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}

		// Other offices are unaffected.
		count, err = svc.GetEvaluationCount(ctx, tenantID, "SR-999", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for other office, got %d", count)
		}
	})

	t.Run("WindowExcludesOldEvaluations", func(t *testing.T) {
		old := &domain.EvaluationRecord{
			ID:        "eval-old",
			CaseID:    "case-old",
			SRCode:    "SR-202",
			CreatedAt: time.Now().Add(-2 * time.Hour).Unix(),
		}
		if err := repo.SaveEvaluation(ctx, tenantID, old); err != nil {
			t.Fatalf("failed to save evaluation: %v", err)
		}

		count, err := svc.GetEvaluationCount(ctx, tenantID, "SR-202", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected old evaluation outside window, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := svc.GetEvaluationCount(ctx, "tenant-other", "SR-101", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 for other tenant, got %d", count)
		}
	})

	t.Run("RequiresIdentifiers", func(t *testing.T) {
		if _, err := svc.GetEvaluationCount(ctx, "", "SR-101", 3600); err == nil {
			t.Error("expected error for missing tenant")
		}
		if _, err := svc.GetEvaluationCount(ctx, tenantID, "", 3600); err == nil {
			t.Error("expected error for missing SR code")
		}
	})

	t.Run("RecordEvaluationCounter", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			n, err := svc.RecordEvaluation(ctx, tenantID, "SR-303", time.Minute)
			if err != nil {
				t.Fatalf("RecordEvaluation: %v", err)
			}
			if n != int64(i) {
				t.Errorf("counter = %d, want %d", n, i)
			}
		}
	})
}

func TestServiceWithoutSources(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.GetEvaluationCount(context.Background(), "tenant", "SR-1", 60); err == nil {
		t.Error("expected error with no data source")
	}
	if n, err := svc.RecordEvaluation(context.Background(), "tenant", "SR-1", time.Minute); err != nil || n != 0 {
		t.Errorf("RecordEvaluation without cache = (%d, %v), want (0, nil)", n, err)
	}
}
