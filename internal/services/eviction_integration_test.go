package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/cache"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/testutil"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
)

func TestEvictionRunnerRemovesStaleEntries(t *testing.T) {
	db := testutil.DB(t)
	repo := cache.NewEmbeddingCacheRepo(db, testutil.Logger(t))
	runner := NewEvictionRunner(repo, config.DefaultEvictionConfig(), testutil.Logger(t), nil)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	tenant := uuid.New()

	// Eviction runs on its own connection, so rows are seeded outside a test
	// transaction and removed explicitly.
	t.Cleanup(func() {
		db.Exec("DELETE FROM embedding_cache_entry WHERE tenant_id = ?", tenant)
	})

	testutil.SeedCacheEntry(t, ctx, db, tenant, "a", "model-a", 60*24*time.Hour)
	testutil.SeedCacheEntry(t, ctx, db, tenant, "b", "model-a", 45*24*time.Hour)
	testutil.SeedCacheEntry(t, ctx, db, tenant, "c", "model-b", 40*24*time.Hour)
	fresh := testutil.SeedCacheEntry(t, ctx, db, tenant, "d", "model-a", time.Hour)
	hit := testutil.SeedCacheEntry(t, ctx, db, tenant, "e", "model-a", 60*24*time.Hour)
	if err := repo.RecordHit(dbc, hit.ID); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}

	result, err := runner.Run(ctx, tenant, EvictionOptions{BatchLimit: 2, PolicyLabel: "test"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.LockAcquired {
		t.Fatal("lock must be acquired when uncontended")
	}
	if result.Evicted != 3 {
		t.Fatalf("evicted = %d, want 3", result.Evicted)
	}
	if result.PerModel["model-a"] != 2 || result.PerModel["model-b"] != 1 {
		t.Fatalf("per-model counts = %v", result.PerModel)
	}

	// Fresh and hit entries survive.
	for _, hash := range []string{fresh.ContentSHA256, hit.ContentSHA256} {
		entry, err := repo.Find(dbc, tenant, hash, "model-a")
		if err != nil || entry == nil {
			t.Fatalf("surviving entry %s: entry=%v err=%v", hash, entry, err)
		}
	}
}

func TestEvictionRunnerLockContention(t *testing.T) {
	db := testutil.DB(t)
	repo := cache.NewEmbeddingCacheRepo(db, testutil.Logger(t))
	runner := NewEvictionRunner(repo, config.DefaultEvictionConfig(), testutil.Logger(t), nil)
	ctx := context.Background()
	tenant := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := repo.WithTenantEvictionLock(ctx, tenant, func(conn *gorm.DB) error {
			close(held)
			<-release
			return nil
		})
		done <- err
	}()
	<-held

	result, err := runner.Run(ctx, tenant, EvictionOptions{})
	if err != nil {
		t.Fatalf("Run under contention: %v", err)
	}
	if result.LockAcquired || result.Evicted != 0 {
		t.Fatalf("contended run = %+v, want lock_acquired=false evicted=0", result)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("lock holder: %v", err)
	}
}
