package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/data/repos/testutil"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
)

func TestEmbeddingCacheRepoFindAndHit(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	seeded := testutil.SeedCacheEntry(t, ctx, tx, tenant, "error text", "text-embedding-3-small", time.Hour)

	found, err := repo.Find(dbc, tenant, seeded.ContentSHA256, seeded.Model)
	if err != nil || found == nil {
		t.Fatalf("Find: entry=%v err=%v", found, err)
	}

	if miss, err := repo.Find(dbc, uuid.New(), seeded.ContentSHA256, seeded.Model); err != nil || miss != nil {
		t.Fatalf("Find with foreign tenant must miss, got entry=%v err=%v", miss, err)
	}

	if err := repo.RecordHit(dbc, seeded.ID); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	refetched, err := repo.Find(dbc, tenant, seeded.ContentSHA256, seeded.Model)
	if err != nil {
		t.Fatalf("Find after hit: %v", err)
	}
	if refetched.HitCount != 1 {
		t.Fatalf("hit_count = %d, want 1", refetched.HitCount)
	}
	if !refetched.LastAccessedAt.After(seeded.LastAccessedAt) {
		t.Fatalf("last_accessed_at not refreshed")
	}
}

func TestEmbeddingCacheRepoUniqueKeyConflict(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	seeded := testutil.SeedCacheEntry(t, ctx, tx, tenant, "same content", "model-a", time.Minute)

	dup := &domain.EmbeddingCacheEntry{
		ID:                uuid.New(),
		TenantID:          tenant,
		ContentSHA256:     seeded.ContentSHA256,
		Model:             seeded.Model,
		LastAccessedAt:    time.Now().UTC(),
		CreatedAt:         time.Now().UTC(),
		PayloadCiphertext: []byte(`[]`),
	}
	if err := repo.Create(dbc, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Create duplicate key err = %v, want ErrConflict", err)
	}

	// Same hash under another model is a distinct key.
	other := *dup
	other.ID = uuid.New()
	other.Model = "model-b"
	if err := repo.Create(dbc, &other); err != nil {
		t.Fatalf("Create with different model: %v", err)
	}
}

func TestEmbeddingCacheRepoSelectStale(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	oldest := testutil.SeedCacheEntry(t, ctx, tx, tenant, "a", "m", 72*time.Hour)
	middle := testutil.SeedCacheEntry(t, ctx, tx, tenant, "b", "m", 48*time.Hour)
	fresh := testutil.SeedCacheEntry(t, ctx, tx, tenant, "c", "m", time.Hour)
	hit := testutil.SeedCacheEntry(t, ctx, tx, tenant, "d", "m", 72*time.Hour)
	if err := repo.RecordHit(dbc, hit.ID); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	foreign := testutil.SeedCacheEntry(t, ctx, tx, uuid.New(), "e", "m", 72*time.Hour)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	rows, err := repo.SelectStale(dbc, tenant, cutoff, 10)
	if err != nil {
		t.Fatalf("SelectStale: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("stale rows = %d, want 2 (zero-hit entries older than cutoff)", len(rows))
	}
	if rows[0].ID != oldest.ID || rows[1].ID != middle.ID {
		t.Fatalf("stale order = %v, want oldest first", rows)
	}
	for _, row := range rows {
		if row.ID == fresh.ID || row.ID == hit.ID || row.ID == foreign.ID {
			t.Fatalf("row %s must not be eligible", row.ID)
		}
	}

	limited, err := repo.SelectStale(dbc, tenant, cutoff, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("SelectStale limit: rows=%v err=%v", limited, err)
	}
}

func TestEmbeddingCacheRepoDeleteByIDsReturnsModels(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	e1 := testutil.SeedCacheEntry(t, ctx, tx, tenant, "a", "model-a", time.Hour)
	e2 := testutil.SeedCacheEntry(t, ctx, tx, tenant, "b", "model-b", time.Hour)

	labels, err := repo.DeleteByIDs(dbc, []uuid.UUID{e1.ID, e2.ID})
	if err != nil {
		t.Fatalf("DeleteByIDs: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("labels = %v, want one per deleted row", labels)
	}
	seen := map[string]bool{}
	for _, l := range labels {
		seen[l] = true
	}
	if !seen["model-a"] || !seen["model-b"] {
		t.Fatalf("labels = %v, want model-a and model-b", labels)
	}

	if labels, err := repo.DeleteByIDs(dbc, nil); err != nil || labels != nil {
		t.Fatalf("DeleteByIDs(nil) = %v, %v", labels, err)
	}
}

func TestEmbeddingCacheRepoDeleteMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))

	err := repo.Delete(dbc, uuid.New(), testutil.ContentHash("nothing"), "m")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrNotFound", err)
	}
}

func TestWithTenantEvictionLockContention(t *testing.T) {
	db := testutil.DB(t)
	repo := NewEmbeddingCacheRepo(db, testutil.Logger(t))
	ctx := context.Background()
	tenant := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	var firstAcquired bool

	go func() {
		var err error
		firstAcquired, err = repo.WithTenantEvictionLock(ctx, tenant, func(conn *gorm.DB) error {
			close(held)
			<-release
			return nil
		})
		firstDone <- err
	}()

	<-held
	secondAcquired, err := repo.WithTenantEvictionLock(ctx, tenant, func(conn *gorm.DB) error {
		t.Error("second holder must not run while lock is held")
		return nil
	})
	if err != nil {
		t.Fatalf("second try-lock: %v", err)
	}
	if secondAcquired {
		t.Fatal("second try-lock acquired a held lock")
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first holder: %v", err)
	}
	if !firstAcquired {
		t.Fatal("first holder should have acquired the lock")
	}

	// Released locks are reacquirable.
	again, err := repo.WithTenantEvictionLock(ctx, tenant, func(conn *gorm.DB) error { return nil })
	if err != nil || !again {
		t.Fatalf("reacquire after release: acquired=%v err=%v", again, err)
	}
}

func TestAdvisoryLockKeyDeterministic(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	k1 := advisoryLockKey(id)
	k2 := advisoryLockKey(id)
	if k1 != k2 {
		t.Fatalf("key not deterministic: %d vs %d", k1, k2)
	}
	if k1 < 0 {
		t.Fatalf("key = %d, must fit in 63 bits", k1)
	}
	if advisoryLockKey(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c9")) == k1 {
		t.Fatal("distinct tenants should map to distinct keys")
	}
}
