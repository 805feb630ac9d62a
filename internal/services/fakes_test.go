package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/data/repos/cache"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
)

var errTest = errors.New("test failure")

type fakeCacheRepo struct {
	entries map[string]*domain.EmbeddingCacheEntry
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string]*domain.EmbeddingCacheEntry{}}
}

func cacheKey(tenantID uuid.UUID, hash, model string) string {
	return strings.Join([]string{tenantID.String(), hash, model}, "|")
}

func (f *fakeCacheRepo) Find(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) (*domain.EmbeddingCacheEntry, error) {
	entry, ok := f.entries[cacheKey(tenantID, contentSHA256, model)]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeCacheRepo) Create(dbc dbctx.Context, entry *domain.EmbeddingCacheEntry) error {
	key := cacheKey(entry.TenantID, entry.ContentSHA256, entry.Model)
	if _, exists := f.entries[key]; exists {
		return apperr.ErrConflict
	}
	copied := *entry
	f.entries[key] = &copied
	return nil
}

func (f *fakeCacheRepo) RecordHit(dbc dbctx.Context, id uuid.UUID) error {
	for _, entry := range f.entries {
		if entry.ID == id {
			entry.HitCount++
			entry.LastAccessedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("no entry %s", id)
}

func (f *fakeCacheRepo) Delete(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) error {
	key := cacheKey(tenantID, contentSHA256, model)
	if _, ok := f.entries[key]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeCacheRepo) SelectStale(dbc dbctx.Context, tenantID uuid.UUID, olderThan time.Time, limit int) ([]cache.StaleEntry, error) {
	if limit < 1 {
		limit = 1
	}
	var stale []*domain.EmbeddingCacheEntry
	for _, entry := range f.entries {
		if entry.TenantID == tenantID && entry.HitCount == 0 && !entry.CreatedAt.After(olderThan) {
			stale = append(stale, entry)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]cache.StaleEntry, 0, len(stale))
	for _, entry := range stale {
		out = append(out, cache.StaleEntry{ID: entry.ID, Model: entry.Model})
	}
	return out, nil
}

func (f *fakeCacheRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]string, error) {
	var labels []string
	for _, id := range ids {
		for key, entry := range f.entries {
			if entry.ID == id {
				label := entry.Model
				if label == "" {
					label = "unknown"
				}
				labels = append(labels, label)
				delete(f.entries, key)
			}
		}
	}
	return labels, nil
}

func (f *fakeCacheRepo) WithTenantEvictionLock(ctx context.Context, tenantID uuid.UUID, fn func(conn *gorm.DB) error) (bool, error) {
	return true, fn(nil)
}

type markCall struct {
	ID   uuid.UUID
	Note string
}

type fakeFingerprintRepo struct {
	bySession map[uuid.UUID]*domain.IncidentFingerprint
	marked    []markCall
}

func newFakeFingerprintRepo(fps ...*domain.IncidentFingerprint) *fakeFingerprintRepo {
	repo := &fakeFingerprintRepo{bySession: map[uuid.UUID]*domain.IncidentFingerprint{}}
	for _, fp := range fps {
		repo.bySession[fp.SessionID] = fp
	}
	return repo
}

func (f *fakeFingerprintRepo) Create(dbc dbctx.Context, fp *domain.IncidentFingerprint) error {
	f.bySession[fp.SessionID] = fp
	return nil
}

func (f *fakeFingerprintRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*domain.IncidentFingerprint, error) {
	fp, ok := f.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	return fp, nil
}

func (f *fakeFingerprintRepo) GetBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*domain.IncidentFingerprint, error) {
	var out []*domain.IncidentFingerprint
	for _, id := range sessionIDs {
		if fp, ok := f.bySession[id]; ok {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (f *fakeFingerprintRepo) MarkUnavailable(dbc dbctx.Context, id uuid.UUID, note string) error {
	f.marked = append(f.marked, markCall{ID: id, Note: note})
	for _, fp := range f.bySession {
		if fp.ID == id {
			fp.FingerprintStatus = domain.FingerprintMissing
		}
	}
	return nil
}

type fakeAuditRepo struct {
	created []*domain.CrossWorkspaceAudit
}

func (f *fakeAuditRepo) Create(dbc dbctx.Context, audit *domain.CrossWorkspaceAudit) error {
	f.created = append(f.created, audit)
	return nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeEvictionRunner struct {
	started chan uuid.UUID
	release chan struct{}
	result  *EvictionResult
	err     error
}

func newFakeEvictionRunner() *fakeEvictionRunner {
	return &fakeEvictionRunner{
		started: make(chan uuid.UUID, 16),
		release: make(chan struct{}),
		result:  &EvictionResult{LockAcquired: true},
	}
}

func (f *fakeEvictionRunner) Run(ctx context.Context, tenantID uuid.UUID, opts EvictionOptions) (*EvictionResult, error) {
	f.started <- tenantID
	<-f.release
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
