package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autovant/RCA-Final-sub001/internal/data/repos/cache"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/observability"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

// scrubConfirmationKeys are the metadata keys that can carry the PII-scrub
// confirmation, checked at the top level and under "privacy".
var scrubConfirmationKeys = []string{"pii_scrubbed", "scrubbed", "scrubbed_confirmed"}

// CacheHit pairs the stored entry with its decrypted embedding.
type CacheHit struct {
	Entry     *domain.EmbeddingCacheEntry `json:"entry"`
	Embedding []float64                   `json:"embedding"`
}

// CacheStoreRequest is one embedding cache write. ScrubMetadata must confirm
// PII scrubbing or the write is rejected before any row is touched.
type CacheStoreRequest struct {
	TenantID          uuid.UUID      `json:"tenant_id"`
	ContentHash       string         `json:"content_hash"`
	Model             string         `json:"model"`
	EmbeddingVectorID *uuid.UUID     `json:"embedding_vector_id,omitempty"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	ScrubMetadata     map[string]any `json:"scrub_metadata"`
	Embedding         []float64      `json:"embedding"`
}

type EmbeddingCacheService interface {
	// Lookup returns nil on a clean miss. A hit increments hit_count and
	// refreshes last_accessed_at before the entry is returned.
	Lookup(dbc dbctx.Context, tenantID uuid.UUID, contentHash, model string) (*CacheHit, error)
	Store(dbc dbctx.Context, req CacheStoreRequest) (*domain.EmbeddingCacheEntry, error)
	// Purge removes a single entry, returning apperr.ErrNotFound when it
	// does not exist.
	Purge(dbc dbctx.Context, tenantID uuid.UUID, contentHash, model string) error
}

type embeddingCacheService struct {
	repo    cache.EmbeddingCacheRepo
	box     *PayloadBox
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewEmbeddingCacheService(repo cache.EmbeddingCacheRepo, box *PayloadBox, baseLog *logger.Logger, metrics *observability.Metrics) EmbeddingCacheService {
	return &embeddingCacheService{
		repo:    repo,
		box:     box,
		log:     baseLog.With("service", "EmbeddingCacheService"),
		metrics: metrics,
	}
}

func (s *embeddingCacheService) Lookup(dbc dbctx.Context, tenantID uuid.UUID, contentHash, model string) (*CacheHit, error) {
	hash, err := normalizeContentHash(contentHash)
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.Find(dbc, tenantID, hash, model)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCacheLookup(tenantID.String(), entry != nil)
	if entry == nil {
		return nil, nil
	}

	embedding, err := s.box.Open(entry.PayloadCiphertext)
	if err != nil {
		s.log.Error("cached embedding payload unreadable",
			"tenant_id", tenantID, "model", model, "error", err)
		return nil, fmt.Errorf("open cached payload: %w", err)
	}
	if err := s.repo.RecordHit(dbc, entry.ID); err != nil {
		return nil, err
	}
	entry.HitCount++
	entry.LastAccessedAt = time.Now().UTC()
	return &CacheHit{Entry: entry, Embedding: embedding}, nil
}

func (s *embeddingCacheService) Store(dbc dbctx.Context, req CacheStoreRequest) (*domain.EmbeddingCacheEntry, error) {
	if !scrubConfirmed(req.ScrubMetadata) {
		s.metrics.ObserveCacheStore(req.TenantID.String(), "rejected_scrub")
		return nil, &apperr.ScrubConfirmationError{AcceptedKeys: scrubConfirmationKeys}
	}
	hash, err := normalizeContentHash(req.ContentHash)
	if err != nil {
		s.metrics.ObserveCacheStore(req.TenantID.String(), "rejected_hash")
		return nil, err
	}

	payload, err := s.box.Seal(req.Embedding)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	entry := &domain.EmbeddingCacheEntry{
		ID:                uuid.New(),
		TenantID:          req.TenantID,
		ContentSHA256:     hash,
		Model:             req.Model,
		EmbeddingVectorID: req.EmbeddingVectorID,
		LastAccessedAt:    now,
		CreatedAt:         now,
		ExpiresAt:         req.ExpiresAt,
		PayloadCiphertext: payload,
	}

	if err := s.repo.Create(dbc, entry); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Concurrent identical store; the other writer's row serves.
			s.metrics.ObserveCacheStore(req.TenantID.String(), "conflict")
			return nil, err
		}
		s.metrics.ObserveCacheStore(req.TenantID.String(), "error")
		return nil, err
	}
	s.metrics.ObserveCacheStore(req.TenantID.String(), "stored")
	return entry, nil
}

func (s *embeddingCacheService) Purge(dbc dbctx.Context, tenantID uuid.UUID, contentHash, model string) error {
	hash, err := normalizeContentHash(contentHash)
	if err != nil {
		return err
	}
	return s.repo.Delete(dbc, tenantID, hash, model)
}

// scrubConfirmed checks for a truthy confirmation flag at the top level or
// under the "privacy" sub-map. Embeddings derived from unscrubbed PII must
// never reach the cache.
func scrubConfirmed(meta map[string]any) bool {
	if confirmedIn(meta) {
		return true
	}
	if privacy, ok := meta["privacy"].(map[string]any); ok {
		return confirmedIn(privacy)
	}
	return false
}

func confirmedIn(meta map[string]any) bool {
	for _, key := range scrubConfirmationKeys {
		if truthy(meta[key]) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes":
			return true
		}
		return false
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return false
	}
}

func normalizeContentHash(hash string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	if len(normalized) != 64 {
		return "", fmt.Errorf("%w: content hash must be 64 hex chars, got %d", apperr.ErrInvalidArgument, len(normalized))
	}
	return normalized, nil
}
