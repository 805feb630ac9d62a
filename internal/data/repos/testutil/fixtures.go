package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
)

// ContentHash returns the lowercase hex SHA-256 of s, the cache key format.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func SeedCacheEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, content, model string, age time.Duration) *domain.EmbeddingCacheEntry {
	tb.Helper()
	createdAt := time.Now().UTC().Add(-age)
	entry := &domain.EmbeddingCacheEntry{
		ID:                uuid.New(),
		TenantID:          tenantID,
		ContentSHA256:     ContentHash(content),
		Model:             model,
		HitCount:          0,
		LastAccessedAt:    createdAt,
		CreatedAt:         createdAt,
		PayloadCiphertext: []byte(`[0.1,0.2]`),
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		tb.Fatalf("seed cache entry: %v", err)
	}
	return entry
}

func SeedFingerprint(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope domain.VisibilityScope, embedding []byte) *domain.IncidentFingerprint {
	tb.Helper()
	fp := &domain.IncidentFingerprint{
		ID:                 uuid.New(),
		SessionID:          uuid.New(),
		TenantID:           tenantID,
		SummaryText:        "checkout robot failed on invoice queue",
		DetectedPlatform:   domain.PlatformUiPath,
		RelevanceThreshold: 0.7,
		VisibilityScope:    scope,
		FingerprintStatus:  domain.FingerprintAvailable,
		SafeguardNotes:     datatypes.JSON([]byte(`{}`)),
	}
	if embedding != nil {
		fp.EmbeddingVector = datatypes.JSON(embedding)
	} else {
		fp.FingerprintStatus = domain.FingerprintDegraded
	}
	if err := tx.WithContext(ctx).Create(fp).Error; err != nil {
		tb.Fatalf("seed fingerprint: %v", err)
	}
	return fp
}
