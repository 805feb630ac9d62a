package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingCacheEntry is one cached embedding, scoped to a tenant and keyed by
// content hash plus model. The payload is the encrypted serialized vector.
type EmbeddingCacheEntry struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_embedding_cache_key,priority:1" json:"tenant_id"`
	ContentSHA256     string     `gorm:"column:content_sha256;type:char(64);not null;uniqueIndex:uq_embedding_cache_key,priority:2;check:chk_content_sha256_len,char_length(content_sha256) = 64" json:"content_sha256"`
	Model             string     `gorm:"column:model;not null;uniqueIndex:uq_embedding_cache_key,priority:3" json:"model"`
	EmbeddingVectorID *uuid.UUID `gorm:"column:embedding_vector_id;type:uuid" json:"embedding_vector_id,omitempty"`
	HitCount          int64      `gorm:"column:hit_count;not null;default:0;check:chk_hit_count_nonneg,hit_count >= 0" json:"hit_count"`
	LastAccessedAt    time.Time  `gorm:"column:last_accessed_at;not null;default:now()" json:"last_accessed_at"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
	ExpiresAt         *time.Time `gorm:"column:expires_at;check:chk_expires_after_created,expires_at IS NULL OR expires_at > created_at" json:"expires_at,omitempty"`
	PayloadCiphertext []byte     `gorm:"column:payload_ciphertext;type:bytea;not null" json:"-"`
}

func (EmbeddingCacheEntry) TableName() string { return "embedding_cache_entry" }
