package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

// StaleEntry is the projection used by eviction batches.
type StaleEntry struct {
	ID    uuid.UUID
	Model string
}

type EmbeddingCacheRepo interface {
	Find(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) (*domain.EmbeddingCacheEntry, error)
	Create(dbc dbctx.Context, entry *domain.EmbeddingCacheEntry) error
	RecordHit(dbc dbctx.Context, id uuid.UUID) error
	Delete(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) error
	SelectStale(dbc dbctx.Context, tenantID uuid.UUID, olderThan time.Time, limit int) ([]StaleEntry, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]string, error)
	// WithTenantEvictionLock runs fn while holding the tenant's session-scoped
	// advisory lock. It returns false without running fn when the lock is
	// already held elsewhere; that is contention, not failure. The lock is
	// released on every exit path.
	WithTenantEvictionLock(ctx context.Context, tenantID uuid.UUID, fn func(conn *gorm.DB) error) (bool, error)
}

type embeddingCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingCacheRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingCacheRepo {
	return &embeddingCacheRepo{db: db, log: baseLog.With("repo", "EmbeddingCacheRepo")}
}

func (r *embeddingCacheRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *embeddingCacheRepo) Find(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) (*domain.EmbeddingCacheEntry, error) {
	var entry domain.EmbeddingCacheEntry
	err := r.conn(dbc).
		Where("tenant_id = ? AND content_sha256 = ? AND model = ?", tenantID, contentSHA256, model).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *embeddingCacheRepo) Create(dbc dbctx.Context, entry *domain.EmbeddingCacheEntry) error {
	err := r.conn(dbc).Create(entry).Error
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *embeddingCacheRepo) RecordHit(dbc dbctx.Context, id uuid.UUID) error {
	// The increment runs in SQL, so concurrent hits serialize on the row.
	return r.conn(dbc).
		Model(&domain.EmbeddingCacheEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"hit_count":        gorm.Expr("hit_count + 1"),
			"last_accessed_at": time.Now().UTC(),
		}).Error
}

func (r *embeddingCacheRepo) Delete(dbc dbctx.Context, tenantID uuid.UUID, contentSHA256, model string) error {
	res := r.conn(dbc).
		Where("tenant_id = ? AND content_sha256 = ? AND model = ?", tenantID, contentSHA256, model).
		Delete(&domain.EmbeddingCacheEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *embeddingCacheRepo) SelectStale(dbc dbctx.Context, tenantID uuid.UUID, olderThan time.Time, limit int) ([]StaleEntry, error) {
	if limit < 1 {
		limit = 1
	}
	var rows []StaleEntry
	err := r.conn(dbc).
		Model(&domain.EmbeddingCacheEntry{}).
		Select("id, model").
		Where("tenant_id = ? AND hit_count = 0 AND created_at <= ?", tenantID, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *embeddingCacheRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var deleted []domain.EmbeddingCacheEntry
	err := r.conn(dbc).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "model"}}}).
		Where("id IN ?", ids).
		Delete(&deleted).Error
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(deleted))
	for _, row := range deleted {
		label := row.Model
		if label == "" {
			label = "unknown"
		}
		labels = append(labels, label)
	}
	return labels, nil
}

func (r *embeddingCacheRepo) WithTenantEvictionLock(ctx context.Context, tenantID uuid.UUID, fn func(conn *gorm.DB) error) (bool, error) {
	key := advisoryLockKey(tenantID)
	acquired := false
	err := r.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var got bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&got).Error; err != nil {
			return err
		}
		if !got {
			return nil
		}
		acquired = true
		defer func() {
			// Unlock on the same session, even when fn fails.
			_ = conn.Exec("SELECT pg_advisory_unlock(?)", key).Error
		}()
		return fn(conn)
	})
	return acquired, err
}

// advisoryLockKey is the lower 63 bits of the tenant UUID's 128-bit integer
// value. The scheme is preserved across versions so concurrent deployments
// contend on the same key.
func advisoryLockKey(tenantID uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(tenantID[8:16]) & 0x7FFFFFFFFFFFFFFF)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
