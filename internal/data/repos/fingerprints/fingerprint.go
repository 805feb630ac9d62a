package fingerprints

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

type IncidentFingerprintRepo interface {
	Create(dbc dbctx.Context, fp *domain.IncidentFingerprint) error
	GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*domain.IncidentFingerprint, error)
	GetBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*domain.IncidentFingerprint, error)
	// MarkUnavailable demotes the fingerprint to status "missing" and records
	// a guardrail note under the "fingerprint" key, in one update.
	MarkUnavailable(dbc dbctx.Context, id uuid.UUID, note string) error
}

type incidentFingerprintRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIncidentFingerprintRepo(db *gorm.DB, baseLog *logger.Logger) IncidentFingerprintRepo {
	return &incidentFingerprintRepo{db: db, log: baseLog.With("repo", "IncidentFingerprintRepo")}
}

func (r *incidentFingerprintRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *incidentFingerprintRepo) Create(dbc dbctx.Context, fp *domain.IncidentFingerprint) error {
	return r.conn(dbc).Create(fp).Error
}

func (r *incidentFingerprintRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*domain.IncidentFingerprint, error) {
	var fp domain.IncidentFingerprint
	err := r.conn(dbc).Where("session_id = ?", sessionID).First(&fp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

func (r *incidentFingerprintRepo) GetBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*domain.IncidentFingerprint, error) {
	var rows []*domain.IncidentFingerprint
	if len(sessionIDs) == 0 {
		return rows, nil
	}
	if err := r.conn(dbc).Where("session_id IN ?", sessionIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *incidentFingerprintRepo) MarkUnavailable(dbc dbctx.Context, id uuid.UUID, note string) error {
	return r.conn(dbc).
		Model(&domain.IncidentFingerprint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"fingerprint_status": domain.FingerprintMissing,
			"safeguard_notes": gorm.Expr(
				`jsonb_set(coalesce(safeguard_notes, '{}'::jsonb), '{fingerprint}', to_jsonb(?::text))`, note),
			"updated_at": time.Now().UTC(),
		}).Error
}
