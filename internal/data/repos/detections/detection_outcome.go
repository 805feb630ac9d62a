package detections

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

type DetectionOutcomeRepo interface {
	Create(dbc dbctx.Context, outcome *domain.PlatformDetectionOutcome) error
	GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.PlatformDetectionOutcome, error)
}

type detectionOutcomeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDetectionOutcomeRepo(db *gorm.DB, baseLog *logger.Logger) DetectionOutcomeRepo {
	return &detectionOutcomeRepo{db: db, log: baseLog.With("repo", "DetectionOutcomeRepo")}
}

func (r *detectionOutcomeRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *detectionOutcomeRepo) Create(dbc dbctx.Context, outcome *domain.PlatformDetectionOutcome) error {
	return r.conn(dbc).Create(outcome).Error
}

func (r *detectionOutcomeRepo) GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.PlatformDetectionOutcome, error) {
	var outcome domain.PlatformDetectionOutcome
	err := r.conn(dbc).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		First(&outcome).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}
