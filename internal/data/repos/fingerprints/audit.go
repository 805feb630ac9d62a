package fingerprints

import (
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

type CrossWorkspaceAuditRepo interface {
	Create(dbc dbctx.Context, audit *domain.CrossWorkspaceAudit) error
}

type crossWorkspaceAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCrossWorkspaceAuditRepo(db *gorm.DB, baseLog *logger.Logger) CrossWorkspaceAuditRepo {
	return &crossWorkspaceAuditRepo{db: db, log: baseLog.With("repo", "CrossWorkspaceAuditRepo")}
}

func (r *crossWorkspaceAuditRepo) Create(dbc dbctx.Context, audit *domain.CrossWorkspaceAudit) error {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx).Create(audit).Error
}
