package repository

import (
	"context"

	"taxengine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegressionAuditRepository interface {
	// UpsertBatch overwrites the last-run outcome for each case, keyed by
	// (rulepack_id, case_id). Callers run it inside the install
	// transaction so audit rows and the rulepack land atomically.
	UpsertBatch(ctx context.Context, audits []model.RegressionAudit) error
	ListByRulepack(ctx context.Context, rulepackID uuid.UUID) ([]model.RegressionAudit, error)
}

type regressionAuditRepository struct {
	db *gorm.DB
}

func NewRegressionAuditRepository(db *gorm.DB) RegressionAuditRepository {
	return &regressionAuditRepository{db: db}
}

func (r *regressionAuditRepository) UpsertBatch(ctx context.Context, audits []model.RegressionAudit) error {
	if len(audits) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rulepack_id"}, {Name: "case_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "expected_amount", "actual_amount", "error", "ran_at", "updated_at",
			}),
		}).
		Create(&audits).Error
}

func (r *regressionAuditRepository) ListByRulepack(ctx context.Context, rulepackID uuid.UUID) ([]model.RegressionAudit, error) {
	var audits []model.RegressionAudit
	if err := GetDB(ctx, r.db).
		Where("rulepack_id = ?", rulepackID).
		Order("case_id").
		Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}
