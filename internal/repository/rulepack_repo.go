package repository

import (
	"context"
	"time"

	"taxengine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RulepackFilter narrows List queries.
type RulepackFilter struct {
	JurisdictionCode string
	Status           string
	Year             int
	Page             int
	Limit            int
}

type RulepackRepository interface {
	// FindBest runs the resolution query: newest year not exceeding the
	// requested one, version as lexicographic tiebreak, optionally
	// restricted by status.
	FindBest(ctx context.Context, jurisdictionCode string, year int, statuses []string) (*model.Rulepack, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Rulepack, error)
	FindByKey(ctx context.Context, jurisdictionCode string, year int, version string) (*model.Rulepack, error)
	// Upsert inserts or overwrites the row keyed by (jurisdiction_code,
	// year, version). Lifecycle timestamps only move forward for the
	// status being written: activated_at when ACTIVE, deprecated_at when
	// DEPRECATED.
	Upsert(ctx context.Context, pack *model.Rulepack) error
	// UpdateRegressionSummary refreshes the pass/fail counters after a
	// standalone regression run.
	UpdateRegressionSummary(ctx context.Context, id uuid.UUID, passed, failed int) error
	// DeprecateOthers marks every other ACTIVE version for the same
	// (jurisdiction_code, year) as DEPRECATED.
	DeprecateOthers(ctx context.Context, jurisdictionCode string, year int, keepVersion string) (int64, error)
	List(ctx context.Context, filter RulepackFilter) ([]model.Rulepack, int64, error)
}

type rulepackRepository struct {
	db *gorm.DB
}

func NewRulepackRepository(db *gorm.DB) RulepackRepository {
	return &rulepackRepository{db: db}
}

func (r *rulepackRepository) FindBest(ctx context.Context, jurisdictionCode string, year int, statuses []string) (*model.Rulepack, error) {
	var pack model.Rulepack
	query := GetDB(ctx, r.db).
		Where("jurisdiction_code = ? AND year <= ?", jurisdictionCode, year)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("year DESC, version DESC").First(&pack).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *rulepackRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Rulepack, error) {
	var pack model.Rulepack
	if err := GetDB(ctx, r.db).First(&pack, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *rulepackRepository) FindByKey(ctx context.Context, jurisdictionCode string, year int, version string) (*model.Rulepack, error) {
	var pack model.Rulepack
	if err := GetDB(ctx, r.db).
		First(&pack, "jurisdiction_code = ? AND year = ? AND version = ?", jurisdictionCode, year, version).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *rulepackRepository) Upsert(ctx context.Context, pack *model.Rulepack) error {
	assignments := []string{
		"country", "region", "rules", "filing_types", "metadata",
		"filing_schemas", "nexus_thresholds", "regression_cases",
		"status", "checksum", "regression_passed", "regression_failed",
		"effective_from", "effective_to", "updated_at",
	}
	switch pack.Status {
	case model.RulepackStatusActive:
		assignments = append(assignments, "activated_at")
	case model.RulepackStatusDeprecated:
		assignments = append(assignments, "deprecated_at")
	}

	if err := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "jurisdiction_code"}, {Name: "year"}, {Name: "version"},
			},
			DoUpdates: clause.AssignmentColumns(assignments),
		}).
		Create(pack).Error; err != nil {
		return err
	}

	// On conflict the pre-existing row keeps its id; re-read so the caller
	// always sees the persisted identity.
	stored, err := r.FindByKey(ctx, pack.JurisdictionCode, pack.Year, pack.Version)
	if err != nil {
		return err
	}
	pack.ID = stored.ID
	pack.CreatedAt = stored.CreatedAt
	pack.ActivatedAt = stored.ActivatedAt
	pack.DeprecatedAt = stored.DeprecatedAt
	return nil
}

func (r *rulepackRepository) UpdateRegressionSummary(ctx context.Context, id uuid.UUID, passed, failed int) error {
	return GetDB(ctx, r.db).Model(&model.Rulepack{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"regression_passed": passed,
			"regression_failed": failed,
		}).Error
}

func (r *rulepackRepository) DeprecateOthers(ctx context.Context, jurisdictionCode string, year int, keepVersion string) (int64, error) {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.Rulepack{}).
		Where("jurisdiction_code = ? AND year = ? AND version != ? AND status = ?",
			jurisdictionCode, year, keepVersion, model.RulepackStatusActive).
		Updates(map[string]interface{}{
			"status":        model.RulepackStatusDeprecated,
			"deprecated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *rulepackRepository) List(ctx context.Context, filter RulepackFilter) ([]model.Rulepack, int64, error) {
	var packs []model.Rulepack
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Rulepack{})
	if filter.JurisdictionCode != "" {
		db = db.Where("jurisdiction_code = ?", filter.JurisdictionCode)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Year != 0 {
		db = db.Where("year = ?", filter.Year)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Order("jurisdiction_code, year DESC, version DESC").
		Offset(offset).Limit(filter.Limit).Find(&packs).Error; err != nil {
		return nil, 0, err
	}

	return packs, total, nil
}
