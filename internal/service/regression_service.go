package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taxengine/internal/engine"
	"taxengine/internal/model"
	"taxengine/internal/repository"
)

// --- DTOs ---

type RegressionReport struct {
	RulepackID string                    `json:"rulepack_id"`
	Summary    engine.RegressionSummary  `json:"summary"`
	Results    []engine.RegressionResult `json:"results"`
}

// --- Interface ---

// RegressionService replays a stored rulepack's regression suite outside
// the install path — scheduled compliance verification uses it to detect
// drift between persisted definitions and expected behavior.
type RegressionService interface {
	RunForRulepack(ctx context.Context, id string) (RegressionReport, error)
}

type regressionService struct {
	txManager repository.TransactionManager
	rulepacks RulepackService
	packRepo  repository.RulepackRepository
	auditRepo repository.RegressionAuditRepository
	logRepo   repository.AuditRepository
}

func NewRegressionService(
	txManager repository.TransactionManager,
	rulepacks RulepackService,
	packRepo repository.RulepackRepository,
	auditRepo repository.RegressionAuditRepository,
	logRepo repository.AuditRepository,
) RegressionService {
	return &regressionService{
		txManager: txManager,
		rulepacks: rulepacks,
		packRepo:  packRepo,
		auditRepo: auditRepo,
		logRepo:   logRepo,
	}
}

// --- Implementation ---

func (s *regressionService) RunForRulepack(ctx context.Context, id string) (RegressionReport, error) {
	row, err := s.rulepacks.Get(ctx, id)
	if err != nil {
		return RegressionReport{}, err
	}

	def := row.Definition()
	summary, results := engine.RunRegression(&def)
	now := time.Now()

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.packRepo.UpdateRegressionSummary(txCtx, row.ID, summary.Passed, summary.Failed); updateErr != nil {
			return fmt.Errorf("failed to update regression summary: %w", updateErr)
		}
		if auditErr := s.auditRepo.UpsertBatch(txCtx, toRegressionAudits(row.ID, results, now)); auditErr != nil {
			return fmt.Errorf("failed to persist regression audits: %w", auditErr)
		}

		details, _ := json.Marshal(summary)
		_ = s.logRepo.Log(txCtx, &model.AuditLog{
			Action:     model.ActionRunRegression,
			EntityID:   row.ID.String(),
			EntityName: fmt.Sprintf("%s/%d/%s", row.JurisdictionCode, row.Year, row.Version),
			Details:    string(details),
		})
		return nil
	})
	if err != nil {
		return RegressionReport{}, err
	}

	return RegressionReport{
		RulepackID: row.ID.String(),
		Summary:    summary,
		Results:    results,
	}, nil
}
