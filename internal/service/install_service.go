package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taxengine/internal/engine"
	"taxengine/internal/model"
	"taxengine/internal/repository"

	"github.com/google/uuid"
)

// InstallPolicy controls the regression gate. The value is recorded in the
// audit trail so operator logs are self-describing.
type InstallPolicy string

const (
	PolicyRequireCleanRegression InstallPolicy = "REQUIRE_CLEAN_REGRESSION"
	PolicyAllowFailures          InstallPolicy = "ALLOW_FAILURES"
)

// --- DTOs ---

type InstallOptions struct {
	TargetStatus string        // defaults to ACTIVE
	Policy       InstallPolicy // defaults to PolicyRequireCleanRegression
	UserID       string        // operator identity for the audit trail
}

type InstallReport struct {
	ID                    string                    `json:"id"`
	JurisdictionCode      string                    `json:"jurisdiction_code"`
	Year                  int                       `json:"year"`
	Version               string                    `json:"version"`
	Status                string                    `json:"status"`
	Checksum              string                    `json:"checksum"`
	RegressionSummary     engine.RegressionSummary  `json:"regression_summary"`
	Results               []engine.RegressionResult `json:"results"`
	Deprecated            int64                     `json:"deprecated"`
	RequiresManualSignoff bool                      `json:"requires_manual_signoff"`
}

// InstallError is returned when the regression gate blocks an install. It
// enumerates every failing case so an operator can judge whether the change
// is a true regression or an intentional behavior change needing updated
// fixtures.
type InstallError struct {
	Summary  engine.RegressionSummary
	Failures []engine.RegressionResult
}

func (e *InstallError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.CaseID)
	}
	return fmt.Sprintf("regression gate failed: %d of %d cases failed: %s",
		e.Summary.Failed, e.Summary.Total, strings.Join(ids, ", "))
}

// --- Interface ---

// InstallService is the installation pipeline: regression gate, checksum,
// atomic upsert plus per-case audit persistence, supersede handling.
type InstallService interface {
	Install(ctx context.Context, def engine.Rulepack, opts InstallOptions) (InstallReport, error)
}

// LifecycleBroadcaster receives serialized lifecycle events after a
// successful install. The websocket hub satisfies it.
type LifecycleBroadcaster interface {
	GetBroadcast() chan []byte
}

type installService struct {
	txManager repository.TransactionManager
	packRepo  repository.RulepackRepository
	auditRepo repository.RegressionAuditRepository
	logRepo   repository.AuditRepository
	hub       LifecycleBroadcaster // optional
}

func NewInstallService(
	txManager repository.TransactionManager,
	packRepo repository.RulepackRepository,
	auditRepo repository.RegressionAuditRepository,
	logRepo repository.AuditRepository,
	hub LifecycleBroadcaster,
) InstallService {
	return &installService{
		txManager: txManager,
		packRepo:  packRepo,
		auditRepo: auditRepo,
		logRepo:   logRepo,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *installService) Install(ctx context.Context, def engine.Rulepack, opts InstallOptions) (InstallReport, error) {
	def.JurisdictionCode = strings.ToUpper(strings.TrimSpace(def.JurisdictionCode))
	if def.JurisdictionCode == "" || def.Year == 0 || def.Version == "" {
		return InstallReport{}, fmt.Errorf("rulepack identity (jurisdiction_code, year, version) is required")
	}

	policy := opts.Policy
	if policy == "" {
		policy = PolicyRequireCleanRegression
	}
	targetStatus := strings.ToUpper(opts.TargetStatus)
	if targetStatus == "" {
		targetStatus = model.RulepackStatusActive
	}
	switch targetStatus {
	case model.RulepackStatusPending, model.RulepackStatusActive, model.RulepackStatusDeprecated:
	default:
		return InstallReport{}, fmt.Errorf("invalid target status %q", opts.TargetStatus)
	}

	// (1) Regression gate runs before anything is persisted.
	summary, results := engine.RunRegression(&def)
	if summary.Failed > 0 && policy == PolicyRequireCleanRegression {
		return InstallReport{}, &InstallError{Summary: summary, Failures: failedResults(results)}
	}

	// (2) Content checksum over rules + metadata.
	checksum, err := engine.Checksum(def.Rules, def.Metadata)
	if err != nil {
		return InstallReport{}, fmt.Errorf("failed to compute checksum: %w", err)
	}

	now := time.Now()
	row := model.RulepackFromDefinition(def)
	row.Status = targetStatus
	row.Checksum = checksum
	row.RegressionPassed = summary.Passed
	row.RegressionFailed = summary.Failed
	if targetStatus == model.RulepackStatusActive {
		row.ActivatedAt = &now
	}
	if targetStatus == model.RulepackStatusDeprecated {
		row.DeprecatedAt = &now
	}

	var deprecated int64

	// (3) Upsert, supersede, and audit persistence are one atomic unit: a
	// crash mid-way must leave either everything or nothing.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if upsertErr := s.packRepo.Upsert(txCtx, &row); upsertErr != nil {
			return fmt.Errorf("failed to upsert rulepack: %w", upsertErr)
		}

		if targetStatus == model.RulepackStatusActive {
			n, depErr := s.packRepo.DeprecateOthers(txCtx, row.JurisdictionCode, row.Year, row.Version)
			if depErr != nil {
				return fmt.Errorf("failed to deprecate superseded versions: %w", depErr)
			}
			deprecated = n
		}

		if auditErr := s.auditRepo.UpsertBatch(txCtx, toRegressionAudits(row.ID, results, now)); auditErr != nil {
			return fmt.Errorf("failed to persist regression audits: %w", auditErr)
		}

		s.writeInstallLog(txCtx, row, policy, summary, opts.UserID)
		return nil
	})
	if err != nil {
		return InstallReport{}, err
	}

	report := InstallReport{
		ID:                    row.ID.String(),
		JurisdictionCode:      row.JurisdictionCode,
		Year:                  row.Year,
		Version:               row.Version,
		Status:                row.Status,
		Checksum:              checksum,
		RegressionSummary:     summary,
		Results:               results,
		Deprecated:            deprecated,
		RequiresManualSignoff: summary.Total == 0,
	}

	s.broadcastLifecycleEvent(report)
	return report, nil
}

// --- Helpers ---

func failedResults(results []engine.RegressionResult) []engine.RegressionResult {
	var failed []engine.RegressionResult
	for _, r := range results {
		if r.Status == engine.RegressionFail {
			failed = append(failed, r)
		}
	}
	return failed
}

func toRegressionAudits(rulepackID uuid.UUID, results []engine.RegressionResult, ranAt time.Time) []model.RegressionAudit {
	audits := make([]model.RegressionAudit, 0, len(results))
	for _, r := range results {
		audit := model.RegressionAudit{
			RulepackID:     rulepackID,
			CaseID:         r.CaseID,
			Status:         r.Status,
			ExpectedAmount: r.Expected.TaxAmount,
			Error:          r.Error,
			RanAt:          ranAt,
		}
		if r.Actual != nil {
			actual := r.Actual.TaxAmount
			audit.ActualAmount = &actual
		}
		audits = append(audits, audit)
	}
	return audits
}

func (s *installService) writeInstallLog(ctx context.Context, row model.Rulepack, policy InstallPolicy, summary engine.RegressionSummary, userID string) {
	details, _ := json.Marshal(map[string]interface{}{
		"jurisdiction_code": row.JurisdictionCode,
		"year":              row.Year,
		"version":           row.Version,
		"status":            row.Status,
		"checksum":          row.Checksum,
		"policy":            policy,
		"regression":        summary,
	})

	action := model.ActionInstallRulepack
	if row.Status == model.RulepackStatusActive {
		action = model.ActionActivateRulepack
	}

	entry := model.AuditLog{
		Action:     action,
		EntityID:   row.ID.String(),
		EntityName: fmt.Sprintf("%s/%d/%s", row.JurisdictionCode, row.Year, row.Version),
		Details:    string(details),
	}
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			entry.UserID = &parsed
		}
	}

	// Best-effort operator log — don't fail the install if logging fails
	_ = s.logRepo.Log(ctx, &entry)
}

func (s *installService) broadcastLifecycleEvent(report InstallReport) {
	if s.hub == nil {
		return
	}
	event, err := json.Marshal(map[string]interface{}{
		"event":             "rulepack_" + strings.ToLower(report.Status),
		"rulepack_id":       report.ID,
		"jurisdiction_code": report.JurisdictionCode,
		"year":              report.Year,
		"version":           report.Version,
		"checksum":          report.Checksum,
	})
	if err != nil {
		return
	}
	select {
	case s.hub.GetBroadcast() <- event:
	default:
		// No listeners or a saturated hub never blocks an install.
	}
}
