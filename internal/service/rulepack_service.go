package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"taxengine/internal/engine"
	"taxengine/internal/model"
	"taxengine/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRulepackNotFound means no persisted or builtin rulepack covers the
// requested jurisdiction/year. Callers must surface it — never default to a
// zero-tax result.
var ErrRulepackNotFound = errors.New("no rulepack found for jurisdiction/year")

// --- DTOs ---

type ResolveOptions struct {
	Status          string // restrict to one status, empty = ACTIVE+PENDING
	IncludeInactive bool   // consider DEPRECATED rows too
}

type RulepackListItem struct {
	ID               string `json:"id"`
	JurisdictionCode string `json:"jurisdiction_code"`
	Country          string `json:"country"`
	Year             int    `json:"year"`
	Version          string `json:"version"`
	Status           string `json:"status"`
	Checksum         string `json:"checksum"`
	RegressionPassed int    `json:"regression_passed"`
	RegressionFailed int    `json:"regression_failed"`
	ActivatedAt      *string `json:"activated_at"`
	CreatedAt        string `json:"created_at"`
}

// --- Interface ---

// RulepackService is the rulepack store: it resolves definitions from the
// persisted table with the compiled-in registry as fallback, and serves
// the admin listing surface.
type RulepackService interface {
	Resolve(ctx context.Context, jurisdictionCode string, year int, opts ResolveOptions) (*engine.Rulepack, error)
	Get(ctx context.Context, id string) (*model.Rulepack, error)
	List(ctx context.Context, filter repository.RulepackFilter) ([]RulepackListItem, int64, error)
}

type rulepackService struct {
	repo    repository.RulepackRepository
	builtin []engine.Rulepack
}

// NewRulepackService builds the store. builtin is the immutable fallback
// registry constructed once at process start.
func NewRulepackService(repo repository.RulepackRepository, builtin []engine.Rulepack) RulepackService {
	return &rulepackService{repo: repo, builtin: builtin}
}

// --- Implementation ---

func (s *rulepackService) Resolve(ctx context.Context, jurisdictionCode string, year int, opts ResolveOptions) (*engine.Rulepack, error) {
	code := strings.ToUpper(strings.TrimSpace(jurisdictionCode))
	if code == "" {
		return nil, fmt.Errorf("jurisdiction code is required")
	}

	statuses := resolveStatuses(opts)

	row, err := s.repo.FindBest(ctx, code, year, statuses)
	if err == nil {
		def := row.Definition()
		return &def, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query rulepacks: %w", err)
	}

	// Builtins are always ACTIVE; a status filter that excludes ACTIVE
	// cannot be satisfied by the registry.
	if len(statuses) > 0 && !containsStatus(statuses, model.RulepackStatusActive) {
		return nil, ErrRulepackNotFound
	}

	if pack := s.resolveBuiltin(code, year); pack != nil {
		// A builtin hit signals a missing persisted definition — an
		// operational gap worth surfacing.
		log.Printf("rulepack resolve: falling back to builtin registry for %s year %d (version %s)", code, year, pack.Version)
		return pack, nil
	}

	return nil, ErrRulepackNotFound
}

// resolveBuiltin applies the same ordering rule as the persisted query:
// year <= requested, highest year wins, version string as tiebreak.
func (s *rulepackService) resolveBuiltin(code string, year int) *engine.Rulepack {
	var candidates []engine.Rulepack
	for _, pack := range s.builtin {
		if strings.EqualFold(pack.JurisdictionCode, code) && pack.Year <= year {
			candidates = append(candidates, pack)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Year != candidates[j].Year {
			return candidates[i].Year > candidates[j].Year
		}
		return candidates[i].Version > candidates[j].Version
	})
	best := candidates[0]
	return &best
}

func (s *rulepackService) Get(ctx context.Context, id string) (*model.Rulepack, error) {
	packID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid rulepack id: %w", err)
	}
	row, err := s.repo.FindByID(ctx, packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRulepackNotFound
		}
		return nil, fmt.Errorf("failed to fetch rulepack: %w", err)
	}
	return row, nil
}

func (s *rulepackService) List(ctx context.Context, filter repository.RulepackFilter) ([]RulepackListItem, int64, error) {
	if filter.JurisdictionCode != "" {
		filter.JurisdictionCode = strings.ToUpper(filter.JurisdictionCode)
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rulepacks: %w", err)
	}

	items := make([]RulepackListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRulepackListItem(row))
	}
	return items, total, nil
}

// --- Helpers ---

func resolveStatuses(opts ResolveOptions) []string {
	if opts.Status != "" {
		return []string{strings.ToUpper(opts.Status)}
	}
	if opts.IncludeInactive {
		return nil
	}
	return []string{model.RulepackStatusActive, model.RulepackStatusPending}
}

func containsStatus(statuses []string, target string) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}

func toRulepackListItem(row model.Rulepack) RulepackListItem {
	item := RulepackListItem{
		ID:               row.ID.String(),
		JurisdictionCode: row.JurisdictionCode,
		Country:          row.Country,
		Year:             row.Year,
		Version:          row.Version,
		Status:           row.Status,
		Checksum:         row.Checksum,
		RegressionPassed: row.RegressionPassed,
		RegressionFailed: row.RegressionFailed,
		CreatedAt:        row.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if row.ActivatedAt != nil {
		s := row.ActivatedAt.Format("2006-01-02T15:04:05Z07:00")
		item.ActivatedAt = &s
	}
	return item
}
