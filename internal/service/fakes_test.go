package service

import (
	"context"
	"sort"
	"time"

	"taxengine/internal/model"
	"taxengine/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repository fakes. They mirror the SQL semantics of the real
// repositories closely enough for service-level tests: resolution ordering,
// upsert-on-key, supersede updates, and transactional rollback.

type fakeRulepackRepo struct {
	packs []model.Rulepack
	err   error // injected failure for every call
}

func (f *fakeRulepackRepo) FindBest(_ context.Context, jurisdictionCode string, year int, statuses []string) (*model.Rulepack, error) {
	if f.err != nil {
		return nil, f.err
	}
	var candidates []model.Rulepack
	for _, p := range f.packs {
		if p.JurisdictionCode != jurisdictionCode || p.Year > year {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, p.Status) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Year != candidates[j].Year {
			return candidates[i].Year > candidates[j].Year
		}
		return candidates[i].Version > candidates[j].Version
	})
	best := candidates[0]
	return &best, nil
}

func (f *fakeRulepackRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Rulepack, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.packs {
		if p.ID == id {
			row := p
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRulepackRepo) FindByKey(_ context.Context, jurisdictionCode string, year int, version string) (*model.Rulepack, error) {
	for _, p := range f.packs {
		if p.JurisdictionCode == jurisdictionCode && p.Year == year && p.Version == version {
			row := p
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRulepackRepo) Upsert(_ context.Context, pack *model.Rulepack) error {
	if f.err != nil {
		return f.err
	}
	for i, p := range f.packs {
		if p.JurisdictionCode == pack.JurisdictionCode && p.Year == pack.Year && p.Version == pack.Version {
			pack.ID = p.ID
			pack.CreatedAt = p.CreatedAt
			if pack.Status != model.RulepackStatusActive && p.ActivatedAt != nil {
				pack.ActivatedAt = p.ActivatedAt
			}
			if pack.Status != model.RulepackStatusDeprecated && p.DeprecatedAt != nil {
				pack.DeprecatedAt = p.DeprecatedAt
			}
			f.packs[i] = *pack
			return nil
		}
	}
	if pack.ID == uuid.Nil {
		pack.ID = uuid.New()
	}
	pack.CreatedAt = time.Now()
	f.packs = append(f.packs, *pack)
	return nil
}

func (f *fakeRulepackRepo) UpdateRegressionSummary(_ context.Context, id uuid.UUID, passed, failed int) error {
	if f.err != nil {
		return f.err
	}
	for i := range f.packs {
		if f.packs[i].ID == id {
			f.packs[i].RegressionPassed = passed
			f.packs[i].RegressionFailed = failed
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRulepackRepo) DeprecateOthers(_ context.Context, jurisdictionCode string, year int, keepVersion string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	now := time.Now()
	var n int64
	for i := range f.packs {
		p := &f.packs[i]
		if p.JurisdictionCode == jurisdictionCode && p.Year == year &&
			p.Version != keepVersion && p.Status == model.RulepackStatusActive {
			p.Status = model.RulepackStatusDeprecated
			p.DeprecatedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeRulepackRepo) List(_ context.Context, filter repository.RulepackFilter) ([]model.Rulepack, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	var rows []model.Rulepack
	for _, p := range f.packs {
		if filter.JurisdictionCode != "" && p.JurisdictionCode != filter.JurisdictionCode {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Year != 0 && p.Year != filter.Year {
			continue
		}
		rows = append(rows, p)
	}
	return rows, int64(len(rows)), nil
}

type fakeRegressionAuditRepo struct {
	audits []model.RegressionAudit
	err    error
}

func (f *fakeRegressionAuditRepo) UpsertBatch(_ context.Context, audits []model.RegressionAudit) error {
	if f.err != nil {
		return f.err
	}
next:
	for _, a := range audits {
		for i, existing := range f.audits {
			if existing.RulepackID == a.RulepackID && existing.CaseID == a.CaseID {
				f.audits[i] = a
				continue next
			}
		}
		f.audits = append(f.audits, a)
	}
	return nil
}

func (f *fakeRegressionAuditRepo) ListByRulepack(_ context.Context, rulepackID uuid.UUID) ([]model.RegressionAudit, error) {
	var out []model.RegressionAudit
	for _, a := range f.audits {
		if a.RulepackID == rulepackID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
	err     error
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, _, _ int) ([]model.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

// fakeTxManager snapshots the fake stores before running the unit of work
// and restores them when it errors, matching the rollback guarantee of the
// real GORM transaction.
type fakeTxManager struct {
	packs  *fakeRulepackRepo
	audits *fakeRegressionAuditRepo
	logs   *fakeAuditRepo
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	packSnap := append([]model.Rulepack(nil), m.packs.packs...)
	auditSnap := append([]model.RegressionAudit(nil), m.audits.audits...)
	logSnap := append([]model.AuditLog(nil), m.logs.entries...)

	if err := fn(ctx); err != nil {
		m.packs.packs = packSnap
		m.audits.audits = auditSnap
		m.logs.entries = logSnap
		return err
	}
	return nil
}

type fakeHub struct {
	broadcast chan []byte
}

func newFakeHub() *fakeHub {
	return &fakeHub{broadcast: make(chan []byte, 4)}
}

func (h *fakeHub) GetBroadcast() chan []byte { return h.broadcast }
