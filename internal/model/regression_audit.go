package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegressionAudit stores the last-run outcome of one regression case for a
// rulepack. Rows are upserted inside the install transaction so an audit
// record never points at a rulepack that was not persisted.
type RegressionAudit struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RulepackID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_regression_case,priority:1;index" json:"rulepack_id"`
	Rulepack       *Rulepack        `gorm:"foreignKey:RulepackID;constraint:OnDelete:CASCADE" json:"rulepack,omitempty"`
	CaseID         string           `gorm:"type:varchar(100);not null;uniqueIndex:idx_regression_case,priority:2" json:"case_id"`
	Status         string           `gorm:"type:varchar(10);not null" json:"status"` // pass, fail, skipped
	ExpectedAmount decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"expected_amount"`
	ActualAmount   *decimal.Decimal `gorm:"type:decimal(18,4)" json:"actual_amount"`
	Error          string           `gorm:"type:text" json:"error,omitempty"`
	RanAt          time.Time        `gorm:"not null" json:"ran_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
