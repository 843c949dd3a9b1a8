package model

import (
	"time"

	"taxengine/internal/engine"

	"github.com/google/uuid"
)

// RulepackStatus enum constants
const (
	RulepackStatusPending    = "PENDING"
	RulepackStatusActive     = "ACTIVE"
	RulepackStatusDeprecated = "DEPRECATED"
)

// Rulepack persists a versioned tax rule definition for one jurisdiction
// and year. The (jurisdiction_code, year, version) triple is globally
// unique; at most one row per (jurisdiction_code, year) is ACTIVE in
// normal operation.
type Rulepack struct {
	ID               uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JurisdictionCode string                    `gorm:"type:varchar(10);not null;uniqueIndex:idx_rulepack_key,priority:1;index" json:"jurisdiction_code"`
	Year             int                       `gorm:"not null;uniqueIndex:idx_rulepack_key,priority:2" json:"year"`
	Version          string                    `gorm:"type:varchar(30);not null;uniqueIndex:idx_rulepack_key,priority:3" json:"version"`
	Country          string                    `gorm:"type:varchar(60)" json:"country"`
	Region           string                    `gorm:"type:varchar(60)" json:"region,omitempty"`
	Status           string                    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Rules            engine.RuleList           `gorm:"type:jsonb" json:"rules"`
	FilingTypes      engine.StringList         `gorm:"type:jsonb" json:"filing_types"`
	Metadata         engine.Metadata           `gorm:"type:jsonb" json:"metadata"`
	FilingSchemas    engine.FilingSchemaList   `gorm:"type:jsonb" json:"filing_schemas"`
	NexusThresholds  engine.NexusThresholdList `gorm:"type:jsonb" json:"nexus_thresholds"`
	RegressionCases  engine.RegressionCaseList `gorm:"type:jsonb" json:"regression_cases"`
	Checksum         string                    `gorm:"type:varchar(64);not null" json:"checksum"`
	RegressionPassed int                       `gorm:"not null;default:0" json:"regression_passed"`
	RegressionFailed int                       `gorm:"not null;default:0" json:"regression_failed"`
	EffectiveFrom    *time.Time                `gorm:"type:date" json:"effective_from"`
	EffectiveTo      *time.Time                `gorm:"type:date" json:"effective_to"`
	ActivatedAt      *time.Time                `json:"activated_at"`
	DeprecatedAt     *time.Time                `json:"deprecated_at"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Definition builds the immutable engine value for evaluation.
func (p *Rulepack) Definition() engine.Rulepack {
	return engine.Rulepack{
		JurisdictionCode: p.JurisdictionCode,
		Country:          p.Country,
		Region:           p.Region,
		Year:             p.Year,
		Version:          p.Version,
		Status:           p.Status,
		Rules:            p.Rules,
		FilingTypes:      p.FilingTypes,
		Metadata:         p.Metadata,
		FilingSchemas:    p.FilingSchemas,
		NexusThresholds:  p.NexusThresholds,
		RegressionCases:  p.RegressionCases,
		Checksum:         p.Checksum,
		EffectiveFrom:    p.EffectiveFrom,
		EffectiveTo:      p.EffectiveTo,
	}
}

// RulepackFromDefinition builds a persistable row from an engine value.
// Lifecycle columns (status, checksum, timestamps) are stamped by the
// install pipeline, not copied here.
func RulepackFromDefinition(def engine.Rulepack) Rulepack {
	return Rulepack{
		JurisdictionCode: def.JurisdictionCode,
		Year:             def.Year,
		Version:          def.Version,
		Country:          def.Country,
		Region:           def.Region,
		Rules:            def.Rules,
		FilingTypes:      def.FilingTypes,
		Metadata:         def.Metadata,
		FilingSchemas:    def.FilingSchemas,
		NexusThresholds:  def.NexusThresholds,
		RegressionCases:  def.RegressionCases,
		EffectiveFrom:    def.EffectiveFrom,
		EffectiveTo:      def.EffectiveTo,
	}
}
