package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionInstallRulepack   = "INSTALL_RULEPACK"
	ActionActivateRulepack  = "ACTIVATE_RULEPACK"
	ActionDeprecateRulepack = "DEPRECATE_RULEPACK"
	ActionRunRegression     = "RUN_REGRESSION"
)

// AuditLog tracks Who, What, and When for rulepack lifecycle changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated job
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Rulepack id or jurisdiction key
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
