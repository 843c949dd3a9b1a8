// Package engine implements the pure tax-calculation core: rulepack
// definitions, metadata-driven strategy dispatch, filing-box projection,
// regression replay, and checksum computation. The package performs no I/O
// and holds no mutable state — every function is safe for concurrent use.
package engine

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type enum constants
const (
	TxnTypeIncome          = "income"
	TxnTypeSale            = "sale"
	TxnTypePurchase        = "purchase"
	TxnTypeCorporateIncome = "corporate_income"
	TxnTypePayroll         = "payroll"
)

// Strategy identifies which tax-math strategy produced a result.
type Strategy string

const (
	StrategyProgressiveIncome Strategy = "progressive_income"
	StrategyFlatIncome        Strategy = "flat_income"
	StrategySalesTax          Strategy = "sales_tax"
	StrategyVAT               Strategy = "vat"
	StrategyFallback          Strategy = "fallback"
)

// Rulepack is the immutable definition of a jurisdiction's tax rules for a
// given year and version. It is the unit of resolution, evaluation, and
// installation. Once returned by the store it must be treated as read-only.
type Rulepack struct {
	JurisdictionCode string             `json:"jurisdiction_code"`
	Country          string             `json:"country"`
	Region           string             `json:"region,omitempty"`
	Year             int                `json:"year"`
	Version          string             `json:"version"`
	Status           string             `json:"status,omitempty"`
	Rules            RuleList           `json:"rules"`
	FilingTypes      StringList         `json:"filing_types,omitempty"`
	Metadata         Metadata           `json:"metadata"`
	FilingSchemas    FilingSchemaList   `json:"filing_schemas,omitempty"`
	NexusThresholds  NexusThresholdList `json:"nexus_thresholds,omitempty"`
	RegressionCases  RegressionCaseList `json:"regression_cases,omitempty"`
	Checksum         string             `json:"checksum,omitempty"`
	EffectiveFrom    *time.Time         `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time         `json:"effective_to,omitempty"`
}

// Rule is one entry in a rulepack's ordered rule list. Condition is a
// jsonlogic document evaluated against the transaction; rules are consulted
// by the fallback strategy in descending priority order.
type Rule struct {
	ID              string                 `json:"id"`
	Description     string                 `json:"description,omitempty"`
	Condition       map[string]interface{} `json:"condition,omitempty"`
	Action          RuleAction             `json:"action"`
	Priority        int                    `json:"priority"`
	IsDeterministic bool                   `json:"is_deterministic"`
}

// RuleAction carries the effect of a matched rule.
type RuleAction struct {
	Rate decimal.Decimal `json:"rate"`
}

// Bracket is one span of a progressive bracket ladder. A nil Max means the
// bracket is unbounded and consumes all remaining income.
type Bracket struct {
	Min  decimal.Decimal  `json:"min"`
	Max  *decimal.Decimal `json:"max"`
	Rate decimal.Decimal  `json:"rate"`
}

// FilingSchema describes one official filing form and how its boxes are
// computed from a calculation result.
type FilingSchema struct {
	FormName string      `json:"form_name"`
	Boxes    []FilingBox `json:"boxes"`
}

// FilingBox maps a box identifier to a calculation directive. Supported
// directives: "amount", "taxAmount", "taxableIncome", "context.<key>".
type FilingBox struct {
	BoxID       string `json:"box_id"`
	Description string `json:"description,omitempty"`
	Calculation string `json:"calculation"`
}

// NexusThreshold is a registration trigger carried as rulepack data. It is
// not evaluated by this engine.
type NexusThreshold struct {
	Region           string           `json:"region"`
	RevenueThreshold decimal.Decimal  `json:"revenue_threshold"`
	TransactionCount *int             `json:"transaction_count,omitempty"`
	Note             string           `json:"note,omitempty"`
}

// RegressionCase is a fixture input/expected-output pair embedded in a
// rulepack, used to gate its activation.
type RegressionCase struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Skip        bool        `json:"skip,omitempty"`
	Transaction Transaction `json:"transaction"`
	Expected    Expectation `json:"expected"`
}

// Expectation holds a regression case's expected values. TaxRate and
// FilingBoxes are optional; when absent they are not compared.
type Expectation struct {
	TaxAmount   decimal.Decimal            `json:"tax_amount"`
	TaxRate     *decimal.Decimal           `json:"tax_rate,omitempty"`
	FilingBoxes map[string]decimal.Decimal `json:"filing_boxes,omitempty"`
}

// Transaction is the evaluation input: a single income, sale, or purchase
// event to be taxed.
type Transaction struct {
	Amount       decimal.Decimal        `json:"amount"`
	Type         string                 `json:"type"`
	FilingStatus string                 `json:"filing_status,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Deductions   decimal.Decimal        `json:"deductions,omitempty"`
	Credits      decimal.Decimal        `json:"credits,omitempty"`
	StateCode    string                 `json:"state_code,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// CalculationResult is the evaluator output. Details carries intermediate
// values (taxable income, resolved rate components) for explainability.
type CalculationResult struct {
	TaxRate          decimal.Decimal            `json:"tax_rate"`
	TaxAmount        decimal.Decimal            `json:"tax_amount"`
	RuleID           string                     `json:"rule_id"`
	JurisdictionCode string                     `json:"jurisdiction_code"`
	RulepackVersion  string                     `json:"rulepack_version"`
	FilingBoxes      map[string]decimal.Decimal `json:"filing_boxes,omitempty"`
	Details          map[string]decimal.Decimal `json:"details,omitempty"`
}

// Regression result status enum constants
const (
	RegressionPass    = "pass"
	RegressionFail    = "fail"
	RegressionSkipped = "skipped"
)

// RegressionResult is the outcome of replaying one regression case.
type RegressionResult struct {
	CaseID   string                     `json:"case_id"`
	Status   string                     `json:"status"`
	Expected Expectation                `json:"expected"`
	Actual   *CalculationResult         `json:"actual,omitempty"`
	Diffs    map[string]decimal.Decimal `json:"diffs,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// RegressionSummary aggregates a regression run.
type RegressionSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// --- jsonb column wrappers ---
//
// The list types below implement driver.Valuer and sql.Scanner so the GORM
// models can persist them as jsonb columns without a parallel set of
// persistence structs.

type (
	RuleList           []Rule
	StringList         []string
	FilingSchemaList   []FilingSchema
	NexusThresholdList []NexusThreshold
	RegressionCaseList []RegressionCase
)

func jsonbValue(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func jsonbScan(dest interface{}, src interface{}) error {
	switch raw := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (l RuleList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *RuleList) Scan(src interface{}) error  { return jsonbScan(l, src) }

func (l StringList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *StringList) Scan(src interface{}) error  { return jsonbScan(l, src) }

func (l FilingSchemaList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *FilingSchemaList) Scan(src interface{}) error  { return jsonbScan(l, src) }

func (l NexusThresholdList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *NexusThresholdList) Scan(src interface{}) error  { return jsonbScan(l, src) }

func (l RegressionCaseList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *RegressionCaseList) Scan(src interface{}) error  { return jsonbScan(l, src) }

func (m Metadata) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *Metadata) Scan(src interface{}) error  { return jsonbScan(m, src) }
