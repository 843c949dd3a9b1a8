package engine

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Metadata is the discriminated parameter bag attached to a rulepack. Each
// tax shape carries its own strongly-typed parameter struct; at most the
// shapes relevant to the jurisdiction are populated. Strategy selection
// switches exhaustively over the resolved shape instead of probing loose
// maps at runtime.
type Metadata struct {
	IncomeTax *IncomeTaxParams `json:"income_tax,omitempty"`
	SalesTax  *SalesTaxParams  `json:"sales_tax,omitempty"`
	VAT       *VATParams       `json:"vat,omitempty"`
	Payroll   *PayrollParams   `json:"payroll,omitempty"`
}

// IncomeTaxParams configures the progressive and flat income strategies.
// Either Brackets or FlatRate must be set; when both are present the
// bracket ladder wins.
type IncomeTaxParams struct {
	Brackets          BracketSet       `json:"brackets,omitempty"`
	StandardDeduction DeductionSet     `json:"standard_deduction,omitempty"`
	FlatRate          *decimal.Decimal `json:"flat_rate,omitempty"`
}

// SalesTaxParams configures the sales/use tax strategy. Locality rates are
// additive on top of the base rate; a reduced category replaces the
// computed rate entirely.
type SalesTaxParams struct {
	BaseRate          decimal.Decimal            `json:"base_rate"`
	LocalityRates     map[string]decimal.Decimal `json:"locality_rates,omitempty"`
	ReducedCategories []string                   `json:"reduced_categories,omitempty"`
	ReducedRate       *decimal.Decimal           `json:"reduced_rate,omitempty"`
}

// VATParams configures the VAT strategy.
type VATParams struct {
	StandardRate        decimal.Decimal  `json:"standard_rate"`
	ReducedRate         *decimal.Decimal `json:"reduced_rate,omitempty"`
	ReducedCategories   []string         `json:"reduced_categories,omitempty"`
	ZeroRatedCategories []string         `json:"zero_rated_categories,omitempty"`
}

// PayrollParams is carried as rulepack data for payroll-aware callers.
// Payroll transactions evaluate through the fallback strategy; these
// parameters are not consulted by the evaluator itself.
type PayrollParams struct {
	EmployeeRate decimal.Decimal  `json:"employee_rate"`
	EmployerRate decimal.Decimal  `json:"employer_rate"`
	WageBase     *decimal.Decimal `json:"wage_base,omitempty"`
}

// BracketSet holds a bracket ladder that is either status-independent (a
// flat array in the source JSON) or keyed by filing status (an object).
// Both shapes round-trip through JSON unchanged so checksums stay stable.
type BracketSet struct {
	Flat     []Bracket
	ByStatus map[string][]Bracket
}

// Resolve returns the ladder for the given filing status, sorted by
// ascending lower bound. A status-independent ladder applies to every
// status; a keyed ladder falls back to "single" when the requested status
// has no entry. ok is false when no ladder applies at all.
func (b BracketSet) Resolve(filingStatus string) ([]Bracket, bool) {
	ladder := b.Flat
	if ladder == nil && b.ByStatus != nil {
		var found bool
		ladder, found = b.ByStatus[filingStatus]
		if !found {
			ladder, found = b.ByStatus[FilingStatusSingle]
		}
		if !found {
			return nil, false
		}
	}
	if ladder == nil {
		return nil, false
	}
	sorted := make([]Bracket, len(ladder))
	copy(sorted, ladder)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Min.LessThan(sorted[j].Min)
	})
	return sorted, true
}

// IsZero reports whether no ladder of any shape is configured.
func (b BracketSet) IsZero() bool {
	return b.Flat == nil && len(b.ByStatus) == 0
}

func (b BracketSet) MarshalJSON() ([]byte, error) {
	if b.Flat != nil {
		return json.Marshal(b.Flat)
	}
	if b.ByStatus != nil {
		return json.Marshal(b.ByStatus)
	}
	return []byte("null"), nil
}

func (b *BracketSet) UnmarshalJSON(data []byte) error {
	*b = BracketSet{}
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &b.Flat)
	}
	return json.Unmarshal(data, &b.ByStatus)
}

// DeductionSet holds a standard deduction that is either a single number or
// an object keyed by filing status.
type DeductionSet struct {
	Flat     *decimal.Decimal
	ByStatus map[string]decimal.Decimal
}

// Resolve returns the deduction for the given filing status, defaulting to
// the "single" entry and then to zero.
func (d DeductionSet) Resolve(filingStatus string) decimal.Decimal {
	if d.Flat != nil {
		return *d.Flat
	}
	if d.ByStatus != nil {
		if v, ok := d.ByStatus[filingStatus]; ok {
			return v
		}
		if v, ok := d.ByStatus[FilingStatusSingle]; ok {
			return v
		}
	}
	return decimal.Zero
}

func (d DeductionSet) MarshalJSON() ([]byte, error) {
	if d.Flat != nil {
		return json.Marshal(d.Flat)
	}
	if d.ByStatus != nil {
		return json.Marshal(d.ByStatus)
	}
	return []byte("null"), nil
}

func (d *DeductionSet) UnmarshalJSON(data []byte) error {
	*d = DeductionSet{}
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, &d.ByStatus)
	}
	return json.Unmarshal(data, &d.Flat)
}

// FilingStatusSingle is the default filing status for income strategies.
const FilingStatusSingle = "single"

// resolveStrategy picks the tax-math strategy for a transaction type given
// the metadata shapes present on the rulepack. Sales tax takes precedence
// over VAT for sale/purchase transactions when both shapes are configured.
func resolveStrategy(txnType string, md Metadata) Strategy {
	switch txnType {
	case TxnTypeIncome, TxnTypeCorporateIncome:
		if md.IncomeTax != nil {
			if md.IncomeTax.Brackets.IsZero() && md.IncomeTax.FlatRate != nil {
				return StrategyFlatIncome
			}
			return StrategyProgressiveIncome
		}
	case TxnTypeSale, TxnTypePurchase:
		if md.SalesTax != nil {
			return StrategySalesTax
		}
		if md.VAT != nil {
			return StrategyVAT
		}
	}
	return StrategyFallback
}
