package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/shopspring/decimal"
)

// ErrConfiguration marks a rulepack whose metadata cannot support the
// requested evaluation (e.g. no bracket ladder for the filing status and no
// single fallback). Callers must not treat this as a legitimate zero-tax
// outcome.
var ErrConfiguration = errors.New("rulepack configuration error")

const (
	amountScale = 2
	rateScale   = 4
)

// Evaluate computes the tax owed on a transaction under a rulepack. It is a
// pure function: no I/O, deterministic for identical inputs. Monetary
// outputs are rounded to cents (half away from zero) at the point of
// output; bracket accumulation runs at full precision.
func Evaluate(pack *Rulepack, txn Transaction) (CalculationResult, error) {
	res := CalculationResult{
		JurisdictionCode: pack.JurisdictionCode,
		RulepackVersion:  pack.Version,
		Details:          map[string]decimal.Decimal{},
	}

	var (
		tax  decimal.Decimal
		rate decimal.Decimal
		err  error
	)

	switch resolveStrategy(txn.Type, pack.Metadata) {
	case StrategyProgressiveIncome:
		tax, err = evaluateProgressiveIncome(pack.Metadata.IncomeTax, txn, res.Details)
		res.RuleID = string(StrategyProgressiveIncome)
	case StrategyFlatIncome:
		tax = evaluateFlatIncome(pack.Metadata.IncomeTax, txn, res.Details)
		res.RuleID = string(StrategyFlatIncome)
	case StrategySalesTax:
		tax = evaluateSalesTax(pack.Metadata.SalesTax, txn, res.Details)
		res.RuleID = string(StrategySalesTax)
	case StrategyVAT:
		tax = evaluateVAT(pack.Metadata.VAT, txn, res.Details)
		res.RuleID = string(StrategyVAT)
	default:
		tax, res.RuleID, err = evaluateFallback(pack.Rules, txn, res.Details)
	}
	if err != nil {
		return CalculationResult{}, err
	}

	// Effective rate against the gross amount, guarding amount = 0.
	if txn.Amount.IsZero() {
		rate = decimal.Zero
	} else {
		rate = tax.Div(txn.Amount)
	}

	res.TaxAmount = tax.Round(amountScale)
	res.TaxRate = rate.Round(rateScale)
	return res, nil
}

// evaluateProgressiveIncome walks the bracket ladder with exact marginal
// semantics: each span of taxable income is taxed at its own bracket rate,
// a dollar crossing a boundary is never taxed retroactively.
func evaluateProgressiveIncome(params *IncomeTaxParams, txn Transaction, details map[string]decimal.Decimal) (decimal.Decimal, error) {
	status := txn.FilingStatus
	if status == "" {
		status = FilingStatusSingle
	}

	ladder, ok := params.Brackets.Resolve(status)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no bracket ladder for filing status %q", ErrConfiguration, status)
	}

	standardDeduction := params.StandardDeduction.Resolve(status)
	taxable := txn.Amount.Sub(standardDeduction).Sub(txn.Deductions)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	tax := decimal.Zero
	for _, bracket := range ladder {
		if taxable.LessThanOrEqual(bracket.Min) {
			break
		}
		upper := taxable
		if bracket.Max != nil && bracket.Max.LessThan(taxable) {
			upper = *bracket.Max
		}
		tax = tax.Add(upper.Sub(bracket.Min).Mul(bracket.Rate))
	}

	// Credits reduce tax to a floor of zero; refundable credits are a
	// filing-level concern, not an evaluator concern.
	tax = tax.Sub(txn.Credits)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	details["taxable_income"] = taxable.Round(amountScale)
	details["standard_deduction"] = standardDeduction.Round(amountScale)
	return tax, nil
}

func evaluateFlatIncome(params *IncomeTaxParams, txn Transaction, details map[string]decimal.Decimal) decimal.Decimal {
	taxable := txn.Amount.Sub(txn.Deductions)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	details["taxable_income"] = taxable.Round(amountScale)
	details["flat_rate"] = params.FlatRate.Round(rateScale)
	return taxable.Mul(*params.FlatRate)
}

// evaluateSalesTax adds a locality override rate onto the base rate, but a
// reduced category replaces the computed rate entirely rather than
// discounting it.
func evaluateSalesTax(params *SalesTaxParams, txn Transaction, details map[string]decimal.Decimal) decimal.Decimal {
	rate := params.BaseRate
	details["base_rate"] = params.BaseRate.Round(rateScale)

	locality := txn.StateCode
	if v, ok := txn.Metadata["locality"].(string); ok && v != "" {
		locality = v
	}
	if locality != "" {
		if override, ok := params.LocalityRates[locality]; ok {
			rate = rate.Add(override)
			details["locality_rate"] = override.Round(rateScale)
		}
	}

	if txn.Category != "" && containsFold(params.ReducedCategories, txn.Category) {
		rate = decimal.Zero
		if params.ReducedRate != nil {
			rate = *params.ReducedRate
		}
		details["reduced_rate"] = rate.Round(rateScale)
	}

	details["final_rate"] = rate.Round(rateScale)
	return txn.Amount.Mul(rate)
}

func evaluateVAT(params *VATParams, txn Transaction, details map[string]decimal.Decimal) decimal.Decimal {
	category := txn.Category
	if category == "" {
		category = "standard"
	}

	var rate decimal.Decimal
	switch {
	case strings.EqualFold(category, "zero"), strings.EqualFold(category, "exempt"),
		containsFold(params.ZeroRatedCategories, category):
		rate = decimal.Zero
	case containsFold(params.ReducedCategories, category):
		if params.ReducedRate != nil {
			rate = *params.ReducedRate
		}
	default:
		rate = params.StandardRate
	}

	details["vat_rate"] = rate.Round(rateScale)
	return txn.Amount.Mul(rate)
}

// evaluateFallback is the flat-rate escape hatch for transactions no
// metadata shape covers. Rules are consulted in descending priority order;
// the first rule whose jsonlogic condition matches the transaction supplies
// the rate and rule id. With no match the result is zero tax tagged with
// rule id "fallback" so callers can detect degraded evaluation.
func evaluateFallback(rules RuleList, txn Transaction, details map[string]decimal.Decimal) (decimal.Decimal, string, error) {
	doc := transactionDocument(txn)

	ordered := make(RuleList, len(rules))
	copy(ordered, rules)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Priority > ordered[j-1].Priority; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for _, rule := range ordered {
		matched, err := ruleMatches(rule, doc)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("rule %q condition: %w", rule.ID, err)
		}
		if matched {
			details["fallback_rate"] = rule.Action.Rate.Round(rateScale)
			return txn.Amount.Mul(rule.Action.Rate), rule.ID, nil
		}
	}

	return decimal.Zero, string(StrategyFallback), nil
}

// ruleMatches evaluates a rule's jsonlogic condition against the
// transaction document. An empty condition always matches.
func ruleMatches(rule Rule, doc map[string]interface{}) (bool, error) {
	if len(rule.Condition) == 0 {
		return true, nil
	}

	ruleJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return false, err
	}
	dataJSON, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &out); err != nil {
		return false, err
	}

	var verdict interface{}
	if out.Len() == 0 {
		return false, nil
	}
	if err := json.Unmarshal(out.Bytes(), &verdict); err != nil {
		return false, err
	}

	switch v := verdict.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case nil:
		return false, nil
	default:
		return true, nil
	}
}

// transactionDocument flattens a transaction into the jsonlogic data
// document rule conditions are written against.
func transactionDocument(txn Transaction) map[string]interface{} {
	doc := map[string]interface{}{
		"amount":        txn.Amount.InexactFloat64(),
		"type":          txn.Type,
		"filing_status": txn.FilingStatus,
		"category":      txn.Category,
		"state_code":    txn.StateCode,
		"deductions":    txn.Deductions.InexactFloat64(),
		"credits":       txn.Credits.InexactFloat64(),
	}
	if txn.Metadata != nil {
		doc["metadata"] = txn.Metadata
	}
	return doc
}

func containsFold(list []string, target string) bool {
	for _, v := range list {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
