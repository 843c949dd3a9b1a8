package engine

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Filing-schema selection keywords per transaction type. The schema whose
// form name contains one of these wins; otherwise the first schema is used.
var (
	consumptionFormKeywords = []string{"vat", "sales", "gst", "hst", "use tax"}
	incomeFormKeywords      = []string{"1040", "income", "corporation", "t1", "sa100"}
)

// ProjectFilingBoxes maps a calculation result onto the box identifiers of
// the rulepack's filing schema best matching the transaction type. Boxes
// whose calculation directive cannot be resolved are omitted, not
// zero-filled: schemas legitimately describe fields outside this engine's
// remit (prior-period carryforwards and the like).
//
// Directive vocabulary: "amount", "taxAmount", "taxableIncome",
// "context.<key>" (numeric transaction metadata).
func ProjectFilingBoxes(pack *Rulepack, txn Transaction, result CalculationResult) map[string]decimal.Decimal {
	schema := selectFilingSchema(pack.FilingSchemas, txn.Type)
	if schema == nil {
		return nil
	}

	boxes := make(map[string]decimal.Decimal)
	for _, box := range schema.Boxes {
		value, ok := resolveDirective(box.Calculation, txn, result)
		if !ok {
			continue
		}
		boxes[box.BoxID] = value.Round(amountScale)
	}
	if len(boxes) == 0 {
		return nil
	}
	return boxes
}

func selectFilingSchema(schemas FilingSchemaList, txnType string) *FilingSchema {
	if len(schemas) == 0 {
		return nil
	}

	var keywords []string
	switch txnType {
	case TxnTypeSale, TxnTypePurchase:
		keywords = consumptionFormKeywords
	case TxnTypeIncome, TxnTypeCorporateIncome, TxnTypePayroll:
		keywords = incomeFormKeywords
	}

	for i := range schemas {
		form := strings.ToLower(schemas[i].FormName)
		for _, kw := range keywords {
			if strings.Contains(form, kw) {
				return &schemas[i]
			}
		}
	}
	return &schemas[0]
}

func resolveDirective(directive string, txn Transaction, result CalculationResult) (decimal.Decimal, bool) {
	switch directive {
	case "amount":
		return txn.Amount, true
	case "taxAmount":
		return result.TaxAmount, true
	case "taxableIncome":
		// Only income strategies record taxable income.
		v, ok := result.Details["taxable_income"]
		return v, ok
	}

	if key, found := strings.CutPrefix(directive, "context."); found {
		return numericMetadata(txn.Metadata, key)
	}
	return decimal.Decimal{}, false
}

// numericMetadata pulls a numeric value out of transaction metadata.
// Non-numeric values resolve as absent.
func numericMetadata(metadata map[string]interface{}, key string) (decimal.Decimal, bool) {
	raw, ok := metadata[key]
	if !ok {
		return decimal.Decimal{}, false
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Decimal{}, false
	}
}
