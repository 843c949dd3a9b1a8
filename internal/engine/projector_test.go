package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectionPack() *Rulepack {
	return &Rulepack{
		JurisdictionCode: "GB",
		Year:             2024,
		Version:          "v1",
		FilingSchemas: FilingSchemaList{
			{
				FormName: "SA100 Income Tax Return",
				Boxes: []FilingBox{
					{BoxID: "total_income", Calculation: "amount"},
					{BoxID: "taxable", Calculation: "taxableIncome"},
					{BoxID: "tax", Calculation: "taxAmount"},
				},
			},
			{
				FormName: "VAT100 Value Added Tax Return",
				Boxes: []FilingBox{
					{BoxID: "box_1", Calculation: "taxAmount"},
					{BoxID: "box_6", Calculation: "amount"},
					{BoxID: "box_4", Calculation: "context.input_vat"},
					{BoxID: "box_7", Calculation: "context.purchases_note"},
					{BoxID: "box_9", Calculation: "prior_period_carryforward"},
				},
			},
		},
	}
}

func TestProjectFilingBoxes_SchemaSelectionByTransactionType(t *testing.T) {
	pack := projectionPack()
	result := CalculationResult{TaxAmount: dec("20.00")}

	boxes := ProjectFilingBoxes(pack, Transaction{Amount: dec("100"), Type: TxnTypeSale}, result)
	require.NotNil(t, boxes)
	assert.Contains(t, boxes, "box_1")
	assert.NotContains(t, boxes, "total_income")
}

func TestProjectFilingBoxes_IncomeSchema(t *testing.T) {
	pack := projectionPack()
	result := CalculationResult{
		TaxAmount: dec("500.00"),
		Details:   map[string]decimal.Decimal{"taxable_income": dec("4500.00")},
	}

	boxes := ProjectFilingBoxes(pack, Transaction{Amount: dec("5000"), Type: TxnTypeIncome}, result)
	require.NotNil(t, boxes)
	assert.True(t, boxes["total_income"].Equal(dec("5000.00")))
	assert.True(t, boxes["taxable"].Equal(dec("4500.00")))
	assert.True(t, boxes["tax"].Equal(dec("500.00")))
}

func TestProjectFilingBoxes_UnresolvableBoxesAreOmitted(t *testing.T) {
	pack := projectionPack()
	result := CalculationResult{TaxAmount: dec("20.00")}

	txn := Transaction{
		Amount: dec("100"),
		Type:   TxnTypeSale,
		Metadata: map[string]interface{}{
			"input_vat":      12.5,
			"purchases_note": "non-numeric", // not projectable
		},
	}

	boxes := ProjectFilingBoxes(pack, txn, result)
	require.NotNil(t, boxes)
	assert.True(t, boxes["box_4"].Equal(dec("12.50")))
	// Non-numeric context values and unknown directives are omitted, not
	// zero-filled.
	assert.NotContains(t, boxes, "box_7")
	assert.NotContains(t, boxes, "box_9")
}

func TestProjectFilingBoxes_NoSchemas(t *testing.T) {
	pack := &Rulepack{JurisdictionCode: "US", Year: 2024, Version: "v1"}
	boxes := ProjectFilingBoxes(pack, Transaction{Amount: dec("100"), Type: TxnTypeSale}, CalculationResult{})
	assert.Nil(t, boxes)
}

func TestProjectFilingBoxes_NoKeywordMatchFallsBackToFirstSchema(t *testing.T) {
	pack := &Rulepack{
		JurisdictionCode: "ZZ",
		Year:             2024,
		Version:          "v1",
		FilingSchemas: FilingSchemaList{
			{FormName: "Generic Levy Return", Boxes: []FilingBox{{BoxID: "levy", Calculation: "taxAmount"}}},
			{FormName: "Another Form", Boxes: []FilingBox{{BoxID: "other", Calculation: "amount"}}},
		},
	}

	boxes := ProjectFilingBoxes(pack, Transaction{Amount: dec("100"), Type: TxnTypeSale}, CalculationResult{TaxAmount: dec("3.00")})
	require.NotNil(t, boxes)
	assert.Contains(t, boxes, "levy")
	assert.NotContains(t, boxes, "other")
}
