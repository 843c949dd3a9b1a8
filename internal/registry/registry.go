// Package registry carries the rulepack definitions compiled into the
// binary. They are the resolution fallback when no persisted pack covers a
// jurisdiction/year — resolving against them is logged as an operational
// gap, not business as usual.
package registry

import (
	"taxengine/internal/engine"

	"github.com/shopspring/decimal"
)

// Builtin returns the compiled-in fallback definitions. The slice is built
// fresh per call; the caller constructs it once at startup and passes it
// into the rulepack store, which treats it as immutable.
func Builtin() []engine.Rulepack {
	return []engine.Rulepack{
		usFederalIncome2024(),
		usCaliforniaSales2024(),
		ukVAT2024(),
		caFederalIncome2024(),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func usFederalIncome2024() engine.Rulepack {
	return engine.Rulepack{
		JurisdictionCode: "US",
		Country:          "United States",
		Year:             2024,
		Version:          "builtin-1",
		Status:           "ACTIVE",
		FilingTypes:      engine.StringList{"individual_income", "corporate_income"},
		Rules: engine.RuleList{
			{
				ID:              "us-federal-income-default",
				Description:     "Flat fallback for transaction types outside the income metadata",
				Condition:       map[string]interface{}{">": []interface{}{map[string]interface{}{"var": "amount"}, 0}},
				Action:          engine.RuleAction{Rate: d("0.21")},
				Priority:        10,
				IsDeterministic: true,
			},
		},
		Metadata: engine.Metadata{
			IncomeTax: &engine.IncomeTaxParams{
				Brackets: engine.BracketSet{ByStatus: map[string][]engine.Bracket{
					"single": {
						{Min: d("0"), Max: dp("11600"), Rate: d("0.10")},
						{Min: d("11600"), Max: dp("47150"), Rate: d("0.12")},
						{Min: d("47150"), Max: dp("100525"), Rate: d("0.22")},
						{Min: d("100525"), Max: dp("191950"), Rate: d("0.24")},
						{Min: d("191950"), Max: dp("243725"), Rate: d("0.32")},
						{Min: d("243725"), Max: dp("609350"), Rate: d("0.35")},
						{Min: d("609350"), Max: nil, Rate: d("0.37")},
					},
					"married_joint": {
						{Min: d("0"), Max: dp("23200"), Rate: d("0.10")},
						{Min: d("23200"), Max: dp("94300"), Rate: d("0.12")},
						{Min: d("94300"), Max: dp("201050"), Rate: d("0.22")},
						{Min: d("201050"), Max: dp("383900"), Rate: d("0.24")},
						{Min: d("383900"), Max: dp("487450"), Rate: d("0.32")},
						{Min: d("487450"), Max: dp("731200"), Rate: d("0.35")},
						{Min: d("731200"), Max: nil, Rate: d("0.37")},
					},
				}},
				StandardDeduction: engine.DeductionSet{ByStatus: map[string]decimal.Decimal{
					"single":            d("14600"),
					"married_joint":     d("29200"),
					"head_of_household": d("21900"),
				}},
			},
		},
		FilingSchemas: engine.FilingSchemaList{
			{
				FormName: "Form 1040 U.S. Individual Income Tax Return",
				Boxes: []engine.FilingBox{
					{BoxID: "line_1", Description: "Total income", Calculation: "amount"},
					{BoxID: "line_15", Description: "Taxable income", Calculation: "taxableIncome"},
					{BoxID: "line_16", Description: "Tax", Calculation: "taxAmount"},
					{BoxID: "line_25", Description: "Federal tax withheld", Calculation: "context.withholding"},
				},
			},
		},
		RegressionCases: engine.RegressionCaseList{
			{
				ID:          "us-2024-single-95k",
				Description: "Single filer, standard deduction, mid ladder",
				Transaction: engine.Transaction{Amount: d("95000"), Type: engine.TxnTypeIncome, FilingStatus: "single"},
				Expected: engine.Expectation{
					TaxAmount: d("12741.00"),
					TaxRate:   dp("0.1341"),
					FilingBoxes: map[string]decimal.Decimal{
						"line_15": d("80400.00"),
						"line_16": d("12741.00"),
					},
				},
			},
			{
				ID:          "us-2024-joint-50k",
				Description: "Married joint inside the first bracket",
				Transaction: engine.Transaction{Amount: d("50000"), Type: engine.TxnTypeIncome, FilingStatus: "married_joint"},
				Expected:    engine.Expectation{TaxAmount: d("2080.00"), TaxRate: dp("0.0416")},
			},
			{
				ID:          "us-2024-zero-amount",
				Description: "Zero amount must not divide by zero",
				Transaction: engine.Transaction{Amount: d("0"), Type: engine.TxnTypeIncome},
				Expected:    engine.Expectation{TaxAmount: d("0"), TaxRate: dp("0")},
			},
		},
		NexusThresholds: engine.NexusThresholdList{
			{Region: "US", RevenueThreshold: d("100000"), Note: "Wayfair-style economic nexus baseline"},
		},
	}
}

func usCaliforniaSales2024() engine.Rulepack {
	count := 200
	return engine.Rulepack{
		JurisdictionCode: "US-CA",
		Country:          "United States",
		Region:           "California",
		Year:             2024,
		Version:          "builtin-1",
		Status:           "ACTIVE",
		FilingTypes:      engine.StringList{"sales_use"},
		Rules: engine.RuleList{
			{
				ID:              "us-ca-sales-default",
				Action:          engine.RuleAction{Rate: d("0.0725")},
				Priority:        10,
				IsDeterministic: true,
			},
		},
		Metadata: engine.Metadata{
			SalesTax: &engine.SalesTaxParams{
				BaseRate: d("0.0725"),
				LocalityRates: map[string]decimal.Decimal{
					"los_angeles":   d("0.0225"),
					"san_francisco": d("0.0138"),
					"alameda":       d("0.0300"),
				},
				ReducedCategories: []string{"groceries", "prescription_drugs"},
				ReducedRate:       dp("0"),
			},
		},
		FilingSchemas: engine.FilingSchemaList{
			{
				FormName: "CDTFA-401 Sales and Use Tax Return",
				Boxes: []engine.FilingBox{
					{BoxID: "gross_sales", Description: "Total gross sales", Calculation: "amount"},
					{BoxID: "tax_due", Description: "Sales and use tax due", Calculation: "taxAmount"},
				},
			},
		},
		RegressionCases: engine.RegressionCaseList{
			{
				ID:          "us-ca-2024-base",
				Transaction: engine.Transaction{Amount: d("100"), Type: engine.TxnTypeSale},
				Expected:    engine.Expectation{TaxAmount: d("7.25"), TaxRate: dp("0.0725")},
			},
			{
				ID:          "us-ca-2024-la-locality",
				Description: "Locality rate adds to the base rate",
				Transaction: engine.Transaction{
					Amount:   d("100"),
					Type:     engine.TxnTypeSale,
					Metadata: map[string]interface{}{"locality": "los_angeles"},
				},
				Expected: engine.Expectation{TaxAmount: d("9.50"), TaxRate: dp("0.0950")},
			},
			{
				ID:          "us-ca-2024-groceries",
				Description: "Reduced category replaces the computed rate",
				Transaction: engine.Transaction{Amount: d("100"), Type: engine.TxnTypeSale, Category: "groceries"},
				Expected:    engine.Expectation{TaxAmount: d("0"), TaxRate: dp("0")},
			},
		},
		NexusThresholds: engine.NexusThresholdList{
			{Region: "US-CA", RevenueThreshold: d("500000"), TransactionCount: &count},
		},
	}
}

func ukVAT2024() engine.Rulepack {
	return engine.Rulepack{
		JurisdictionCode: "GB",
		Country:          "United Kingdom",
		Year:             2024,
		Version:          "builtin-1",
		Status:           "ACTIVE",
		FilingTypes:      engine.StringList{"vat"},
		Rules: engine.RuleList{
			{
				ID:              "gb-vat-default",
				Action:          engine.RuleAction{Rate: d("0.20")},
				Priority:        10,
				IsDeterministic: true,
			},
		},
		Metadata: engine.Metadata{
			VAT: &engine.VATParams{
				StandardRate:        d("0.20"),
				ReducedRate:         dp("0.05"),
				ReducedCategories:   []string{"domestic_energy", "child_car_seats"},
				ZeroRatedCategories: []string{"books", "children_clothing", "food"},
			},
		},
		FilingSchemas: engine.FilingSchemaList{
			{
				FormName: "VAT100 Value Added Tax Return",
				Boxes: []engine.FilingBox{
					{BoxID: "box_1", Description: "VAT due on sales", Calculation: "taxAmount"},
					{BoxID: "box_6", Description: "Total value of sales", Calculation: "amount"},
				},
			},
		},
		RegressionCases: engine.RegressionCaseList{
			{
				ID:          "gb-2024-standard",
				Transaction: engine.Transaction{Amount: d("100"), Type: engine.TxnTypeSale},
				Expected:    engine.Expectation{TaxAmount: d("20.00"), TaxRate: dp("0.20")},
			},
			{
				ID:          "gb-2024-zero-rated",
				Transaction: engine.Transaction{Amount: d("100"), Type: engine.TxnTypeSale, Category: "books"},
				Expected:    engine.Expectation{TaxAmount: d("0"), TaxRate: dp("0")},
			},
			{
				ID:          "gb-2024-reduced",
				Transaction: engine.Transaction{Amount: d("100"), Type: engine.TxnTypeSale, Category: "domestic_energy"},
				Expected:    engine.Expectation{TaxAmount: d("5.00"), TaxRate: dp("0.05")},
			},
		},
	}
}

func caFederalIncome2024() engine.Rulepack {
	return engine.Rulepack{
		JurisdictionCode: "CA",
		Country:          "Canada",
		Year:             2024,
		Version:          "builtin-1",
		Status:           "ACTIVE",
		FilingTypes:      engine.StringList{"individual_income"},
		Rules: engine.RuleList{
			{
				ID:              "ca-federal-income-default",
				Action:          engine.RuleAction{Rate: d("0.15")},
				Priority:        10,
				IsDeterministic: true,
			},
		},
		Metadata: engine.Metadata{
			IncomeTax: &engine.IncomeTaxParams{
				Brackets: engine.BracketSet{Flat: []engine.Bracket{
					{Min: d("0"), Max: dp("55867"), Rate: d("0.15")},
					{Min: d("55867"), Max: dp("111733"), Rate: d("0.205")},
					{Min: d("111733"), Max: dp("173205"), Rate: d("0.26")},
					{Min: d("173205"), Max: dp("246752"), Rate: d("0.29")},
					{Min: d("246752"), Max: nil, Rate: d("0.33")},
				}},
				StandardDeduction: engine.DeductionSet{Flat: dp("15705")},
			},
		},
		FilingSchemas: engine.FilingSchemaList{
			{
				FormName: "T1 General Income Tax and Benefit Return",
				Boxes: []engine.FilingBox{
					{BoxID: "line_15000", Description: "Total income", Calculation: "amount"},
					{BoxID: "line_26000", Description: "Taxable income", Calculation: "taxableIncome"},
					{BoxID: "line_42000", Description: "Net federal tax", Calculation: "taxAmount"},
				},
			},
		},
		RegressionCases: engine.RegressionCaseList{
			{
				ID:          "ca-2024-60k",
				Transaction: engine.Transaction{Amount: d("60000"), Type: engine.TxnTypeIncome},
				Expected:    engine.Expectation{TaxAmount: d("6644.25"), TaxRate: dp("0.1107")},
			},
		},
	}
}
