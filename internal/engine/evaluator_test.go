package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func progressivePack(brackets BracketSet, deductions DeductionSet) *Rulepack {
	return &Rulepack{
		JurisdictionCode: "US",
		Year:             2024,
		Version:          "v1",
		Metadata: Metadata{
			IncomeTax: &IncomeTaxParams{
				Brackets:          brackets,
				StandardDeduction: deductions,
			},
		},
	}
}

func twoBracketLadder() BracketSet {
	return BracketSet{Flat: []Bracket{
		{Min: dec("0"), Max: decPtr("10000"), Rate: dec("0.10")},
		{Min: dec("10000"), Max: nil, Rate: dec("0.20")},
	}}
}

func TestEvaluate_MarginalBracketCorrectness(t *testing.T) {
	pack := progressivePack(twoBracketLadder(), DeductionSet{})

	result, err := Evaluate(pack, Transaction{Amount: dec("15000"), Type: TxnTypeIncome})
	require.NoError(t, err)

	// 10000*0.10 + 5000*0.20 — the dollar crossing the boundary is taxed
	// at the higher rate only on the excess.
	assert.True(t, result.TaxAmount.Equal(dec("2000.00")), "got %s", result.TaxAmount)
	assert.True(t, result.TaxRate.Equal(dec("0.1333")), "got %s", result.TaxRate)
	assert.Equal(t, string(StrategyProgressiveIncome), result.RuleID)
	assert.True(t, result.Details["taxable_income"].Equal(dec("15000.00")))
}

func TestEvaluate_BracketMonotonicity(t *testing.T) {
	pack := progressivePack(twoBracketLadder(), DeductionSet{Flat: decPtr("3000")})

	prev := decimal.Zero
	for amount := int64(0); amount <= 50000; amount += 500 {
		result, err := Evaluate(pack, Transaction{Amount: decimal.NewFromInt(amount), Type: TxnTypeIncome})
		require.NoError(t, err)
		require.False(t, result.TaxAmount.LessThan(prev),
			"tax decreased at amount %d: %s < %s", amount, result.TaxAmount, prev)
		prev = result.TaxAmount
	}
}

func TestEvaluate_ZeroAmount(t *testing.T) {
	pack := progressivePack(twoBracketLadder(), DeductionSet{})

	result, err := Evaluate(pack, Transaction{Amount: decimal.Zero, Type: TxnTypeIncome})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.IsZero())
	assert.True(t, result.TaxRate.IsZero())
}

func TestEvaluate_UnsortedLadderIsNormalized(t *testing.T) {
	pack := progressivePack(BracketSet{Flat: []Bracket{
		{Min: dec("10000"), Max: nil, Rate: dec("0.20")},
		{Min: dec("0"), Max: decPtr("10000"), Rate: dec("0.10")},
	}}, DeductionSet{})

	result, err := Evaluate(pack, Transaction{Amount: dec("15000"), Type: TxnTypeIncome})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("2000.00")))
}

func TestEvaluate_DeductionsAndCreditsFloorAtZero(t *testing.T) {
	pack := progressivePack(twoBracketLadder(), DeductionSet{Flat: decPtr("5000")})

	// 20000 - 5000 std - 5000 extra = 10000 taxable -> 1000 tax, minus
	// oversized credit floors at zero, never a refund.
	result, err := Evaluate(pack, Transaction{
		Amount:     dec("20000"),
		Type:       TxnTypeIncome,
		Deductions: dec("5000"),
		Credits:    dec("2500"),
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.IsZero(), "got %s", result.TaxAmount)

	// Deductions larger than the amount floor taxable income at zero.
	result, err = Evaluate(pack, Transaction{
		Amount:     dec("3000"),
		Type:       TxnTypeIncome,
		Deductions: dec("10000"),
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.IsZero())
	assert.True(t, result.Details["taxable_income"].IsZero())
}

func TestEvaluate_FilingStatusLadderResolution(t *testing.T) {
	byStatus := BracketSet{ByStatus: map[string][]Bracket{
		"single": {
			{Min: dec("0"), Max: decPtr("10000"), Rate: dec("0.10")},
			{Min: dec("10000"), Max: nil, Rate: dec("0.20")},
		},
	}}

	pack := progressivePack(byStatus, DeductionSet{ByStatus: map[string]decimal.Decimal{
		"single": dec("1000"),
	}})

	// Unknown status falls back to the single ladder and deduction.
	result, err := Evaluate(pack, Transaction{
		Amount:       dec("11000"),
		Type:         TxnTypeIncome,
		FilingStatus: "married_joint",
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("1000.00")), "got %s", result.TaxAmount)
}

func TestEvaluate_MissingLadderIsConfigurationError(t *testing.T) {
	pack := progressivePack(BracketSet{ByStatus: map[string][]Bracket{
		"head_of_household": {{Min: dec("0"), Max: nil, Rate: dec("0.10")}},
	}}, DeductionSet{})

	_, err := Evaluate(pack, Transaction{
		Amount:       dec("10000"),
		Type:         TxnTypeIncome,
		FilingStatus: "married_joint",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEvaluate_FlatIncome(t *testing.T) {
	pack := &Rulepack{
		JurisdictionCode: "EE",
		Year:             2024,
		Version:          "v1",
		Metadata: Metadata{
			IncomeTax: &IncomeTaxParams{FlatRate: decPtr("0.19")},
		},
	}

	result, err := Evaluate(pack, Transaction{
		Amount:     dec("10000"),
		Type:       TxnTypeIncome,
		Deductions: dec("2000"),
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("1520.00")))
	assert.True(t, result.TaxRate.Equal(dec("0.152")))
	assert.Equal(t, string(StrategyFlatIncome), result.RuleID)
}

func salesPack() *Rulepack {
	return &Rulepack{
		JurisdictionCode: "US-TX",
		Year:             2024,
		Version:          "v1",
		Metadata: Metadata{
			SalesTax: &SalesTaxParams{
				BaseRate:          dec("0.05"),
				LocalityRates:     map[string]decimal.Decimal{"metro": dec("0.02")},
				ReducedCategories: []string{"food"},
				ReducedRate:       decPtr("0.01"),
			},
		},
	}
}

func TestEvaluate_SalesLocalityAddsToBaseRate(t *testing.T) {
	result, err := Evaluate(salesPack(), Transaction{Amount: dec("100"), Type: TxnTypeSale})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("5.00")))

	result, err = Evaluate(salesPack(), Transaction{
		Amount:   dec("100"),
		Type:     TxnTypeSale,
		Metadata: map[string]interface{}{"locality": "metro"},
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("7.00")))
	assert.True(t, result.TaxRate.Equal(dec("0.07")))
}

func TestEvaluate_SalesReducedCategoryReplacesRate(t *testing.T) {
	// The reduced rate replaces the locality-augmented rate entirely —
	// the result is 1.00, not (0.07 - 0.01) * 100.
	result, err := Evaluate(salesPack(), Transaction{
		Amount:   dec("100"),
		Type:     TxnTypeSale,
		Category: "food",
		Metadata: map[string]interface{}{"locality": "metro"},
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("1.00")), "got %s", result.TaxAmount)
}

func TestEvaluate_SalesLocalityFromStateCode(t *testing.T) {
	result, err := Evaluate(salesPack(), Transaction{
		Amount:    dec("100"),
		Type:      TxnTypeSale,
		StateCode: "metro",
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("7.00")))
}

func vatPack() *Rulepack {
	return &Rulepack{
		JurisdictionCode: "GB",
		Year:             2024,
		Version:          "v1",
		Metadata: Metadata{
			VAT: &VATParams{
				StandardRate:        dec("0.20"),
				ReducedRate:         decPtr("0.05"),
				ReducedCategories:   []string{"energy"},
				ZeroRatedCategories: []string{"books"},
			},
		},
	}
}

func TestEvaluate_VATCategoryResolution(t *testing.T) {
	cases := []struct {
		category string
		want     string
	}{
		{"", "20.00"},          // defaults to standard
		{"standard", "20.00"},
		{"books", "0.00"},      // zero-rated list
		{"zero", "0.00"},       // literal zero
		{"exempt", "0.00"},     // literal exempt
		{"energy", "5.00"},     // reduced list
	}

	for _, tc := range cases {
		result, err := Evaluate(vatPack(), Transaction{
			Amount:   dec("100"),
			Type:     TxnTypePurchase,
			Category: tc.category,
		})
		require.NoError(t, err, "category %q", tc.category)
		assert.True(t, result.TaxAmount.Equal(dec(tc.want)),
			"category %q: want %s got %s", tc.category, tc.want, result.TaxAmount)
	}
}

func TestEvaluate_VATPrecedenceOverSalesTax(t *testing.T) {
	// When both shapes are configured, sales tax wins for sale/purchase.
	pack := salesPack()
	pack.Metadata.VAT = &VATParams{StandardRate: dec("0.20")}

	result, err := Evaluate(pack, Transaction{Amount: dec("100"), Type: TxnTypeSale})
	require.NoError(t, err)
	assert.Equal(t, string(StrategySalesTax), result.RuleID)
}

func TestEvaluate_FallbackMatchesRulesByPriority(t *testing.T) {
	pack := &Rulepack{
		JurisdictionCode: "ZZ",
		Year:             2024,
		Version:          "v1",
		Rules: RuleList{
			{ID: "low-priority", Priority: 1, Action: RuleAction{Rate: dec("0.01")}},
			{
				ID:       "large-amounts",
				Priority: 5,
				Condition: map[string]interface{}{
					">": []interface{}{map[string]interface{}{"var": "amount"}, 100},
				},
				Action: RuleAction{Rate: dec("0.02")},
			},
		},
	}

	result, err := Evaluate(pack, Transaction{Amount: dec("200"), Type: TxnTypePayroll})
	require.NoError(t, err)
	assert.Equal(t, "large-amounts", result.RuleID)
	assert.True(t, result.TaxAmount.Equal(dec("4.00")))

	// Below the condition threshold the lower-priority unconditional rule wins.
	result, err = Evaluate(pack, Transaction{Amount: dec("50"), Type: TxnTypePayroll})
	require.NoError(t, err)
	assert.Equal(t, "low-priority", result.RuleID)
}

func TestEvaluate_FallbackWithoutMatchIsMarkedDegraded(t *testing.T) {
	pack := &Rulepack{
		JurisdictionCode: "ZZ",
		Year:             2024,
		Version:          "v1",
		Rules: RuleList{
			{
				ID:       "never",
				Priority: 1,
				Condition: map[string]interface{}{
					">": []interface{}{map[string]interface{}{"var": "amount"}, 1000000},
				},
				Action: RuleAction{Rate: dec("0.50")},
			},
		},
	}

	result, err := Evaluate(pack, Transaction{Amount: dec("10"), Type: TxnTypePayroll})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.IsZero())
	// Zero tax from the escape hatch is tagged so callers can detect
	// degraded evaluation instead of trusting a silent zero.
	assert.Equal(t, string(StrategyFallback), result.RuleID)
}

func TestEvaluate_EndToEndUS2024(t *testing.T) {
	pack := progressivePack(BracketSet{ByStatus: map[string][]Bracket{
		"single": {
			{Min: dec("0"), Max: decPtr("11600"), Rate: dec("0.10")},
			{Min: dec("11600"), Max: decPtr("47150"), Rate: dec("0.12")},
			{Min: dec("47150"), Max: decPtr("100525"), Rate: dec("0.22")},
			{Min: dec("100525"), Max: decPtr("191950"), Rate: dec("0.24")},
			{Min: dec("191950"), Max: decPtr("243725"), Rate: dec("0.32")},
			{Min: dec("243725"), Max: decPtr("609350"), Rate: dec("0.35")},
			{Min: dec("609350"), Max: nil, Rate: dec("0.37")},
		},
	}}, DeductionSet{ByStatus: map[string]decimal.Decimal{"single": dec("14600")}})

	result, err := Evaluate(pack, Transaction{
		Amount:       dec("95000"),
		Type:         TxnTypeIncome,
		FilingStatus: "single",
	})
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("12741.00")), "got %s", result.TaxAmount)
	assert.True(t, result.TaxRate.Equal(dec("0.1341")), "got %s", result.TaxRate)
}
