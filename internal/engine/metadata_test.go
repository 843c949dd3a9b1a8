package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketSet_FlatShape(t *testing.T) {
	raw := `[{"min":"0","max":"10000","rate":"0.10"},{"min":"10000","max":null,"rate":"0.20"}]`

	var set BracketSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))
	require.Len(t, set.Flat, 2)
	assert.Nil(t, set.ByStatus)

	// Any filing status resolves a status-independent ladder.
	ladder, ok := set.Resolve("married_joint")
	require.True(t, ok)
	assert.Len(t, ladder, 2)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, byte('['), out[0], "flat shape survives a round trip")
}

func TestBracketSet_KeyedShape(t *testing.T) {
	raw := `{"single":[{"min":"0","max":null,"rate":"0.10"}],"married_joint":[{"min":"0","max":null,"rate":"0.05"}]}`

	var set BracketSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))
	assert.Nil(t, set.Flat)
	require.Len(t, set.ByStatus, 2)

	ladder, ok := set.Resolve("married_joint")
	require.True(t, ok)
	assert.True(t, ladder[0].Rate.Equal(dec("0.05")))

	// Unknown status falls back to "single".
	ladder, ok = set.Resolve("head_of_household")
	require.True(t, ok)
	assert.True(t, ladder[0].Rate.Equal(dec("0.10")))

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), out[0], "keyed shape survives a round trip")
}

func TestBracketSet_Empty(t *testing.T) {
	var set BracketSet
	require.NoError(t, json.Unmarshal([]byte(`null`), &set))
	assert.True(t, set.IsZero())

	_, ok := set.Resolve("single")
	assert.False(t, ok)
}

func TestDeductionSet_BothShapes(t *testing.T) {
	var flat DeductionSet
	require.NoError(t, json.Unmarshal([]byte(`"14600"`), &flat))
	assert.True(t, flat.Resolve("married_joint").Equal(dec("14600")))

	var keyed DeductionSet
	require.NoError(t, json.Unmarshal([]byte(`{"single":"14600","married_joint":"29200"}`), &keyed))
	assert.True(t, keyed.Resolve("married_joint").Equal(dec("29200")))
	assert.True(t, keyed.Resolve("head_of_household").Equal(dec("14600")), "falls back to single")

	var empty DeductionSet
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.Resolve("single").IsZero())
}

func TestResolveStrategy(t *testing.T) {
	flat := dec("0.15")
	tests := []struct {
		name    string
		txnType string
		md      Metadata
		want    Strategy
	}{
		{"bracket ladder", TxnTypeIncome, Metadata{IncomeTax: &IncomeTaxParams{
			Brackets: BracketSet{Flat: []Bracket{{Min: dec("0"), Rate: dec("0.10")}}},
		}}, StrategyProgressiveIncome},
		{"flat rate only", TxnTypeIncome, Metadata{IncomeTax: &IncomeTaxParams{FlatRate: &flat}}, StrategyFlatIncome},
		{"corporate uses income shape", TxnTypeCorporateIncome, Metadata{IncomeTax: &IncomeTaxParams{FlatRate: &flat}}, StrategyFlatIncome},
		{"sale with sales params", TxnTypeSale, Metadata{SalesTax: &SalesTaxParams{BaseRate: dec("0.05")}}, StrategySalesTax},
		{"purchase with vat only", TxnTypePurchase, Metadata{VAT: &VATParams{StandardRate: dec("0.20")}}, StrategyVAT},
		{"sales precedence over vat", TxnTypeSale, Metadata{
			SalesTax: &SalesTaxParams{BaseRate: dec("0.05")},
			VAT:      &VATParams{StandardRate: dec("0.20")},
		}, StrategySalesTax},
		{"payroll falls back to rules", TxnTypePayroll, Metadata{Payroll: &PayrollParams{}}, StrategyFallback},
		{"income without params", TxnTypeIncome, Metadata{}, StrategyFallback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveStrategy(tc.txnType, tc.md))
		})
	}
}
