package engine

import (
	"github.com/shopspring/decimal"
)

// Numeric comparison tolerances for regression replay.
var (
	amountTolerance = decimal.RequireFromString("0.01")
	rateTolerance   = decimal.RequireFromString("0.0001")
)

// RunRegression replays every regression case embedded in the rulepack
// through the evaluator and compares against the expected values. A pack
// with zero cases short-circuits to an all-zero summary — absence of tests
// is not itself a failure, the install pipeline decides what zero coverage
// means. An evaluation error counts as a failed case carrying the message.
func RunRegression(pack *Rulepack) (RegressionSummary, []RegressionResult) {
	if len(pack.RegressionCases) == 0 {
		return RegressionSummary{}, nil
	}

	summary := RegressionSummary{Total: len(pack.RegressionCases)}
	results := make([]RegressionResult, 0, len(pack.RegressionCases))

	for _, c := range pack.RegressionCases {
		result := runCase(pack, c)
		switch result.Status {
		case RegressionPass:
			summary.Passed++
		case RegressionSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		results = append(results, result)
	}

	return summary, results
}

func runCase(pack *Rulepack, c RegressionCase) RegressionResult {
	result := RegressionResult{CaseID: c.ID, Expected: c.Expected}

	if c.Skip {
		result.Status = RegressionSkipped
		return result
	}

	actual, err := Evaluate(pack, c.Transaction)
	if err != nil {
		result.Status = RegressionFail
		result.Error = err.Error()
		return result
	}
	result.Actual = &actual
	result.Diffs = map[string]decimal.Decimal{}

	pass := true

	amountDiff := actual.TaxAmount.Sub(c.Expected.TaxAmount).Abs()
	if amountDiff.GreaterThan(amountTolerance) {
		result.Diffs["tax_amount"] = amountDiff
		pass = false
	}

	if c.Expected.TaxRate != nil {
		rateDiff := actual.TaxRate.Sub(*c.Expected.TaxRate).Abs()
		if rateDiff.GreaterThan(rateTolerance) {
			result.Diffs["tax_rate"] = rateDiff
			pass = false
		}
	}

	if len(c.Expected.FilingBoxes) > 0 {
		boxes := ProjectFilingBoxes(pack, c.Transaction, actual)
		actual.FilingBoxes = boxes
		// One-directional check: every expected box must match, extra
		// actual boxes are ignored.
		for boxID, want := range c.Expected.FilingBoxes {
			got, ok := boxes[boxID]
			if !ok {
				result.Diffs["box:"+boxID] = want
				pass = false
				continue
			}
			diff := got.Sub(want).Abs()
			if diff.GreaterThan(amountTolerance) {
				result.Diffs["box:"+boxID] = diff
				pass = false
			}
		}
	}

	if pass {
		result.Status = RegressionPass
		result.Diffs = nil
	} else {
		result.Status = RegressionFail
	}
	return result
}
