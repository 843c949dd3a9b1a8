package service

import (
	"context"
	"fmt"

	"taxengine/internal/engine"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type QuoteRequest struct {
	JurisdictionCode  string                 `json:"jurisdiction_code" binding:"required"`
	Year              int                    `json:"year" binding:"required"`
	Amount            string                 `json:"amount" binding:"required"` // Decimal string, e.g. "95000"
	Type              string                 `json:"type" binding:"required,oneof=income sale purchase corporate_income payroll"`
	FilingStatus      string                 `json:"filing_status"`
	Category          string                 `json:"category"`
	Deductions        string                 `json:"deductions"`
	Credits           string                 `json:"credits"`
	StateCode         string                 `json:"state_code"`
	Metadata          map[string]interface{} `json:"metadata"`
	IncludeFilingBoxes bool                  `json:"include_filing_boxes"`
}

type QuoteResponse struct {
	JurisdictionCode string            `json:"jurisdiction_code"`
	RulepackVersion  string            `json:"rulepack_version"`
	RuleID           string            `json:"rule_id"`
	TaxAmount        string            `json:"tax_amount"`
	TaxRate          string            `json:"tax_rate"`
	FilingBoxes      map[string]string `json:"filing_boxes,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
}

// --- Interface ---

// QuoteService answers ad-hoc "what would tax be" questions: resolve a
// rulepack, evaluate the transaction, optionally project filing boxes.
type QuoteService interface {
	Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error)
}

type quoteService struct {
	rulepacks RulepackService
}

func NewQuoteService(rulepacks RulepackService) QuoteService {
	return &quoteService{rulepacks: rulepacks}
}

// --- Implementation ---

func (s *quoteService) Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error) {
	txn, err := parseTransaction(req)
	if err != nil {
		return QuoteResponse{}, err
	}

	pack, err := s.rulepacks.Resolve(ctx, req.JurisdictionCode, req.Year, ResolveOptions{})
	if err != nil {
		return QuoteResponse{}, err
	}

	result, err := engine.Evaluate(pack, txn)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("evaluation failed: %w", err)
	}

	if req.IncludeFilingBoxes {
		result.FilingBoxes = engine.ProjectFilingBoxes(pack, txn, result)
	}

	return toQuoteResponse(result), nil
}

// --- Helpers ---

func parseTransaction(req QuoteRequest) (engine.Transaction, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return engine.Transaction{}, fmt.Errorf("invalid amount value: %w", err)
	}

	txn := engine.Transaction{
		Amount:       amount,
		Type:         req.Type,
		FilingStatus: req.FilingStatus,
		Category:     req.Category,
		StateCode:    req.StateCode,
		Metadata:     req.Metadata,
	}

	if req.Deductions != "" {
		if txn.Deductions, err = decimal.NewFromString(req.Deductions); err != nil {
			return engine.Transaction{}, fmt.Errorf("invalid deductions value: %w", err)
		}
	}
	if req.Credits != "" {
		if txn.Credits, err = decimal.NewFromString(req.Credits); err != nil {
			return engine.Transaction{}, fmt.Errorf("invalid credits value: %w", err)
		}
	}
	return txn, nil
}

func toQuoteResponse(result engine.CalculationResult) QuoteResponse {
	resp := QuoteResponse{
		JurisdictionCode: result.JurisdictionCode,
		RulepackVersion:  result.RulepackVersion,
		RuleID:           result.RuleID,
		TaxAmount:        result.TaxAmount.StringFixed(2),
		TaxRate:          result.TaxRate.StringFixed(4),
	}
	if len(result.FilingBoxes) > 0 {
		resp.FilingBoxes = make(map[string]string, len(result.FilingBoxes))
		for box, v := range result.FilingBoxes {
			resp.FilingBoxes[box] = v.StringFixed(2)
		}
	}
	if len(result.Details) > 0 {
		resp.Details = make(map[string]string, len(result.Details))
		for k, v := range result.Details {
			resp.Details[k] = v.String()
		}
	}
	return resp
}
