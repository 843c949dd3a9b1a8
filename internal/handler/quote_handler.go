package handler

import (
	"errors"
	"net/http"

	"taxengine/internal/middleware"
	"taxengine/internal/service"
	"taxengine/pkg/response"

	"github.com/gin-gonic/gin"
)

type QuoteHandler struct {
	quoteService service.QuoteService
}

func NewQuoteHandler(quoteService service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

func (h *QuoteHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax")
	tax.Use(middleware.RequireRole("admin", "analyst", "staff"))
	{
		tax.POST("/quote", h.Quote)
	}
}

// @Summary      Ad-hoc tax quote
// @Description  Resolves the applicable rulepack and evaluates the transaction, optionally projecting official filing-form boxes.
// @Tags         tax
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/tax/quote [post]
func (h *QuoteHandler) Quote(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.Quote(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrRulepackNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}
