package handler

import (
	"errors"
	"net/http"
	"strconv"

	"taxengine/internal/engine"
	"taxengine/internal/middleware"
	"taxengine/internal/repository"
	"taxengine/internal/service"
	"taxengine/pkg/pagination"
	"taxengine/pkg/response"

	"github.com/gin-gonic/gin"
)

type RulepackHandler struct {
	rulepackService   service.RulepackService
	installService    service.InstallService
	regressionService service.RegressionService
}

func NewRulepackHandler(
	rulepackService service.RulepackService,
	installService service.InstallService,
	regressionService service.RegressionService,
) *RulepackHandler {
	return &RulepackHandler{
		rulepackService:   rulepackService,
		installService:    installService,
		regressionService: regressionService,
	}
}

func (h *RulepackHandler) RegisterRoutes(router *gin.RouterGroup) {
	packs := router.Group("/api/rulepacks")
	packs.Use(middleware.RequireRole("admin", "analyst", "staff"))
	{
		packs.GET("", h.ListRulepacks)
		packs.GET("/resolve", h.ResolveRulepack)
		packs.GET("/:id", h.GetRulepack)
	}

	admin := router.Group("/api/rulepacks")
	admin.Use(middleware.RequireRole("admin", "analyst"))
	{
		admin.POST("", h.InstallRulepack)
		admin.POST("/:id/regression", h.RunRegression)
	}
}

// ListRulepacks returns stored rulepacks with optional jurisdiction/status/year filters
func (h *RulepackHandler) ListRulepacks(c *gin.Context) {
	params := pagination.Parse(c)
	year, _ := strconv.Atoi(c.Query("year"))

	filter := repository.RulepackFilter{
		JurisdictionCode: c.Query("jurisdiction"),
		Status:           c.Query("status"),
		Year:             year,
		Page:             params.Page,
		Limit:            params.Limit,
	}

	items, total, err := h.rulepackService.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// @Summary      Resolve the rulepack for a jurisdiction and year
// @Description  Returns the versioned definition the evaluator would use, falling back to the compiled-in registry when no persisted pack covers the request.
// @Tags         rulepacks
// @Produce      json
// @Param        jurisdiction  query  string  true  "Jurisdiction code, e.g. US or US-CA"
// @Param        year          query  int     true  "Tax year"
// @Security     BearerAuth
// @Router       /api/rulepacks/resolve [get]
func (h *RulepackHandler) ResolveRulepack(c *gin.Context) {
	jurisdiction := c.Query("jurisdiction")
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || jurisdiction == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "jurisdiction and year query parameters are required"))
		return
	}

	opts := service.ResolveOptions{
		Status:          c.Query("status"),
		IncludeInactive: c.Query("include_inactive") == "true",
	}

	pack, err := h.rulepackService.Resolve(c.Request.Context(), jurisdiction, year, opts)
	if err != nil {
		if errors.Is(err, service.ErrRulepackNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pack))
}

// GetRulepack returns one stored rulepack by id
func (h *RulepackHandler) GetRulepack(c *gin.Context) {
	pack, err := h.rulepackService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRulepackNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pack))
}

// InstallRequest wraps a rulepack definition with install options.
type InstallRequest struct {
	Rulepack     engine.Rulepack `json:"rulepack" binding:"required"`
	TargetStatus string          `json:"target_status"`
	Force        bool            `json:"force"`
}

// @Summary      Install a rulepack version
// @Description  Runs the embedded regression suite, computes the content checksum, and atomically persists the pack. Regression failures block the install unless force is set.
// @Tags         rulepacks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/rulepacks [post]
func (h *RulepackHandler) InstallRulepack(c *gin.Context) {
	var req InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	policy := service.PolicyRequireCleanRegression
	if req.Force {
		policy = service.PolicyAllowFailures
	}

	userID, _ := c.Get("userID")
	opts := service.InstallOptions{
		TargetStatus: req.TargetStatus,
		Policy:       policy,
	}
	if id, ok := userID.(string); ok {
		opts.UserID = id
	}

	report, err := h.installService.Install(c.Request.Context(), req.Rulepack, opts)
	if err != nil {
		var installErr *service.InstallError
		if errors.As(err, &installErr) {
			// 422 carries every failing case so operators can judge the
			// change without re-running anything.
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, installErr.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, report))
}

// RunRegression replays the stored pack's regression suite and refreshes audit rows
func (h *RulepackHandler) RunRegression(c *gin.Context) {
	report, err := h.regressionService.RunForRulepack(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRulepackNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
