package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/domain/errs"
)

// GetSummary handles GET /api/requests/:id/summary?currency=
func (h *Handlers) GetSummary(c *gin.Context) {
	rs, err := h.report.GetSummary(c.Request.Context(), actor(c), c.Param("id"), c.Query("currency"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, rs)
}

// ExportRequest handles GET /api/requests/:id/export?currency=
func (h *Handlers) ExportRequest(c *gin.Context) {
	export, err := h.report.ExportRequest(c.Request.Context(), actor(c), c.Param("id"), c.Query("currency"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// ConvertCurrency handles GET /api/currency/convert?amount=&from=&to=
func (h *Handlers) ConvertCurrency(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("amount"))
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		h.writeError(c, errs.NewValidationError("invalid conversion").Add("amount", "must be a decimal number"))
		return
	}

	conv, err := h.report.ConvertCurrency(c.Request.Context(), amount, c.Query("from"), c.Query("to"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, conv)
}

// CacheStatus handles GET /api/currency/cache?base=
func (h *Handlers) CacheStatus(c *gin.Context) {
	status, err := h.report.CacheStatus(c.Query("base"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, status)
}

// ClearCache handles DELETE /api/currency/cache. Only reviewers and admins
// may drop the shared cache.
func (h *Handlers) ClearCache(c *gin.Context) {
	a := actor(c)
	if !a.CanReview() {
		h.writeError(c, errs.NewAuthorizationError(a.ID, "clear exchange rate cache", "reviewer role required"))
		return
	}

	status := h.report.ClearCache(c.Request.Context())
	h.logger.Info("Exchange rate cache cleared via API", "actor_id", a.ID)
	ok(c, http.StatusOK, status)
}
