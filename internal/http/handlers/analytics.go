package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentalhealthai/mhai-backend/internal/http/response"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/dbctx"
	"github.com/mentalhealthai/mhai-backend/internal/services"
)

type AnalyticsHandler struct {
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func analyticsStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnknownPeriod):
		return http.StatusBadRequest, "unknown_period"
	case errors.Is(err, services.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	default:
		return http.StatusInternalServerError, "analytics_failed"
	}
}

func topParam(c *gin.Context) (int, bool) {
	raw := c.Query("top")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_top", err)
		return 0, false
	}
	return n, true
}

// GET /api/analytics/summary?period=
func (ah *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := ah.analytics.Summary(dbctx.Context{Ctx: c.Request.Context()}, c.Query("period"))
	if err != nil {
		status, code := analyticsStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, summary)
}

// GET /api/analytics/:category/frequency?period=&top=
func (ah *AnalyticsHandler) Frequency(c *gin.Context) {
	top, ok := topParam(c)
	if !ok {
		return
	}
	points, err := ah.analytics.Frequency(
		dbctx.Context{Ctx: c.Request.Context()},
		c.Param("category"),
		c.Query("period"),
		top,
	)
	if err != nil {
		status, code := analyticsStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"frequency": points})
}

// GET /api/analytics/:category/series?period=&top=
func (ah *AnalyticsHandler) Series(c *gin.Context) {
	top, ok := topParam(c)
	if !ok {
		return
	}
	points, err := ah.analytics.Series(
		dbctx.Context{Ctx: c.Request.Context()},
		c.Param("category"),
		c.Query("period"),
		top,
	)
	if err != nil {
		status, code := analyticsStatus(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, gin.H{"series": points})
}
