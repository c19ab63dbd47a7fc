package portfolio

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/response"
	"carbon-scribe/credit-registry-backend/pkg/export"
)

// Handler serves the credit portfolio rollup
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the portfolio routes under /credits
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	credits := router.Group("/credits")
	{
		credits.GET("/portfolio", h.getPortfolio)
		credits.GET("/portfolio/export", h.exportPortfolio)
	}
}

// getPortfolio handles GET /api/v1/credits/portfolio
func (h *Handler) getPortfolio(c *gin.Context) {
	portfolio, err := h.service.Portfolio(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, portfolio)
}

// exportPortfolio handles GET /api/v1/credits/portfolio/export?format=xlsx|csv
func (h *Handler) exportPortfolio(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, h.logger, apperr.Field("format", "must be xlsx or csv"))
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), &buf, format); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("portfolio-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
