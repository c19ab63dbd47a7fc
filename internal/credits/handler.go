package credits

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for carbon credits
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers credit routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	credits := router.Group("/credits")
	{
		credits.GET("", h.listCredits)
		credits.POST("/generate", h.issueCredit)
		credits.GET("/:id", h.getCredit)
		credits.POST("/:id/retire", h.retireCredit)
		credits.POST("/:id/cancel", h.cancelCredit)

		// Certificates
		credits.GET("/:id/certificate", h.getCertificate)
		credits.GET("/:id/certificate.pdf", h.downloadCertificate)
	}
}

// issueCredit handles POST /api/v1/credits/generate
func (h *Handler) issueCredit(c *gin.Context) {
	var req IssueCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	credit, err := h.service.IssueCredit(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, credit)
}

func (h *Handler) listCredits(c *gin.Context) {
	filter := Filter{
		ProjectID: c.Query("project_id"),
		Status:    models.CreditStatus(c.Query("status")),
	}
	credits, err := h.service.ListCredits(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, credits)
}

func (h *Handler) getCredit(c *gin.Context) {
	credit, err := h.service.GetCredit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, credit)
}

func (h *Handler) retireCredit(c *gin.Context) {
	var req RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	credit, err := h.service.RetireCredit(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, credit)
}

func (h *Handler) cancelCredit(c *gin.Context) {
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}
	credit, err := h.service.CancelCredit(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, credit)
}

// getCertificate handles GET /api/v1/credits/:id/certificate
func (h *Handler) getCertificate(c *gin.Context) {
	cert, err := h.service.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, cert)
}

// downloadCertificate handles GET /api/v1/credits/:id/certificate.pdf
func (h *Handler) downloadCertificate(c *gin.Context) {
	doc, cert, err := h.service.CertificatePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", cert.CertificateNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}
