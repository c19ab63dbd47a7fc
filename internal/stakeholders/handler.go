package stakeholders

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for stakeholders
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers stakeholder routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	stakeholders := router.Group("/stakeholders")
	{
		stakeholders.GET("", h.listStakeholders)
		stakeholders.POST("", h.createStakeholder)
		stakeholders.GET("/:id", h.getStakeholder)
		stakeholders.PUT("/:id", h.updateStakeholder)
		stakeholders.DELETE("/:id", h.deleteStakeholder)
		stakeholders.POST("/:id/projects/:projectId", h.linkProject)
		stakeholders.DELETE("/:id/projects/:projectId", h.unlinkProject)
	}
}

func (h *Handler) createStakeholder(c *gin.Context) {
	var req CreateStakeholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	stakeholder, err := h.service.CreateStakeholder(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, stakeholder)
}

func (h *Handler) listStakeholders(c *gin.Context) {
	filter := Filter{
		Category: models.StakeholderCategory(c.Query("category")),
		Status:   models.StakeholderStatus(c.Query("status")),
	}
	stakeholders, err := h.service.ListStakeholders(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, stakeholders)
}

func (h *Handler) getStakeholder(c *gin.Context) {
	stakeholder, err := h.service.GetStakeholder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stakeholder)
}

func (h *Handler) updateStakeholder(c *gin.Context) {
	var req UpdateStakeholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	stakeholder, err := h.service.UpdateStakeholder(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stakeholder)
}

func (h *Handler) deleteStakeholder(c *gin.Context) {
	if err := h.service.DeleteStakeholder(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// linkProject handles POST /api/v1/stakeholders/:id/projects/:projectId
func (h *Handler) linkProject(c *gin.Context) {
	stakeholder, err := h.service.LinkProject(c.Request.Context(), c.Param("id"), c.Param("projectId"), middleware.Actor(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stakeholder)
}

func (h *Handler) unlinkProject(c *gin.Context) {
	stakeholder, err := h.service.UnlinkProject(c.Request.Context(), c.Param("id"), c.Param("projectId"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stakeholder)
}
