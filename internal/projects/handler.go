package projects

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for projects
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers project routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects")
	{
		projects.GET("", h.listProjects)
		projects.POST("", h.createProject)
		projects.GET("/search", h.searchProjects)
		projects.GET("/:id", h.getProject)
		projects.PUT("/:id", h.updateProject)
		projects.DELETE("/:id", h.deleteProject)
		projects.PATCH("/:id/status", h.changeStatus)
		projects.GET("/:id/transitions", h.nextSteps)
		projects.GET("/:id/overlaps", h.overlaps)
	}
}

// createProject handles POST /api/v1/projects
func (h *Handler) createProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, project)
}

// listProjects handles GET /api/v1/projects
func (h *Handler) listProjects(c *gin.Context) {
	filter := Filter{
		Status:   models.ProjectStatus(c.Query("status")),
		Category: models.ProjectCategory(c.Query("category")),
		Country:  c.Query("country"),
	}

	projects, err := h.service.ListProjects(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, projects)
}

// searchProjects handles GET /api/v1/projects/search?q=
func (h *Handler) searchProjects(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	projects, err := h.service.SearchProjects(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, projects)
}

func (h *Handler) getProject(c *gin.Context) {
	project, err := h.service.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, project)
}

func (h *Handler) updateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	project, err := h.service.UpdateProject(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, project)
}

func (h *Handler) deleteProject(c *gin.Context) {
	if err := h.service.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// changeStatus handles PATCH /api/v1/projects/:id/status
func (h *Handler) changeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	project, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), middleware.Actor(c), req.Status)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, project)
}

// nextSteps handles GET /api/v1/projects/:id/transitions
func (h *Handler) nextSteps(c *gin.Context) {
	steps, err := h.service.NextSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, steps)
}

func (h *Handler) overlaps(c *gin.Context) {
	projects, err := h.service.Overlaps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, projects)
}
