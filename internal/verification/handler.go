package verification

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for the verification workflow
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	verifications := router.Group("/verifications")
	{
		verifications.GET("", h.listVerifications)
		verifications.POST("/submit", h.submit)
		verifications.GET("/history/:projectId", h.history)
		verifications.GET("/:id", h.getVerification)
		verifications.GET("/:id/transitions", h.nextSteps)

		// Reviewer decisions
		verifications.POST("/:id/review", h.startReview)
		verifications.POST("/:id/approve", h.approve)
		verifications.POST("/:id/reject", h.reject)
		verifications.POST("/:id/request-data", h.requestMoreData)
	}
}

// submit handles POST /api/v1/verifications/submit
func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, submission)
}

func (h *Handler) listVerifications(c *gin.Context) {
	filter := Filter{
		Status:    models.VerificationStatus(c.Query("status")),
		ProjectID: c.Query("project_id"),
	}
	submissions, err := h.service.ListVerifications(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, submissions)
}

// history handles GET /api/v1/verifications/history/:projectId
func (h *Handler) history(c *gin.Context) {
	submissions, err := h.service.History(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, submissions)
}

func (h *Handler) getVerification(c *gin.Context) {
	submission, err := h.service.GetVerification(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, submission)
}

// nextSteps handles GET /api/v1/verifications/:id/transitions
func (h *Handler) nextSteps(c *gin.Context) {
	steps, err := h.service.NextSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, steps)
}

func (h *Handler) startReview(c *gin.Context) {
	var req ReviewRequest
	if !bindOptional(c, &req) {
		return
	}
	submission, err := h.service.StartReview(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, submission)
}

func (h *Handler) approve(c *gin.Context) {
	var req ApproveRequest
	if !bindOptional(c, &req) {
		return
	}
	submission, err := h.service.Approve(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, submission)
}

func (h *Handler) reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	submission, err := h.service.Reject(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, submission)
}

// requestMoreData handles POST /api/v1/verifications/:id/request-data
func (h *Handler) requestMoreData(c *gin.Context) {
	var req RequestDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	submission, err := h.service.RequestMoreData(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, submission)
}

// bindOptional binds a JSON body when one was sent. Review and approval
// carry only optional fields, so an empty body is fine.
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.BindError(c, err)
		return false
	}
	return true
}
