package uploads

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for data uploads
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers upload routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	uploads := router.Group("/uploads")
	{
		uploads.GET("", h.listUploads)
		uploads.POST("", h.createUpload)
		uploads.GET("/:id", h.getUpload)
		uploads.DELETE("/:id", h.deleteUpload)
		uploads.PATCH("/:id/status", h.updateStatus)
		uploads.GET("/:id/files/:index", h.downloadFile)
	}
}

// createUpload handles POST /api/v1/uploads (multipart/form-data)
func (h *Handler) createUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, h.logger, apperr.Validation("multipart form expected: %v", err))
		return
	}

	in := &CreateUploadInput{
		ProjectID: c.PostForm("project_id"),
		DataType:  models.DataType(c.PostForm("data_type")),
	}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Metadata); err != nil {
			response.Error(c, h.logger, apperr.Field("metadata", "must be a JSON object"))
			return
		}
	}

	headers := append(form.File["files"], form.File["files[]"]...)
	for _, fh := range headers {
		in.Files = append(in.Files, FileInput{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	upload, err := h.service.CreateUpload(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, upload)
}

func (h *Handler) listUploads(c *gin.Context) {
	filter := Filter{
		ProjectID: c.Query("project_id"),
		Status:    models.UploadStatus(c.Query("status")),
		DataType:  models.DataType(c.Query("data_type")),
	}
	uploads, err := h.service.ListUploads(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, uploads)
}

func (h *Handler) getUpload(c *gin.Context) {
	upload, err := h.service.GetUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, upload)
}

func (h *Handler) deleteUpload(c *gin.Context) {
	if err := h.service.DeleteUpload(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// updateStatus handles PATCH /api/v1/uploads/:id/status
func (h *Handler) updateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	upload, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), middleware.Actor(c), req.Status)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, upload)
}

// downloadFile handles GET /api/v1/uploads/:id/files/:index
func (h *Handler) downloadFile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, h.logger, apperr.Field("index", "must be a number"))
		return
	}

	download, err := h.service.OpenFile(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if download.URL != "" {
		c.Redirect(http.StatusTemporaryRedirect, download.URL)
		return
	}
	defer download.Body.Close()

	c.DataFromReader(http.StatusOK, download.File.Size, download.File.MimeType, download.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.File.OriginalName),
		"X-Checksum":          download.File.Checksum,
	})
}
