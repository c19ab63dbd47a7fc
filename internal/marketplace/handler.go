package marketplace

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// Handler handles HTTP requests for the credit marketplace
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers marketplace routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	marketplace := router.Group("/marketplace")
	{
		marketplace.GET("/listings", h.browse)
		marketplace.POST("/listings", h.createListing)
		marketplace.GET("/listings/:id", h.getListing)
		marketplace.POST("/listings/:id/purchase", h.purchase)
		marketplace.POST("/listings/:id/cancel", h.cancelListing)
		marketplace.GET("/stats", h.priceStats)
	}
}

// browse handles GET /api/v1/marketplace/listings
func (h *Handler) browse(c *gin.Context) {
	filter := BrowseFilter{Category: models.ProjectCategory(c.Query("category"))}
	var err error
	if filter.MinPrice, err = floatQuery(c, "min_price"); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if filter.MaxPrice, err = floatQuery(c, "max_price"); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	listings, err := h.service.Browse(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.List(c, listings)
}

func (h *Handler) createListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	listing, err := h.service.CreateListing(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, listing)
}

func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.service.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, listing)
}

func (h *Handler) purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.Purchase(c.Request.Context(), c.Param("id"), middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) cancelListing(c *gin.Context) {
	listing, err := h.service.CancelListing(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, listing)
}

// priceStats handles GET /api/v1/marketplace/stats
func (h *Handler) priceStats(c *gin.Context) {
	stats, err := h.service.PriceStats(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stats)
}

func floatQuery(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Field(key, "must be a number")
	}
	return &v, nil
}
