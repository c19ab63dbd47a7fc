package marketplace

import (
	"time"

	"carbon-scribe/credit-registry-backend/internal/models"
)

// Histogram bucket edges for PriceStats.
const (
	lowPriceCeiling    = 10.0
	mediumPriceCeiling = 20.0
)

type CreateListingRequest struct {
	CreditID        string     `json:"credit_id" binding:"required"`
	SellerID        string     `json:"seller_id"`
	Price           float64    `json:"price" binding:"required,gt=0"`
	Currency        string     `json:"currency" binding:"omitempty,len=3,alpha"`
	MinimumQuantity *float64   `json:"minimum_quantity" binding:"omitempty,gt=0"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	Description     string     `json:"description"`
}

type PurchaseRequest struct {
	BuyerID  string  `json:"buyer_id" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// BrowseFilter narrows the active listings. Price bounds are inclusive.
type BrowseFilter struct {
	Category models.ProjectCategory
	MinPrice *float64
	MaxPrice *float64
}

type PriceDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// PriceStats summarises the prices of active listings.
type PriceStats struct {
	AveragePrice  float64           `json:"average_price"`
	MinPrice      float64           `json:"min_price"`
	MaxPrice      float64           `json:"max_price"`
	TotalListings int               `json:"total_listings"`
	Distribution  PriceDistribution `json:"price_distribution"`
}

type PurchaseResult struct {
	Listing     *models.MarketplaceListing `json:"listing"`
	Transaction models.Transaction         `json:"transaction"`
}
