package models

import (
	"time"

	"carbon-scribe/credit-registry-backend/internal/store"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingExpired   ListingStatus = "expired"
	ListingCancelled ListingStatus = "cancelled"
)

const TransactionCompleted = "completed"

type Transaction struct {
	ID       string    `json:"id" bson:"id"`
	BuyerID  string    `json:"buyer_id" bson:"buyer_id"`
	Quantity float64   `json:"quantity" bson:"quantity"`
	Price    float64   `json:"price" bson:"price"`
	Total    float64   `json:"total" bson:"total"`
	Date     time.Time `json:"date" bson:"date"`
	Status   string    `json:"status" bson:"status"`
}

type MarketplaceListing struct {
	store.Meta        `bson:",inline"`
	CreditID          string        `json:"credit_id" bson:"credit_id"`
	SellerID          string        `json:"seller_id,omitempty" bson:"seller_id,omitempty"`
	Price             float64       `json:"price" bson:"price"`
	Currency          string        `json:"currency" bson:"currency"`
	MinimumQuantity   float64       `json:"minimum_quantity" bson:"minimum_quantity"`
	AvailableQuantity float64       `json:"available_quantity" bson:"available_quantity"`
	ExpiryDate        *time.Time    `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	Description       string        `json:"description,omitempty" bson:"description,omitempty"`
	Status            ListingStatus `json:"status" bson:"status"`
	Transactions      []Transaction `json:"transactions" bson:"transactions"`
}
