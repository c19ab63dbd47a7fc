package models

import (
	"time"

	"carbon-scribe/credit-registry-backend/internal/store"
)

// DefaultMethodology is stamped on credits issued without one.
const DefaultMethodology = "VM0033"

type CreditStatus string

const (
	CreditIssued    CreditStatus = "issued"
	CreditActive    CreditStatus = "active"
	CreditRetired   CreditStatus = "retired"
	CreditCancelled CreditStatus = "cancelled"
)

func (s CreditStatus) Terminal() bool {
	return s == CreditRetired || s == CreditCancelled
}

type CarbonCredit struct {
	store.Meta       `bson:",inline"`
	ProjectID        string       `json:"project_id" bson:"project_id"`
	VerificationID   string       `json:"verification_id" bson:"verification_id"`
	CreditsAmount    float64      `json:"credits_amount" bson:"credits_amount"`
	Methodology      string       `json:"methodology" bson:"methodology"`
	Vintage          string       `json:"vintage" bson:"vintage"`
	SerialNumber     string       `json:"serial_number" bson:"serial_number"`
	Description      string       `json:"description,omitempty" bson:"description,omitempty"`
	Status           CreditStatus `json:"status" bson:"status"`
	IssuedAt         time.Time    `json:"issued_at" bson:"issued_at"`
	IssuedBy         string       `json:"issued_by,omitempty" bson:"issued_by,omitempty"`
	RetiredAt        *time.Time   `json:"retired_at,omitempty" bson:"retired_at,omitempty"`
	RetirementReason string       `json:"retirement_reason,omitempty" bson:"retirement_reason,omitempty"`
	Beneficiary      string       `json:"beneficiary,omitempty" bson:"beneficiary,omitempty"`
	// ListingID holds the active marketplace listing while the credit is on sale.
	ListingID string `json:"listing_id,omitempty" bson:"listing_id,omitempty"`
	// SoldQuantity is the total bought through marketplace listings.
	SoldQuantity float64 `json:"sold_quantity" bson:"sold_quantity"`
}

// Unsold is the part of the credit that can still be put on the market.
func (c *CarbonCredit) Unsold() float64 {
	return c.CreditsAmount - c.SoldQuantity
}

// Certificate is the descriptive record behind a credit certificate.
type Certificate struct {
	CertificateNumber string    `json:"certificate_number"`
	CreditID          string    `json:"credit_id"`
	SerialNumber      string    `json:"serial_number"`
	ProjectID         string    `json:"project_id"`
	ProjectName       string    `json:"project_name"`
	ProjectCategory   string    `json:"project_category"`
	Country           string    `json:"country"`
	CreditsAmount     float64   `json:"credits_amount"`
	Methodology       string    `json:"methodology"`
	Vintage           string    `json:"vintage"`
	Status            string    `json:"status"`
	IssuedAt          time.Time `json:"issued_at"`
	Beneficiary       string    `json:"beneficiary,omitempty"`
	URL               string    `json:"url"`
	PDFURL            string    `json:"pdf_url"`
}
