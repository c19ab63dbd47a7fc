package credits

import "carbon-scribe/credit-registry-backend/internal/models"

type IssueCreditRequest struct {
	ProjectID      string  `json:"project_id" binding:"required"`
	VerificationID string  `json:"verification_id" binding:"required"`
	CreditsAmount  float64 `json:"credits_amount" binding:"required,gt=0"`
	Methodology    string  `json:"methodology"`
	Vintage        string  `json:"vintage" binding:"omitempty,len=4,numeric"`
	Description    string  `json:"description"`
}

type RetireRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Beneficiary string `json:"beneficiary"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type Filter struct {
	ProjectID string
	Status    models.CreditStatus
}
