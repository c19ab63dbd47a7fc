package verification

import "carbon-scribe/credit-registry-backend/internal/models"

type SubmitRequest struct {
	UploadID    string `json:"upload_id" binding:"required"`
	SubmittedBy string `json:"submitted_by"`
	Notes       string `json:"notes"`
}

type ReviewRequest struct {
	Reviewer string `json:"reviewer"`
	Comments string `json:"comments"`
}

type ApproveRequest struct {
	Reviewer         string   `json:"reviewer"`
	CreditsGenerated *float64 `json:"credits_generated" binding:"omitempty,gte=0"`
	QualityScore     *float64 `json:"quality_score" binding:"omitempty,gte=0,lte=100"`
	Comments         string   `json:"comments"`
}

type RejectRequest struct {
	Reviewer        string   `json:"reviewer"`
	Reason          string   `json:"reason" binding:"required"`
	Comments        string   `json:"comments"`
	RequiredActions []string `json:"required_actions"`
}

type RequestDataRequest struct {
	Reviewer      string   `json:"reviewer"`
	RequestedData []string `json:"requested_data" binding:"required,min=1"`
	Comments      string   `json:"comments"`
}

type Filter struct {
	Status    models.VerificationStatus
	ProjectID string
}

// Policy decides how reviewer decisions treat submissions that already
// reached a final decision.
type Policy struct {
	// StrictTransitions refuses any decision the verification lifecycle
	// does not allow. When false a decision may overwrite an earlier one,
	// except once a credit has been issued.
	StrictTransitions bool
}
