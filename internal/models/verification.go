package models

import (
	"time"

	"carbon-scribe/credit-registry-backend/internal/store"
)

type VerificationStatus string

const (
	VerificationPending           VerificationStatus = "pending"
	VerificationUnderReview       VerificationStatus = "under_review"
	VerificationApproved          VerificationStatus = "approved"
	VerificationRejected          VerificationStatus = "rejected"
	VerificationMoreDataRequested VerificationStatus = "more_data_requested"
	VerificationCreditIssued      VerificationStatus = "credit_issued"
)

// Decision is one entry of a submission's review trail.
type Decision struct {
	Status   VerificationStatus `json:"status" bson:"status"`
	Actor    string             `json:"actor,omitempty" bson:"actor,omitempty"`
	Comments string             `json:"comments,omitempty" bson:"comments,omitempty"`
	At       time.Time          `json:"at" bson:"at"`
}

type VerificationSubmission struct {
	store.Meta       `bson:",inline"`
	UploadID         string             `json:"upload_id" bson:"upload_id"`
	ProjectID        string             `json:"project_id" bson:"project_id"`
	DataType         DataType           `json:"data_type" bson:"data_type"`
	Metadata         UploadMetadata     `json:"metadata" bson:"metadata"`
	Status           VerificationStatus `json:"status" bson:"status"`
	SubmittedBy      string             `json:"submitted_by,omitempty" bson:"submitted_by,omitempty"`
	Notes            string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Reviewer         string             `json:"reviewer,omitempty" bson:"reviewer,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
	Comments         string             `json:"comments,omitempty" bson:"comments,omitempty"`
	CreditsGenerated float64            `json:"credits_generated" bson:"credits_generated"`
	QualityScore     *float64           `json:"quality_score,omitempty" bson:"quality_score,omitempty"`
	RejectionReason  string             `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	RequiredActions  []string           `json:"required_actions,omitempty" bson:"required_actions,omitempty"`
	RequestedData    []string           `json:"requested_data,omitempty" bson:"requested_data,omitempty"`
	CreditID         string             `json:"credit_id,omitempty" bson:"credit_id,omitempty"`
	History          []Decision         `json:"history" bson:"history"`
}
