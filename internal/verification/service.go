// Package verification runs the review workflow for uploaded field data:
// submission, review, and the approve / reject / request-more-data
// decisions that gate credit issuance.
package verification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/metrics"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
	"carbon-scribe/credit-registry-backend/pkg/workflows"
)

type Service struct {
	stores       *database.Stores
	publisher    events.Publisher
	stateMachine *workflows.StateMachine
	policy       Policy
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(stores *database.Stores, publisher events.Publisher, policy Policy, logger *zap.Logger) *Service {
	return &Service{
		stores:       stores,
		publisher:    publisher,
		stateMachine: workflows.NewVerificationMachine(),
		policy:       policy,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Submit opens a pending submission for an upload. The upload is claimed
// for the submission first, so an upload that is being deleted cannot be
// submitted. When the submission cannot be stored the claim is undone.
func (s *Service) Submit(ctx context.Context, actor string, req *SubmitRequest) (*models.VerificationSubmission, error) {
	upload, err := s.stores.Uploads.Get(ctx, req.UploadID)
	if err != nil {
		return nil, apperr.FromStore(err, "upload", req.UploadID)
	}
	if _, err := s.stores.Projects.Get(ctx, upload.ProjectID); err != nil {
		return nil, apperr.FromStore(err, "project", upload.ProjectID)
	}

	id := ids.New(ids.PrefixVerification)
	var (
		previousStatus models.UploadStatus
		previousRef    string
	)
	upload, err = s.stores.Uploads.Update(ctx, upload.ID, func(u *models.DataUpload) error {
		if u.Status == models.UploadDeleting {
			return apperr.StateConflict("upload %s is being deleted", u.ID)
		}
		previousStatus, previousRef = u.Status, u.VerificationID
		u.Status = models.UploadSubmittedForVerification
		u.VerificationID = id
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "upload", req.UploadID)
	}

	submittedBy := firstNonEmpty(actor, req.SubmittedBy)
	now := s.now()
	submission := &models.VerificationSubmission{
		Meta:        store.Meta{ID: id},
		UploadID:    upload.ID,
		ProjectID:   upload.ProjectID,
		DataType:    upload.DataType,
		Metadata:    upload.Metadata,
		Status:      models.VerificationPending,
		SubmittedBy: submittedBy,
		Notes:       req.Notes,
		History: []models.Decision{{
			Status:   models.VerificationPending,
			Actor:    submittedBy,
			Comments: req.Notes,
			At:       now,
		}},
	}

	if _, err := s.stores.Verifications.Insert(ctx, submission); err != nil {
		s.releaseUpload(ctx, upload.ID, id, previousStatus, previousRef)
		return nil, apperr.FromStore(err, "verification", id)
	}

	metrics.VerificationSubmissions.Inc()
	s.logger.Info("Data submitted for verification",
		zap.String("verification_id", id),
		zap.String("upload_id", upload.ID),
		zap.String("project_id", upload.ProjectID))
	s.publisher.Publish(ctx, events.New(events.VerificationSubmitted, upload.ProjectID, id, submittedBy, map[string]interface{}{
		"upload_id": upload.ID,
		"data_type": string(upload.DataType),
	}))
	return submission, nil
}

// StartReview moves a submission into review.
func (s *Service) StartReview(ctx context.Context, id, actor string, req *ReviewRequest) (*models.VerificationSubmission, error) {
	reviewer := firstNonEmpty(actor, req.Reviewer)
	submission, err := s.stores.Verifications.Update(ctx, id, func(v *models.VerificationSubmission) error {
		if err := s.stateMachine.Transition(string(v.Status), string(models.VerificationUnderReview)); err != nil {
			return apperr.StateConflict("%s", err.Error())
		}
		v.Status = models.VerificationUnderReview
		v.Reviewer = reviewer
		v.History = append(v.History, models.Decision{
			Status:   models.VerificationUnderReview,
			Actor:    reviewer,
			Comments: req.Comments,
			At:       s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "verification", id)
	}
	return submission, nil
}

func (s *Service) Approve(ctx context.Context, id, actor string, req *ApproveRequest) (*models.VerificationSubmission, error) {
	if req.CreditsGenerated != nil && *req.CreditsGenerated < 0 {
		return nil, apperr.Field("credits_generated", "must be at least 0")
	}
	if req.QualityScore != nil && (*req.QualityScore < 0 || *req.QualityScore > 100) {
		return nil, apperr.Field("quality_score", "must be between 0 and 100")
	}

	return s.decide(ctx, id, firstNonEmpty(actor, req.Reviewer), models.VerificationApproved, req.Comments, nil,
		func(v *models.VerificationSubmission) {
			v.CreditsGenerated = 0
			if req.CreditsGenerated != nil {
				v.CreditsGenerated = *req.CreditsGenerated
			}
			v.QualityScore = req.QualityScore
		})
}

// Reject stores the reason exactly as given.
func (s *Service) Reject(ctx context.Context, id, actor string, req *RejectRequest) (*models.VerificationSubmission, error) {
	if req.Reason == "" {
		return nil, apperr.Field("reason", "is required")
	}

	return s.decide(ctx, id, firstNonEmpty(actor, req.Reviewer), models.VerificationRejected, req.Comments,
		map[string]interface{}{"reason": req.Reason},
		func(v *models.VerificationSubmission) {
			v.RejectionReason = req.Reason
			v.RequiredActions = req.RequiredActions
		})
}

func (s *Service) RequestMoreData(ctx context.Context, id, actor string, req *RequestDataRequest) (*models.VerificationSubmission, error) {
	if len(req.RequestedData) == 0 {
		return nil, apperr.Field("requested_data", "is required")
	}

	return s.decide(ctx, id, firstNonEmpty(actor, req.Reviewer), models.VerificationMoreDataRequested, req.Comments,
		map[string]interface{}{"requested_data": req.RequestedData},
		func(v *models.VerificationSubmission) {
			v.RequestedData = req.RequestedData
		})
}

// decide applies a reviewer decision under the configured policy.
func (s *Service) decide(
	ctx context.Context,
	id, reviewer string,
	to models.VerificationStatus,
	comments string,
	data map[string]interface{},
	apply func(*models.VerificationSubmission),
) (*models.VerificationSubmission, error) {
	var from models.VerificationStatus
	submission, err := s.stores.Verifications.Update(ctx, id, func(v *models.VerificationSubmission) error {
		if err := s.checkDecision(v.Status, to); err != nil {
			return err
		}
		from = v.Status
		now := s.now()
		v.Status = to
		v.Reviewer = reviewer
		v.ReviewedAt = &now
		v.Comments = comments
		apply(v)
		v.History = append(v.History, models.Decision{Status: to, Actor: reviewer, Comments: comments, At: now})
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "verification", id)
	}

	metrics.VerificationDecisions.WithLabelValues(string(to)).Inc()
	s.logger.Info("Verification decided",
		zap.String("verification_id", id),
		zap.String("project_id", submission.ProjectID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reviewer", reviewer))

	payload := map[string]interface{}{"status": string(to), "from": string(from)}
	if comments != "" {
		payload["comments"] = comments
	}
	for k, v := range data {
		payload[k] = v
	}
	s.publisher.Publish(ctx, events.New(events.VerificationDecided, submission.ProjectID, id, reviewer, payload))
	return submission, nil
}

func (s *Service) checkDecision(from, to models.VerificationStatus) error {
	if s.policy.StrictTransitions {
		if err := s.stateMachine.Transition(string(from), string(to)); err != nil {
			return apperr.StateConflict("%s", err.Error())
		}
		return nil
	}
	if from == models.VerificationCreditIssued {
		return apperr.StateConflict("verification already has an issued credit")
	}
	return nil
}

func (s *Service) GetVerification(ctx context.Context, id string) (*models.VerificationSubmission, error) {
	submission, err := s.stores.Verifications.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "verification", id)
	}
	return submission, nil
}

// NextSteps reports the statuses the submission may move to under the
// configured policy.
func (s *Service) NextSteps(ctx context.Context, id string) (*workflows.NextSteps, error) {
	submission, err := s.GetVerification(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := s.stateMachine.NextSteps(string(submission.Status))
	if !s.policy.StrictTransitions && submission.Status != models.VerificationCreditIssued {
		for _, to := range []models.VerificationStatus{models.VerificationApproved, models.VerificationRejected, models.VerificationMoreDataRequested} {
			if string(to) != steps.Status && !contains(steps.Allowed, string(to)) {
				steps.Allowed = append(steps.Allowed, string(to))
			}
		}
	}
	return &steps, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (s *Service) ListVerifications(ctx context.Context, filter Filter) ([]*models.VerificationSubmission, error) {
	if filter.Status != "" && !s.stateMachine.IsKnown(string(filter.Status)) {
		return nil, apperr.Field("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	out, err := s.stores.Verifications.List(ctx, func(v *models.VerificationSubmission) bool {
		if filter.Status != "" && v.Status != filter.Status {
			return false
		}
		return filter.ProjectID == "" || v.ProjectID == filter.ProjectID
	})
	if err != nil {
		return nil, apperr.Internal("failed to list verifications", err)
	}
	return out, nil
}

// History returns every submission of a project, oldest first.
func (s *Service) History(ctx context.Context, projectID string) ([]*models.VerificationSubmission, error) {
	if _, err := s.stores.Projects.Get(ctx, projectID); err != nil {
		return nil, apperr.FromStore(err, "project", projectID)
	}
	return s.ListVerifications(ctx, Filter{ProjectID: projectID})
}

// releaseUpload undoes the claim Submit placed on an upload.
func (s *Service) releaseUpload(ctx context.Context, uploadID, verificationID string, status models.UploadStatus, ref string) {
	_, err := s.stores.Uploads.Update(ctx, uploadID, func(u *models.DataUpload) error {
		if u.VerificationID == verificationID {
			u.Status = status
			u.VerificationID = ref
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to release upload after submission failure",
			zap.String("upload_id", uploadID),
			zap.String("verification_id", verificationID),
			zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
