package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/events/eventstest"
	"carbon-scribe/credit-registry-backend/internal/models"
)

type testEnv struct {
	svc      *Service
	stores   *database.Stores
	recorder *eventstest.Recorder
	project  string
	upload   string
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	stores := database.NewMemoryStores()
	recorder := &eventstest.Recorder{}

	projectID, err := stores.Projects.Insert(ctx, &models.Project{
		Name:     "Gola Rainforest",
		Category: models.CategoryConservation,
		Status:   models.ProjectActive,
	})
	require.NoError(t, err)
	score := 87.5
	uploadID, err := stores.Uploads.Insert(ctx, &models.DataUpload{
		ProjectID: projectID,
		DataType:  models.DataBiomassSurvey,
		Status:    models.UploadValidated,
		Metadata:  models.UploadMetadata{Methodology: "VM0007", QualityScore: &score},
	})
	require.NoError(t, err)

	svc := NewService(stores, recorder, Policy{StrictTransitions: strict}, zap.NewNop())
	return &testEnv{svc: svc, stores: stores, recorder: recorder, project: projectID, upload: uploadID}
}

func (e *testEnv) submit(t *testing.T) *models.VerificationSubmission {
	t.Helper()
	submission, err := e.svc.Submit(context.Background(), "developer", &SubmitRequest{UploadID: e.upload, Notes: "Q3 survey"})
	require.NoError(t, err)
	return submission
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	submission := env.submit(t)

	assert.Equal(t, models.VerificationPending, submission.Status)
	assert.Equal(t, env.upload, submission.UploadID)
	assert.Equal(t, env.project, submission.ProjectID)
	assert.Equal(t, models.DataBiomassSurvey, submission.DataType)
	assert.Equal(t, "VM0007", submission.Metadata.Methodology)
	assert.Equal(t, "developer", submission.SubmittedBy)
	require.Len(t, submission.History, 1)

	upload, err := env.stores.Uploads.Get(ctx, env.upload)
	require.NoError(t, err)
	assert.Equal(t, models.UploadSubmittedForVerification, upload.Status)
	assert.Equal(t, submission.ID, upload.VerificationID)

	all, err := env.stores.Verifications.List(ctx, func(v *models.VerificationSubmission) bool { return v.UploadID == env.upload })
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Equal(t, []events.Type{events.VerificationSubmitted}, env.recorder.Types())
}

func TestSubmit_UnknownUpload(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.svc.Submit(context.Background(), "", &SubmitRequest{UploadID: "UPL-NOPE"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	all, _ := env.stores.Verifications.List(context.Background(), nil)
	assert.Empty(t, all)
}

func TestSubmit_RefusedWhileUploadDeleting(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.stores.Uploads.Update(ctx, env.upload, func(u *models.DataUpload) error {
		u.Status = models.UploadDeleting
		return nil
	})
	require.NoError(t, err)

	_, err = env.svc.Submit(ctx, "developer", &SubmitRequest{UploadID: env.upload})
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	all, err := env.stores.Verifications.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, env.recorder.Types())
}

func TestApprove(t *testing.T) {
	env := newTestEnv(t, true)
	submission := env.submit(t)
	credits, score := 1250.0, 92.0

	approved, err := env.svc.Approve(context.Background(), submission.ID, "auditor", &ApproveRequest{
		CreditsGenerated: &credits,
		QualityScore:     &score,
		Comments:         "field plots consistent",
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerificationApproved, approved.Status)
	assert.Equal(t, "auditor", approved.Reviewer)
	assert.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, 1250.0, approved.CreditsGenerated)
	require.NotNil(t, approved.QualityScore)
	assert.Equal(t, 92.0, *approved.QualityScore)
	assert.Len(t, approved.History, 2)
}

func TestApprove_DefaultsCreditsToZero(t *testing.T) {
	env := newTestEnv(t, true)
	submission := env.submit(t)

	approved, err := env.svc.Approve(context.Background(), submission.ID, "", &ApproveRequest{Reviewer: "panel"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, approved.CreditsGenerated)
	assert.Equal(t, "panel", approved.Reviewer)
}

func TestApprove_Missing(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.svc.Approve(context.Background(), "VER-NOPE", "", &ApproveRequest{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReject_PreservesReason(t *testing.T) {
	env := newTestEnv(t, true)
	submission := env.submit(t)
	reason := "  Plot 4 GPS trace is outside the boundary; résumé attached.  "

	rejected, err := env.svc.Reject(context.Background(), submission.ID, "auditor", &RejectRequest{
		Reason:          reason,
		RequiredActions: []string{"resurvey plot 4"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerificationRejected, rejected.Status)
	assert.Equal(t, reason, rejected.RejectionReason)
	assert.Equal(t, []string{"resurvey plot 4"}, rejected.RequiredActions)

	stored, err := env.stores.Verifications.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, reason, stored.RejectionReason)
}

func TestApproveAfterReject(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		allowed bool
	}{
		{"strict policy refuses", true, false},
		{"permissive policy allows", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.strict)
			ctx := context.Background()
			submission := env.submit(t)
			_, err := env.svc.Reject(ctx, submission.ID, "auditor", &RejectRequest{Reason: "incomplete"})
			require.NoError(t, err)

			approved, err := env.svc.Approve(ctx, submission.ID, "auditor", &ApproveRequest{})
			stored, getErr := env.stores.Verifications.Get(ctx, submission.ID)
			require.NoError(t, getErr)

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, models.VerificationApproved, approved.Status)
				assert.Equal(t, models.VerificationApproved, stored.Status)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindStateConflict))
			assert.Equal(t, "verification is already rejected", err.Error())
			assert.Equal(t, models.VerificationRejected, stored.Status)
			assert.Equal(t, "incomplete", stored.RejectionReason)
		})
	}
}

func TestPermissive_RefusesAfterCreditIssued(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	submission := env.submit(t)
	_, err := env.stores.Verifications.Update(ctx, submission.ID, func(v *models.VerificationSubmission) error {
		v.Status = models.VerificationCreditIssued
		return nil
	})
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, submission.ID, "auditor", &RejectRequest{Reason: "late objection"})
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestNextSteps(t *testing.T) {
	setStatus := func(t *testing.T, env *testEnv, id string, status models.VerificationStatus) {
		t.Helper()
		_, err := env.stores.Verifications.Update(context.Background(), id, func(v *models.VerificationSubmission) error {
			v.Status = status
			return nil
		})
		require.NoError(t, err)
	}

	t.Run("strict", func(t *testing.T) {
		env := newTestEnv(t, true)
		submission := env.submit(t)

		steps, err := env.svc.NextSteps(context.Background(), submission.ID)
		require.NoError(t, err)
		assert.Equal(t, "pending", steps.Status)
		assert.ElementsMatch(t, []string{"under_review", "approved", "rejected", "more_data_requested"}, steps.Allowed)

		setStatus(t, env, submission.ID, models.VerificationRejected)
		steps, err = env.svc.NextSteps(context.Background(), submission.ID)
		require.NoError(t, err)
		assert.Empty(t, steps.Allowed)
	})

	t.Run("permissive", func(t *testing.T) {
		env := newTestEnv(t, false)
		submission := env.submit(t)

		setStatus(t, env, submission.ID, models.VerificationRejected)
		steps, err := env.svc.NextSteps(context.Background(), submission.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"approved", "more_data_requested"}, steps.Allowed)

		setStatus(t, env, submission.ID, models.VerificationCreditIssued)
		steps, err = env.svc.NextSteps(context.Background(), submission.ID)
		require.NoError(t, err)
		assert.Empty(t, steps.Allowed)
	})

	_, err := newTestEnv(t, true).svc.NextSteps(context.Background(), "VER-NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReviewAndRequestMoreData(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	submission := env.submit(t)

	reviewing, err := env.svc.StartReview(ctx, submission.ID, "auditor", &ReviewRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationUnderReview, reviewing.Status)

	_, err = env.svc.StartReview(ctx, submission.ID, "auditor", &ReviewRequest{})
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	_, err = env.svc.RequestMoreData(ctx, submission.ID, "auditor", &RequestDataRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	more, err := env.svc.RequestMoreData(ctx, submission.ID, "auditor", &RequestDataRequest{
		RequestedData: []string{"drone imagery", "soil cores"},
		Comments:      "canopy cover unclear",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationMoreDataRequested, more.Status)
	assert.Equal(t, []string{"drone imagery", "soil cores"}, more.RequestedData)

	back, err := env.svc.StartReview(ctx, submission.ID, "auditor", &ReviewRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationUnderReview, back.Status)

	last := env.recorder.Events()[len(env.recorder.Events())-1]
	assert.Equal(t, events.VerificationDecided, last.Type)
	assert.Equal(t, "more_data_requested", last.Data["status"])
}

func TestListAndHistory(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	first := env.submit(t)
	second := env.submit(t)
	_, err := env.svc.Approve(ctx, second.ID, "auditor", &ApproveRequest{})
	require.NoError(t, err)

	pending, err := env.svc.ListVerifications(ctx, Filter{Status: models.VerificationPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	_, err = env.svc.ListVerifications(ctx, Filter{Status: "lost"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	history, err := env.svc.History(ctx, env.project)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = env.svc.History(ctx, "PRJ-NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
