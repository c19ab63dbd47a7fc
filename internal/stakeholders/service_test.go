package stakeholders

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

func newTestService(t *testing.T) (*Service, *database.Stores, *eventstest.Recorder) {
	t.Helper()
	stores := database.NewMemoryStores()
	recorder := &eventstest.Recorder{}
	return NewService(stores, recorder, zap.NewNop()), stores, recorder
}

func seedProject(t *testing.T, stores *database.Stores) string {
	t.Helper()
	id, err := stores.Projects.Insert(context.Background(), &models.Project{
		Name:     "Mau Forest",
		Category: models.CategoryReforestation,
		Status:   models.ProjectActive,
	})
	require.NoError(t, err)
	return id
}

func TestCreateStakeholder(t *testing.T) {
	svc, _, _ := newTestService(t)

	st, err := svc.CreateStakeholder(context.Background(), &CreateStakeholderRequest{
		Name:     "Green Belt NGO",
		Category: models.StakeholderNGO,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StakeholderActive, st.Status)
	assert.Empty(t, st.ProjectIDs)

	_, err = svc.CreateStakeholder(context.Background(), &CreateStakeholderRequest{Name: "X", Category: "pirate"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLinkAndUnlinkProject(t *testing.T) {
	svc, stores, recorder := newTestService(t)
	ctx := context.Background()
	projectID := seedProject(t, stores)
	st, err := svc.CreateStakeholder(ctx, &CreateStakeholderRequest{Name: "Verra Auditor", Category: models.StakeholderVerifier})
	require.NoError(t, err)

	linked, err := svc.LinkProject(ctx, st.ID, projectID, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{projectID}, linked.ProjectIDs)

	// linking again does not duplicate
	linked, err = svc.LinkProject(ctx, st.ID, projectID, "admin")
	require.NoError(t, err)
	assert.Len(t, linked.ProjectIDs, 1)

	project, err := stores.Projects.Get(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{st.ID}, project.StakeholderIDs)
	assert.Contains(t, recorder.Types(), events.StakeholderLinked)

	unlinked, err := svc.UnlinkProject(ctx, st.ID, projectID)
	require.NoError(t, err)
	assert.Empty(t, unlinked.ProjectIDs)
	project, err = stores.Projects.Get(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, project.StakeholderIDs)
}

func TestLinkProject_Missing(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	projectID := seedProject(t, stores)

	_, err := svc.LinkProject(ctx, "STK-MISSING", projectID, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	st, err := svc.CreateStakeholder(ctx, &CreateStakeholderRequest{Name: "Buyer Co", Category: models.StakeholderBuyer})
	require.NoError(t, err)
	_, err = svc.LinkProject(ctx, st.ID, "PRJ-MISSING", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateStakeholder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	st, err := svc.CreateStakeholder(ctx, &CreateStakeholderRequest{Name: "Landowner", Category: models.StakeholderLandowner})
	require.NoError(t, err)

	suspended := models.StakeholderSuspended
	updated, err := svc.UpdateStakeholder(ctx, st.ID, &UpdateStakeholderRequest{Status: &suspended})
	require.NoError(t, err)
	assert.Equal(t, models.StakeholderSuspended, updated.Status)

	bogus := models.StakeholderStatus("retired")
	_, err = svc.UpdateStakeholder(ctx, st.ID, &UpdateStakeholderRequest{Status: &bogus})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeleteStakeholder(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	projectID := seedProject(t, stores)
	st, err := svc.CreateStakeholder(ctx, &CreateStakeholderRequest{Name: "Community Trust", Category: models.StakeholderCommunity})
	require.NoError(t, err)
	_, err = svc.LinkProject(ctx, st.ID, projectID, "")
	require.NoError(t, err)

	err = svc.DeleteStakeholder(ctx, "STK-MISSING")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	all, _ := stores.Stakeholders.List(ctx, nil)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteStakeholder(ctx, st.ID))
	project, err := stores.Projects.Get(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, project.StakeholderIDs)
}

func TestContactEmails(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	projectID := seedProject(t, stores)

	add := func(name, email string, status models.StakeholderStatus) {
		st, err := svc.CreateStakeholder(ctx, &CreateStakeholderRequest{
			Name:     name,
			Category: models.StakeholderDeveloper,
			Contact:  ContactInput{Email: email},
			Status:   status,
		})
		require.NoError(t, err)
		_, err = svc.LinkProject(ctx, st.ID, projectID, "")
		require.NoError(t, err)
	}
	add("Dev A", "a@example.org", models.StakeholderActive)
	add("Dev B", "", models.StakeholderActive)
	add("Dev C", "c@example.org", models.StakeholderInactive)

	emails, err := svc.ContactEmails(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.org"}, emails)
}
