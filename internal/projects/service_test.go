package projects

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/events/eventstest"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/search"
	"carbon-scribe/credit-registry-backend/internal/store/storetest"
)

const squareBoundary = `{"type":"Polygon","coordinates":[[[36.80,-1.30],[36.81,-1.30],[36.81,-1.29],[36.80,-1.29],[36.80,-1.30]]]}`

func newTestService(t *testing.T) (*Service, *database.Stores, *eventstest.Recorder) {
	t.Helper()
	stores := database.NewMemoryStores()
	recorder := &eventstest.Recorder{}
	svc := NewService(stores, search.NewStoreIndex(stores.Projects), recorder, zap.NewNop())
	return svc, stores, recorder
}

func validRequest() *CreateProjectRequest {
	return &CreateProjectRequest{
		Name:     "Kilifi Mangroves",
		Category: models.CategoryMangroveRestoration,
		Location: LocationInput{Country: "KE", AreaHectares: 120},
	}
}

func TestCreateProject_Defaults(t *testing.T) {
	svc, _, recorder := newTestService(t)

	project, err := svc.CreateProject(context.Background(), "alice", validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, models.ProjectPlanning, project.Status)
	assert.Equal(t, 120.0, project.Location.AreaHectares)
	assert.Equal(t, []events.Type{events.ProjectCreated}, recorder.Types())
}

func TestCreateProject_DerivesAreaFromBoundary(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := validRequest()
	req.Location.AreaHectares = 0
	req.Location.Boundary = json.RawMessage(squareBoundary)

	project, err := svc.CreateProject(context.Background(), "", req)
	require.NoError(t, err)

	// roughly 1.1km x 1.1km
	assert.InDelta(t, 123, project.Location.AreaHectares, 5)
	require.NotNil(t, project.Location.Coordinates)
	assert.InDelta(t, -1.295, project.Location.Coordinates.Latitude, 0.001)
	assert.InDelta(t, 36.805, project.Location.Coordinates.Longitude, 0.001)
}

const shiftedBoundary = `{"type":"Polygon","coordinates":[[[36.805,-1.295],[36.815,-1.295],[36.815,-1.285],[36.805,-1.285],[36.805,-1.295]]]}`

const distantBoundary = `{"type":"Polygon","coordinates":[[[39.80,-3.60],[39.81,-3.60],[39.81,-3.59],[39.80,-3.59],[39.80,-3.60]]]}`

func TestCreateProject_FlagsOverlappingBoundaries(t *testing.T) {
	svc, _, recorder := newTestService(t)
	ctx := context.Background()

	first := validRequest()
	first.Location.Boundary = json.RawMessage(squareBoundary)
	existing, err := svc.CreateProject(ctx, "", first)
	require.NoError(t, err)

	far := validRequest()
	far.Name = "Mida Creek"
	far.Location.Boundary = json.RawMessage(distantBoundary)
	_, err = svc.CreateProject(ctx, "", far)
	require.NoError(t, err)

	second := validRequest()
	second.Name = "Kilifi Mangroves East"
	second.Location.Boundary = json.RawMessage(shiftedBoundary)
	project, err := svc.CreateProject(ctx, "", second)
	require.NoError(t, err)

	created := recorder.Events()
	require.Len(t, created, 3)
	assert.NotContains(t, created[1].Data, "overlaps")
	assert.Equal(t, []string{existing.ID}, created[2].Data["overlaps"])

	overlaps, err := svc.Overlaps(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, existing.ID, overlaps[0].ID)

	reverse, err := svc.Overlaps(ctx, existing.ID)
	require.NoError(t, err)
	assert.Len(t, reverse, 1, "overlap is symmetric")

	_, err = svc.Overlaps(ctx, "PRJ-MISSING")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOverlaps_WithoutBoundary(t *testing.T) {
	svc, _, _ := newTestService(t)
	project, err := svc.CreateProject(context.Background(), "", validRequest())
	require.NoError(t, err)

	overlaps, err := svc.Overlaps(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Empty(t, overlaps)
}

func TestNextSteps(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)

	steps, err := svc.NextSteps(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "planning", steps.Status)
	assert.ElementsMatch(t, []string{"active", "cancelled"}, steps.Allowed)

	_, err = svc.ChangeStatus(ctx, project.ID, "", models.ProjectActive)
	require.NoError(t, err)
	steps, err = svc.NextSteps(ctx, project.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"completed", "suspended", "cancelled"}, steps.Allowed)
}

func TestCreateProject_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateProjectRequest)
		field  string
	}{
		{"unknown category", func(r *CreateProjectRequest) { r.Category = "volcanoes" }, "category"},
		{"open boundary ring", func(r *CreateProjectRequest) {
			r.Location.Boundary = json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}`)
		}, "location.boundary"},
		{"latitude out of range", func(r *CreateProjectRequest) {
			r.Location.Coordinates = &models.Coordinates{Latitude: 91}
		}, "location.coordinates.latitude"},
		{"end before start", func(r *CreateProjectRequest) {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(-1, 0, 0)
			r.StartDate, r.EndDate = &start, &end
		}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, stores, _ := newTestService(t)
			req := validRequest()
			tt.mutate(req)

			_, err := svc.CreateProject(context.Background(), "", req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)

			all, _ := stores.Projects.List(context.Background(), nil)
			assert.Empty(t, all)
		})
	}
}

func TestCreateProject_LinksStakeholders(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	stakeholderID, err := stores.Stakeholders.Insert(ctx, &models.Stakeholder{Name: "Coast NGO", Category: models.StakeholderNGO})
	require.NoError(t, err)

	req := validRequest()
	req.StakeholderIDs = []string{stakeholderID, stakeholderID}
	project, err := svc.CreateProject(ctx, "", req)
	require.NoError(t, err)
	assert.Equal(t, []string{stakeholderID}, project.StakeholderIDs)

	stakeholder, err := stores.Stakeholders.Get(ctx, stakeholderID)
	require.NoError(t, err)
	assert.Equal(t, []string{project.ID}, stakeholder.ProjectIDs)
}

func TestCreateProject_UnknownStakeholder(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := validRequest()
	req.StakeholderIDs = []string{"STK-MISSING"}

	_, err := svc.CreateProject(context.Background(), "", req)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListProjects_Filters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := validRequest()
	b := validRequest()
	b.Name = "Andes Cloud Forest"
	b.Category = models.CategoryReforestation
	b.Location.Country = "PE"
	_, err := svc.CreateProject(ctx, "", a)
	require.NoError(t, err)
	_, err = svc.CreateProject(ctx, "", b)
	require.NoError(t, err)

	all, err := svc.ListProjects(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	peru, err := svc.ListProjects(ctx, Filter{Country: "PE"})
	require.NoError(t, err)
	require.Len(t, peru, 1)
	assert.Equal(t, "Andes Cloud Forest", peru[0].Name)

	mangroves, err := svc.ListProjects(ctx, Filter{Category: models.CategoryMangroveRestoration, Status: models.ProjectPlanning})
	require.NoError(t, err)
	assert.Len(t, mangroves, 1)
}

func TestListProjects_StoreFailure(t *testing.T) {
	projects := storetest.NewMockCollection[models.Project](database.ProjectKind)
	projects.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
	svc := NewService(&database.Stores{Projects: projects}, search.NewStoreIndex(projects), events.Discard, zap.NewNop())

	_, err := svc.ListProjects(context.Background(), Filter{})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	projects.AssertExpectations(t)
}

func TestUpdateProject(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)

	name := "Kilifi Blue Carbon"
	actual := 40.0
	updated, err := svc.UpdateProject(ctx, project.ID, &UpdateProjectRequest{Name: &name, ActualCredits: &actual})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 40.0, updated.ActualCredits)
	assert.Equal(t, int64(2), updated.Version)

	empty := ""
	_, err = svc.UpdateProject(ctx, project.ID, &UpdateProjectRequest{Name: &empty})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateProject(ctx, "PRJ-MISSING", &UpdateProjectRequest{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestChangeStatus(t *testing.T) {
	svc, _, recorder := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, project.ID, "bob", models.ProjectCompleted)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	updated, err := svc.ChangeStatus(ctx, project.ID, "bob", models.ProjectActive)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectActive, updated.Status)

	_, err = svc.ChangeStatus(ctx, project.ID, "bob", "paused")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Equal(t, []events.Type{events.ProjectCreated, events.ProjectStatusChanged}, recorder.Types())
}

func TestDeleteProject_RefusedWhileReferenced(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)
	_, err = stores.Uploads.Insert(ctx, &models.DataUpload{ProjectID: project.ID, DataType: models.DataSoilSample})
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, project.ID)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	_, err = stores.Projects.Get(ctx, project.ID)
	assert.NoError(t, err)
}

func TestDeleteProject_UnlinksStakeholders(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	stakeholderID, err := stores.Stakeholders.Insert(ctx, &models.Stakeholder{Name: "County Government", Category: models.StakeholderGovernment})
	require.NoError(t, err)
	req := validRequest()
	req.StakeholderIDs = []string{stakeholderID}
	project, err := svc.CreateProject(ctx, "", req)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, project.ID))

	stakeholder, err := stores.Stakeholders.Get(ctx, stakeholderID)
	require.NoError(t, err)
	assert.Empty(t, stakeholder.ProjectIDs)
}

func TestDeleteProject_MissingLeavesStoreUnchanged(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, "PRJ-MISSING")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	all, err := stores.Projects.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSearchProjects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateProject(ctx, "", validRequest())
	require.NoError(t, err)

	found, err := svc.SearchProjects(ctx, "kilifi", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Kilifi Mangroves", found[0].Name)

	none, err := svc.SearchProjects(ctx, "sahara", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.SearchProjects(ctx, "", 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
