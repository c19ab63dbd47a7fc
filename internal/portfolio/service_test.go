package portfolio

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/response"
	"carbon-scribe/credit-registry-backend/pkg/export"
)

type seeded struct {
	stores *database.Stores
	forest string
	coast  string
	empty  string
}

func seed(t *testing.T) *seeded {
	t.Helper()
	ctx := context.Background()
	stores := database.NewMemoryStores()
	s := &seeded{stores: stores}

	var err error
	s.forest, err = stores.Projects.Insert(ctx, &models.Project{Name: "Rimba Raya", Category: models.CategoryConservation, Status: models.ProjectActive})
	require.NoError(t, err)
	s.coast, err = stores.Projects.Insert(ctx, &models.Project{Name: "Sundarbans Blue", Category: models.CategoryBlueCarbon, Status: models.ProjectActive})
	require.NoError(t, err)
	s.empty, err = stores.Projects.Insert(ctx, &models.Project{Name: "Pilot Plot", Category: models.CategoryOther, Status: models.ProjectPlanning})
	require.NoError(t, err)

	issued := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []models.CarbonCredit{
		{ProjectID: s.forest, CreditsAmount: 100, Status: models.CreditActive},
		{ProjectID: s.forest, CreditsAmount: 40, Status: models.CreditRetired},
		{ProjectID: s.coast, CreditsAmount: 60, Status: models.CreditActive},
		{ProjectID: s.coast, CreditsAmount: 5, Status: models.CreditCancelled},
	} {
		credit := c
		credit.SerialNumber = "CC-2025-SERIAL-" + string(rune('A'+i))
		credit.Methodology = models.DefaultMethodology
		credit.Vintage = "2025"
		credit.IssuedAt = issued
		_, err := stores.Credits.Insert(ctx, &credit)
		require.NoError(t, err)
	}
	return s
}

func TestPortfolio(t *testing.T) {
	s := seed(t)
	svc := NewService(s.stores, zap.NewNop())

	got, err := svc.Portfolio(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 205.0, got.TotalCredits)
	assert.Equal(t, 2, got.ActiveCredits)
	assert.Equal(t, 3, got.TotalProjects)
	require.Len(t, got.Projects, 3)

	byID := map[string]ProjectCredits{}
	for _, p := range got.Projects {
		byID[p.ProjectID] = p
	}
	assert.Len(t, byID[s.forest].Credits, 2)
	assert.Equal(t, 140.0, byID[s.forest].TotalCredits)
	assert.Len(t, byID[s.coast].Credits, 2)
	assert.Equal(t, 65.0, byID[s.coast].TotalCredits)
	assert.NotNil(t, byID[s.empty].Credits)
	assert.Empty(t, byID[s.empty].Credits)
	assert.Equal(t, "Pilot Plot", byID[s.empty].ProjectName)

	for _, p := range got.Projects {
		for _, c := range p.Credits {
			assert.Equal(t, p.ProjectID, c.ProjectID)
		}
	}
}

func TestPortfolio_Empty(t *testing.T) {
	svc := NewService(database.NewMemoryStores(), zap.NewNop())

	got, err := svc.Portfolio(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalCredits)
	assert.Zero(t, got.ActiveCredits)
	assert.NotNil(t, got.Projects)
	assert.Empty(t, got.Projects)
}

func TestExport_CSV(t *testing.T) {
	s := seed(t)
	svc := NewService(s.stores, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf, export.FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "Serial Number", records[0][0])
	assert.Equal(t, "Project", records[0][2])

	names := map[string]int{}
	for _, row := range records[1:] {
		names[row[2]]++
		assert.Equal(t, "VM0033", row[5])
	}
	assert.Equal(t, map[string]int{"Rimba Raya": 2, "Sundarbans Blue": 2}, names)
}

func TestExport_XLSX(t *testing.T) {
	s := seed(t)
	svc := NewService(s.stores, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), &buf, export.FormatXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Portfolio")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, "Serial Number", rows[0][0])
}

func TestHandler_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := seed(t)
	r := gin.New()
	NewHandler(NewService(s.stores, zap.NewNop()), zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/credits/portfolio", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 205.0, env.Data.(map[string]interface{})["total_credits"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/credits/portfolio/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/credits/portfolio/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
