package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/events/eventstest"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
	"carbon-scribe/credit-registry-backend/pkg/storage"
)

type testEnv struct {
	svc       *Service
	stores    *database.Stores
	blobs     *storage.LocalStore
	recorder  *eventstest.Recorder
	projectID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores := database.NewMemoryStores()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	recorder := &eventstest.Recorder{}

	projectID, err := stores.Projects.Insert(context.Background(), &models.Project{
		Name:     "Sundarbans Blue Carbon",
		Category: models.CategoryBlueCarbon,
		Status:   models.ProjectActive,
	})
	require.NoError(t, err)

	svc := NewService(stores, blobs, recorder, Options{Prefix: "uploads", MaxFiles: 2, MaxFileSize: 1024}, zap.NewNop())
	return &testEnv{svc: svc, stores: stores, blobs: blobs, recorder: recorder, projectID: projectID}
}

func textFile(name, content string) FileInput {
	return FileInput{
		Name:     name,
		MimeType: "text/csv",
		Size:     int64(len(content)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func TestCreateUpload_StoresFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	upload, err := env.svc.CreateUpload(ctx, "field-team", &CreateUploadInput{
		ProjectID: env.projectID,
		DataType:  models.DataBiomassSurvey,
		Files:     []FileInput{textFile("plot 7/biomass.csv", "plot,tC\n7,12.5\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, models.UploadUploaded, upload.Status)
	assert.Equal(t, "field-team", upload.UploadedBy)
	require.Len(t, upload.Files, 1)
	file := upload.Files[0]
	assert.Equal(t, "0-biomass.csv", file.FileName)
	assert.Equal(t, int64(15), file.Size)
	assert.True(t, strings.HasPrefix(file.Checksum, "blake2b-256:"))
	assert.Contains(t, file.Path, upload.ID)

	want, err := storage.Checksum(strings.NewReader("plot,tC\n7,12.5\n"))
	require.NoError(t, err)
	assert.Equal(t, want, file.Checksum)

	download, err := env.svc.OpenFile(ctx, upload.ID, 0)
	require.NoError(t, err)
	defer download.Body.Close()
	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "plot,tC\n7,12.5\n", string(body))

	assert.Equal(t, []events.Type{events.UploadCreated}, env.recorder.Types())
}

func TestCreateUpload_Validation(t *testing.T) {
	env := newTestEnv(t)
	big := textFile("big.bin", string(bytes.Repeat([]byte("x"), 2048)))

	tests := []struct {
		name string
		in   CreateUploadInput
		kind apperr.Kind
	}{
		{"missing project", CreateUploadInput{DataType: models.DataSensor, Files: []FileInput{textFile("a", "1")}}, apperr.KindValidation},
		{"unknown project", CreateUploadInput{ProjectID: "PRJ-NOPE", DataType: models.DataSensor, Files: []FileInput{textFile("a", "1")}}, apperr.KindNotFound},
		{"bad data type", CreateUploadInput{ProjectID: env.projectID, DataType: "rumour", Files: []FileInput{textFile("a", "1")}}, apperr.KindValidation},
		{"no files", CreateUploadInput{ProjectID: env.projectID, DataType: models.DataSensor}, apperr.KindValidation},
		{"too many files", CreateUploadInput{ProjectID: env.projectID, DataType: models.DataSensor, Files: []FileInput{textFile("a", "1"), textFile("b", "2"), textFile("c", "3")}}, apperr.KindValidation},
		{"file too large", CreateUploadInput{ProjectID: env.projectID, DataType: models.DataSensor, Files: []FileInput{big}}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			_, err := env.svc.CreateUpload(context.Background(), "", &in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestCreateUpload_RemovesBlobsOnFailure(t *testing.T) {
	env := newTestEnv(t)
	failing := FileInput{Name: "broken", Open: func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }}

	_, err := env.svc.CreateUpload(context.Background(), "", &CreateUploadInput{
		ProjectID: env.projectID,
		DataType:  models.DataSensor,
		Files:     []FileInput{textFile("ok.csv", "1"), failing},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	all, err := env.stores.Uploads.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	upload, err := env.svc.CreateUpload(ctx, "", &CreateUploadInput{
		ProjectID: env.projectID,
		DataType:  models.DataSoilSample,
		Files:     []FileInput{textFile("soil.csv", "1")},
	})
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, upload.ID, "lab", models.UploadProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.UploadProcessing, updated.Status)

	updated, err = env.svc.UpdateStatus(ctx, upload.ID, "lab", models.UploadValidated)
	require.NoError(t, err)
	assert.Equal(t, models.UploadValidated, updated.Status)

	_, err = env.svc.UpdateStatus(ctx, upload.ID, "lab", models.UploadRejected)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	_, err = env.svc.UpdateStatus(ctx, upload.ID, "lab", models.UploadSubmittedForVerification)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeleteUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	upload, err := env.svc.CreateUpload(ctx, "", &CreateUploadInput{
		ProjectID: env.projectID,
		DataType:  models.DataPhotoEvidence,
		Files:     []FileInput{textFile("photo.jpg", "jpeg")},
	})
	require.NoError(t, err)

	err = env.svc.DeleteUpload(ctx, "UPL-NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	all, _ := env.stores.Uploads.List(ctx, nil)
	assert.Len(t, all, 1)

	require.NoError(t, env.svc.DeleteUpload(ctx, upload.ID))
	_, err = env.blobs.Get(ctx, upload.Files[0].Path)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteUpload_RefusedOnceSubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.stores.Uploads.Insert(ctx, &models.DataUpload{
		ProjectID:      env.projectID,
		DataType:       models.DataSensor,
		Status:         models.UploadSubmittedForVerification,
		VerificationID: "VER-1",
	})
	require.NoError(t, err)

	err = env.svc.DeleteUpload(ctx, id)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

// failingDelete wraps the upload collection and refuses every delete.
type failingDelete struct {
	store.Collection[models.DataUpload]
}

func (failingDelete) Delete(context.Context, string) error { return errors.New("connection reset") }

func TestDeleteUpload_MarksBeforeDeleting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.stores.Uploads.Insert(ctx, &models.DataUpload{
		ProjectID: env.projectID,
		DataType:  models.DataSensor,
		Status:    models.UploadValidated,
	})
	require.NoError(t, err)
	env.stores.Uploads = failingDelete{env.stores.Uploads}

	err = env.svc.DeleteUpload(ctx, id)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	upload, err := env.stores.Uploads.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.UploadValidated, upload.Status)
}

func TestDeleteUpload_RefusedWhileDeleting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.stores.Uploads.Insert(ctx, &models.DataUpload{
		ProjectID: env.projectID,
		DataType:  models.DataSensor,
		Status:    models.UploadDeleting,
	})
	require.NoError(t, err)

	err = env.svc.DeleteUpload(ctx, id)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "report_v2.pdf", sanitizeName("C:\\data\\report v2.pdf"))
	assert.Equal(t, "passwd", sanitizeName("../../etc/passwd"))
	assert.Equal(t, "file", sanitizeName(".."))
}
