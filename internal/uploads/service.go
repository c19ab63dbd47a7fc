// Package uploads accepts field-data uploads for projects and keeps their
// files in the configured blob store.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/pkg/storage"
	"carbon-scribe/credit-registry-backend/pkg/workflows"
)

const presignExpiry = 15 * time.Minute

type Service struct {
	stores       *database.Stores
	blobs        storage.BlobStore
	publisher    events.Publisher
	stateMachine *workflows.StateMachine
	opts         Options
	logger       *zap.Logger
}

func NewService(stores *database.Stores, blobs storage.BlobStore, publisher events.Publisher, opts Options, logger *zap.Logger) *Service {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 10
	}
	return &Service{
		stores:       stores,
		blobs:        blobs,
		publisher:    publisher,
		stateMachine: workflows.NewUploadMachine(),
		opts:         opts,
		logger:       logger,
	}
}

// CreateUpload streams every file into the blob store and records the
// upload. Blobs already written are removed again when a later step fails.
func (s *Service) CreateUpload(ctx context.Context, actor string, in *CreateUploadInput) (*models.DataUpload, error) {
	if in.ProjectID == "" {
		return nil, apperr.Field("project_id", "is required")
	}
	if !in.DataType.Valid() {
		return nil, apperr.Field("data_type", fmt.Sprintf("unknown data type %q", in.DataType))
	}
	if len(in.Files) == 0 {
		return nil, apperr.Field("files", "at least one file is required")
	}
	if len(in.Files) > s.opts.MaxFiles {
		return nil, apperr.Field("files", fmt.Sprintf("at most %d files per upload", s.opts.MaxFiles))
	}
	if err := validateMetadata(in.Metadata); err != nil {
		return nil, err
	}
	for _, f := range in.Files {
		if s.opts.MaxFileSize > 0 && f.Size > s.opts.MaxFileSize {
			return nil, apperr.Field("files", fmt.Sprintf("%s exceeds the %d byte limit", f.Name, s.opts.MaxFileSize))
		}
	}
	if _, err := s.stores.Projects.Get(ctx, in.ProjectID); err != nil {
		return nil, apperr.FromStore(err, "project", in.ProjectID)
	}

	upload := &models.DataUpload{
		ProjectID:  in.ProjectID,
		DataType:   in.DataType,
		Metadata:   in.Metadata,
		Status:     models.UploadUploaded,
		UploadedBy: actor,
	}
	// the id is fixed up front so object keys can carry it
	upload.ID = ids.New(ids.PrefixUpload)

	for i, f := range in.Files {
		stored, err := s.storeFile(ctx, upload, i, f)
		if err != nil {
			s.removeBlobs(ctx, upload.Files)
			return nil, apperr.Internal("failed to store uploaded file", err)
		}
		upload.Files = append(upload.Files, *stored)
	}

	id, err := s.stores.Uploads.Insert(ctx, upload)
	if err != nil {
		s.removeBlobs(ctx, upload.Files)
		return nil, apperr.FromStore(err, "upload", upload.ID)
	}

	s.logger.Info("Data upload stored",
		zap.String("upload_id", id),
		zap.String("project_id", upload.ProjectID),
		zap.String("data_type", string(upload.DataType)),
		zap.Int("files", len(upload.Files)))
	s.publisher.Publish(ctx, events.New(events.UploadCreated, upload.ProjectID, id, actor, map[string]interface{}{
		"data_type": string(upload.DataType),
		"files":     len(upload.Files),
	}))
	return upload, nil
}

func (s *Service) storeFile(ctx context.Context, upload *models.DataUpload, index int, f FileInput) (*models.UploadedFile, error) {
	body, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer body.Close()

	fileName := fmt.Sprintf("%d-%s", index, sanitizeName(f.Name))
	key := storage.GenerateKey(s.opts.Prefix, upload.ProjectID, upload.ID, fileName)
	obj, err := s.blobs.Put(ctx, key, body)
	if err != nil {
		return nil, err
	}

	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &models.UploadedFile{
		OriginalName: f.Name,
		FileName:     fileName,
		MimeType:     mimeType,
		Size:         obj.Size,
		Path:         obj.Key,
		Checksum:     obj.Checksum,
	}, nil
}

func (s *Service) GetUpload(ctx context.Context, id string) (*models.DataUpload, error) {
	upload, err := s.stores.Uploads.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "upload", id)
	}
	return upload, nil
}

func (s *Service) ListUploads(ctx context.Context, filter Filter) ([]*models.DataUpload, error) {
	out, err := s.stores.Uploads.List(ctx, func(u *models.DataUpload) bool {
		if filter.ProjectID != "" && u.ProjectID != filter.ProjectID {
			return false
		}
		if filter.Status != "" && u.Status != filter.Status {
			return false
		}
		return filter.DataType == "" || u.DataType == filter.DataType
	})
	if err != nil {
		return nil, apperr.Internal("failed to list uploads", err)
	}
	return out, nil
}

// UpdateStatus records the outcome of processing. Submission for
// verification happens only through the verification workflow.
func (s *Service) UpdateStatus(ctx context.Context, id, actor string, status models.UploadStatus) (*models.DataUpload, error) {
	switch status {
	case models.UploadProcessing, models.UploadValidated, models.UploadRejected:
	case models.UploadSubmittedForVerification:
		return nil, apperr.Field("status", "submit the upload for verification instead")
	default:
		return nil, apperr.Field("status", fmt.Sprintf("unknown status %q", status))
	}

	var previous models.UploadStatus
	upload, err := s.stores.Uploads.Update(ctx, id, func(u *models.DataUpload) error {
		if err := s.stateMachine.Transition(string(u.Status), string(status)); err != nil {
			return apperr.StateConflict("%s", err.Error())
		}
		previous = u.Status
		u.Status = status
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "upload", id)
	}

	s.publisher.Publish(ctx, events.New(events.UploadStatusChanged, upload.ProjectID, id, actor, map[string]interface{}{
		"from": string(previous),
		"to":   string(status),
	}))
	return upload, nil
}

// DeleteUpload removes an upload that has not been submitted for
// verification. The upload is first marked as deleting in a store update,
// which a concurrent submission refuses to claim. Its blobs are removed best
// effort.
func (s *Service) DeleteUpload(ctx context.Context, id string) error {
	var previous models.UploadStatus
	upload, err := s.stores.Uploads.Update(ctx, id, func(u *models.DataUpload) error {
		if u.VerificationID != "" {
			return apperr.StateConflict("upload %s is referenced by verification %s", id, u.VerificationID)
		}
		if u.Status == models.UploadDeleting {
			return apperr.StateConflict("upload %s is already being deleted", id)
		}
		previous = u.Status
		u.Status = models.UploadDeleting
		return nil
	})
	if err != nil {
		return apperr.FromStore(err, "upload", id)
	}

	if err := s.stores.Uploads.Delete(ctx, id); err != nil {
		s.restoreStatus(ctx, id, previous)
		return apperr.FromStore(err, "upload", id)
	}
	s.removeBlobs(ctx, upload.Files)

	s.logger.Info("Data upload deleted", zap.String("upload_id", id))
	return nil
}

func (s *Service) restoreStatus(ctx context.Context, id string, status models.UploadStatus) {
	_, err := s.stores.Uploads.Update(ctx, id, func(u *models.DataUpload) error {
		if u.Status == models.UploadDeleting {
			u.Status = status
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to restore upload after delete failure",
			zap.String("upload_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// OpenFile returns a presigned link when the blob store supports one and
// an open stream otherwise.
func (s *Service) OpenFile(ctx context.Context, id string, index int) (*FileDownload, error) {
	upload, err := s.GetUpload(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(upload.Files) {
		return nil, apperr.NotFound("upload file", fmt.Sprintf("%s/%d", id, index))
	}
	file := upload.Files[index]

	if presigner, ok := s.blobs.(storage.Presigner); ok {
		url, err := presigner.GetPresignedURL(ctx, file.Path, presignExpiry)
		if err != nil {
			return nil, apperr.Internal("failed to presign file", err)
		}
		return &FileDownload{File: file, URL: url}, nil
	}

	body, err := s.blobs.Get(ctx, file.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("upload file", file.Path)
	}
	if err != nil {
		return nil, apperr.Internal("failed to open file", err)
	}
	return &FileDownload{File: file, Body: body}, nil
}

func (s *Service) removeBlobs(ctx context.Context, files []models.UploadedFile) {
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.Path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to remove blob", zap.String("key", f.Path), zap.Error(err))
		}
	}
}

func validateMetadata(m models.UploadMetadata) error {
	if m.Latitude != nil && (*m.Latitude < -90 || *m.Latitude > 90) {
		return apperr.Field("metadata.latitude", "must be between -90 and 90")
	}
	if m.Longitude != nil && (*m.Longitude < -180 || *m.Longitude > 180) {
		return apperr.Field("metadata.longitude", "must be between -180 and 180")
	}
	if m.QualityScore != nil && (*m.QualityScore < 0 || *m.QualityScore > 100) {
		return apperr.Field("metadata.quality_score", "must be between 0 and 100")
	}
	return nil
}

// sanitizeName keeps the base name of a client-supplied file name and
// replaces characters that are awkward in object keys.
func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
