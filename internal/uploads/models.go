package uploads

import (
	"io"

	"carbon-scribe/credit-registry-backend/internal/models"
)

// FileInput is one file of a multipart upload.
type FileInput struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type CreateUploadInput struct {
	ProjectID string
	DataType  models.DataType
	Metadata  models.UploadMetadata
	Files     []FileInput
}

type UpdateStatusRequest struct {
	Status models.UploadStatus `json:"status" binding:"required"`
}

type Filter struct {
	ProjectID string
	Status    models.UploadStatus
	DataType  models.DataType
}

// Options bounds what a single upload may carry.
type Options struct {
	Prefix      string
	MaxFiles    int
	MaxFileSize int64
}

// FileDownload is either a direct link or an open stream, never both.
type FileDownload struct {
	File models.UploadedFile
	URL  string
	Body io.ReadCloser
}
