package models

import (
	"time"

	"carbon-scribe/credit-registry-backend/internal/store"
)

type DataType string

const (
	DataFieldMeasurement   DataType = "field_measurement"
	DataSensor             DataType = "sensor_data"
	DataSatelliteImagery   DataType = "satellite_imagery"
	DataDroneImagery       DataType = "drone_imagery"
	DataSoilSample         DataType = "soil_sample"
	DataBiomassSurvey      DataType = "biomass_survey"
	DataBiodiversitySurvey DataType = "biodiversity_survey"
	DataPhotoEvidence      DataType = "photo_evidence"
	DataOther              DataType = "other"
)

func (d DataType) Valid() bool {
	switch d {
	case DataFieldMeasurement, DataSensor, DataSatelliteImagery, DataDroneImagery, DataSoilSample,
		DataBiomassSurvey, DataBiodiversitySurvey, DataPhotoEvidence, DataOther:
		return true
	}
	return false
}

type UploadStatus string

const (
	UploadUploaded                 UploadStatus = "uploaded"
	UploadProcessing               UploadStatus = "processing"
	UploadValidated                UploadStatus = "validated"
	UploadRejected                 UploadStatus = "rejected"
	UploadSubmittedForVerification UploadStatus = "submitted_for_verification"
	// UploadDeleting marks an upload whose removal is in progress.
	UploadDeleting UploadStatus = "deleting"
)

type UploadedFile struct {
	OriginalName string `json:"original_name" bson:"original_name"`
	FileName     string `json:"file_name" bson:"file_name"`
	MimeType     string `json:"mime_type" bson:"mime_type"`
	Size         int64  `json:"size" bson:"size"`
	Path         string `json:"path" bson:"path"`
	Checksum     string `json:"checksum" bson:"checksum"`
}

type UploadMetadata struct {
	CollectionDate *time.Time `json:"collection_date,omitempty" bson:"collection_date,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Equipment      string     `json:"equipment,omitempty" bson:"equipment,omitempty"`
	Methodology    string     `json:"methodology,omitempty" bson:"methodology,omitempty"`
	QualityScore   *float64   `json:"quality_score,omitempty" bson:"quality_score,omitempty"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

type DataUpload struct {
	store.Meta     `bson:",inline"`
	ProjectID      string         `json:"project_id" bson:"project_id"`
	DataType       DataType       `json:"data_type" bson:"data_type"`
	Files          []UploadedFile `json:"files" bson:"files"`
	Metadata       UploadMetadata `json:"metadata" bson:"metadata"`
	Status         UploadStatus   `json:"status" bson:"status"`
	VerificationID string         `json:"verification_id,omitempty" bson:"verification_id,omitempty"`
	UploadedBy     string         `json:"uploaded_by,omitempty" bson:"uploaded_by,omitempty"`
}
