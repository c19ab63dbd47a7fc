package projects

import (
	"encoding/json"
	"time"

	"carbon-scribe/credit-registry-backend/internal/models"
)

// CreateProjectRequest registers a new project.
type CreateProjectRequest struct {
	Name             string                 `json:"name" binding:"required"`
	Description      string                 `json:"description"`
	Category         models.ProjectCategory `json:"category" binding:"required"`
	Location         LocationInput          `json:"location"`
	StartDate        *time.Time             `json:"start_date"`
	EndDate          *time.Time             `json:"end_date"`
	StakeholderIDs   []string               `json:"stakeholder_ids"`
	EstimatedCredits float64                `json:"estimated_credits" binding:"gte=0"`
	Budget           *models.Budget         `json:"budget"`
}

type LocationInput struct {
	Country      string              `json:"country" binding:"required"`
	State        string              `json:"state"`
	District     string              `json:"district"`
	Coordinates  *models.Coordinates `json:"coordinates"`
	AreaHectares float64             `json:"area_hectares" binding:"gte=0"`
	Boundary     json.RawMessage     `json:"boundary"`
}

// UpdateProjectRequest changes descriptive fields. Status changes go
// through ChangeStatus so the lifecycle is enforced.
type UpdateProjectRequest struct {
	Name             *string                 `json:"name"`
	Description      *string                 `json:"description"`
	Category         *models.ProjectCategory `json:"category"`
	Location         *LocationInput          `json:"location"`
	StartDate        *time.Time              `json:"start_date"`
	EndDate          *time.Time              `json:"end_date"`
	EstimatedCredits *float64                `json:"estimated_credits" binding:"omitempty,gte=0"`
	ActualCredits    *float64                `json:"actual_credits" binding:"omitempty,gte=0"`
	Budget           *models.Budget          `json:"budget"`
}

type ChangeStatusRequest struct {
	Status models.ProjectStatus `json:"status" binding:"required"`
}

// Filter narrows ListProjects. Empty fields match everything.
type Filter struct {
	Status   models.ProjectStatus
	Category models.ProjectCategory
	Country  string
}
