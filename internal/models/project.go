// Package models holds the records the registry persists. Every record
// embeds store.Meta so it can live in any store.Collection.
package models

import (
	"encoding/json"
	"time"

	"carbon-scribe/credit-registry-backend/internal/store"
)

type ProjectCategory string

const (
	CategoryReforestation       ProjectCategory = "reforestation"
	CategoryAfforestation       ProjectCategory = "afforestation"
	CategoryConservation        ProjectCategory = "conservation"
	CategoryMangroveRestoration ProjectCategory = "mangrove_restoration"
	CategorySoilCarbon          ProjectCategory = "soil_carbon"
	CategoryAgroforestry        ProjectCategory = "agroforestry"
	CategoryRenewableEnergy     ProjectCategory = "renewable_energy"
	CategoryEnergyEfficiency    ProjectCategory = "energy_efficiency"
	CategoryMethaneCapture      ProjectCategory = "methane_capture"
	CategoryBlueCarbon          ProjectCategory = "blue_carbon"
	CategoryOther               ProjectCategory = "other"
)

var projectCategories = map[ProjectCategory]bool{
	CategoryReforestation:       true,
	CategoryAfforestation:       true,
	CategoryConservation:        true,
	CategoryMangroveRestoration: true,
	CategorySoilCarbon:          true,
	CategoryAgroforestry:        true,
	CategoryRenewableEnergy:     true,
	CategoryEnergyEfficiency:    true,
	CategoryMethaneCapture:      true,
	CategoryBlueCarbon:          true,
	CategoryOther:               true,
}

func (c ProjectCategory) Valid() bool { return projectCategories[c] }

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectSuspended ProjectStatus = "suspended"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectCompleted, ProjectSuspended, ProjectCancelled:
		return true
	}
	return false
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

type Location struct {
	Country      string       `json:"country" bson:"country"`
	State        string       `json:"state,omitempty" bson:"state,omitempty"`
	District     string       `json:"district,omitempty" bson:"district,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	AreaHectares float64      `json:"area_hectares" bson:"area_hectares"`
	// Boundary is a GeoJSON Polygon or MultiPolygon.
	Boundary json.RawMessage `json:"boundary,omitempty" bson:"boundary,omitempty"`
}

type Budget struct {
	Amount   float64 `json:"amount" bson:"amount"`
	Currency string  `json:"currency" bson:"currency"`
}

type Project struct {
	store.Meta       `bson:",inline"`
	Name             string          `json:"name" bson:"name"`
	Description      string          `json:"description,omitempty" bson:"description,omitempty"`
	Category         ProjectCategory `json:"category" bson:"category"`
	Location         Location        `json:"location" bson:"location"`
	StartDate        *time.Time      `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate          *time.Time      `json:"end_date,omitempty" bson:"end_date,omitempty"`
	Status           ProjectStatus   `json:"status" bson:"status"`
	StakeholderIDs   []string        `json:"stakeholder_ids" bson:"stakeholder_ids"`
	EstimatedCredits float64         `json:"estimated_credits" bson:"estimated_credits"`
	ActualCredits    float64         `json:"actual_credits" bson:"actual_credits"`
	Budget           Budget          `json:"budget" bson:"budget"`
}
