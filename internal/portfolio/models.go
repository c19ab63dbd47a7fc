package portfolio

import "carbon-scribe/credit-registry-backend/internal/models"

// ProjectCredits groups the credits issued against one project.
type ProjectCredits struct {
	ProjectID    string                 `json:"project_id"`
	ProjectName  string                 `json:"project_name"`
	Category     models.ProjectCategory `json:"category"`
	Status       models.ProjectStatus   `json:"status"`
	TotalCredits float64                `json:"total_credits"`
	Credits      []*models.CarbonCredit `json:"credits"`
}

// Portfolio is the registry-wide credit rollup. TotalCredits sums every
// credit regardless of status; ActiveCredits counts credits still active.
type Portfolio struct {
	TotalCredits  float64          `json:"total_credits"`
	ActiveCredits int              `json:"active_credits"`
	TotalProjects int              `json:"total_projects"`
	Projects      []ProjectCredits `json:"projects"`
}
