// Package portfolio derives read-only rollups of issued credits.
package portfolio

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/pkg/export"
)

var exportColumns = []export.Column{
	{Key: "serial_number", Label: "Serial Number"},
	{Key: "project_id", Label: "Project ID"},
	{Key: "project_name", Label: "Project"},
	{Key: "category", Label: "Category"},
	{Key: "credits_amount", Label: "Credits"},
	{Key: "methodology", Label: "Methodology"},
	{Key: "vintage", Label: "Vintage"},
	{Key: "status", Label: "Status"},
	{Key: "issued_at", Label: "Issued At"},
	{Key: "retired_at", Label: "Retired At"},
	{Key: "beneficiary", Label: "Beneficiary"},
}

type Service struct {
	stores *database.Stores
	logger *zap.Logger
}

func NewService(stores *database.Stores, logger *zap.Logger) *Service {
	return &Service{stores: stores, logger: logger}
}

// Portfolio lists every project with its own credits, including projects
// that have none yet.
func (s *Service) Portfolio(ctx context.Context) (*Portfolio, error) {
	projects, err := s.stores.Projects.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to load projects", err)
	}
	credits, err := s.stores.Credits.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to load credits", err)
	}

	byProject := make(map[string][]*models.CarbonCredit, len(projects))
	out := &Portfolio{TotalProjects: len(projects), Projects: make([]ProjectCredits, 0, len(projects))}
	for _, c := range credits {
		out.TotalCredits += c.CreditsAmount
		if c.Status == models.CreditActive {
			out.ActiveCredits++
		}
		byProject[c.ProjectID] = append(byProject[c.ProjectID], c)
	}

	for _, p := range projects {
		group := ProjectCredits{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Category:    p.Category,
			Status:      p.Status,
			Credits:     byProject[p.ID],
		}
		if group.Credits == nil {
			group.Credits = []*models.CarbonCredit{}
		}
		for _, c := range group.Credits {
			group.TotalCredits += c.CreditsAmount
		}
		out.Projects = append(out.Projects, group)
	}
	return out, nil
}

// Export writes one row per credit in the requested format.
func (s *Service) Export(ctx context.Context, w io.Writer, format export.Format) error {
	portfolio, err := s.Portfolio(ctx)
	if err != nil {
		return err
	}

	table := export.Table{Columns: exportColumns}
	for _, group := range portfolio.Projects {
		for _, c := range group.Credits {
			table.Rows = append(table.Rows, map[string]interface{}{
				"serial_number":  c.SerialNumber,
				"project_id":     group.ProjectID,
				"project_name":   group.ProjectName,
				"category":       string(group.Category),
				"credits_amount": c.CreditsAmount,
				"methodology":    c.Methodology,
				"vintage":        c.Vintage,
				"status":         string(c.Status),
				"issued_at":      c.IssuedAt,
				"retired_at":     c.RetiredAt,
				"beneficiary":    c.Beneficiary,
			})
		}
	}

	if err := export.Write(w, format, "Portfolio", table); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to export portfolio as %s", format), err)
	}
	s.logger.Info("Portfolio exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(table.Rows)))
	return nil
}
