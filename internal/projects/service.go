// Package projects manages project registration, the project lifecycle and
// project search.
package projects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/search"
	"carbon-scribe/credit-registry-backend/internal/store"
	"carbon-scribe/credit-registry-backend/pkg/geospatial"
	"carbon-scribe/credit-registry-backend/pkg/workflows"
)

const defaultSearchLimit = 20

type Service struct {
	stores       *database.Stores
	index        search.Index
	publisher    events.Publisher
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
}

func NewService(stores *database.Stores, index search.Index, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		stores:       stores,
		index:        index,
		publisher:    publisher,
		stateMachine: workflows.NewProjectMachine(),
		logger:       logger,
	}
}

// CreateProject validates the request, derives area and centroid from a
// boundary when they are missing, and links the listed stakeholders.
func (s *Service) CreateProject(ctx context.Context, actor string, req *CreateProjectRequest) (*models.Project, error) {
	if !req.Category.Valid() {
		return nil, apperr.Field("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	if err := checkDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	location, err := buildLocation(req.Location)
	if err != nil {
		return nil, err
	}
	for _, id := range req.StakeholderIDs {
		if _, err := s.stores.Stakeholders.Get(ctx, id); err != nil {
			return nil, apperr.FromStore(err, "stakeholder", id)
		}
	}

	project := &models.Project{
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		Location:         location,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Status:           models.ProjectPlanning,
		StakeholderIDs:   dedupe(req.StakeholderIDs),
		EstimatedCredits: req.EstimatedCredits,
	}
	if req.Budget != nil {
		project.Budget = *req.Budget
	}

	id, err := s.stores.Projects.Insert(ctx, project)
	if err != nil {
		return nil, apperr.FromStore(err, "project", project.ID)
	}

	for _, stakeholderID := range project.StakeholderIDs {
		s.linkStakeholder(ctx, stakeholderID, id)
	}
	s.indexProject(ctx, project)

	payload := map[string]interface{}{
		"name":     project.Name,
		"category": string(project.Category),
	}
	if overlaps, err := s.overlapping(ctx, project); err != nil {
		s.logger.Warn("Failed to check project boundary overlaps", zap.String("project_id", id), zap.Error(err))
	} else if len(overlaps) > 0 {
		overlapIDs := make([]string, len(overlaps))
		for i, p := range overlaps {
			overlapIDs[i] = p.ID
		}
		s.logger.Warn("Project boundary overlaps registered projects",
			zap.String("project_id", id),
			zap.Strings("overlaps", overlapIDs))
		payload["overlaps"] = overlapIDs
	}

	s.logger.Info("Project created",
		zap.String("project_id", id),
		zap.String("name", project.Name),
		zap.String("category", string(project.Category)))
	s.publisher.Publish(ctx, events.New(events.ProjectCreated, id, id, actor, payload))

	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.stores.Projects.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "project", id)
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, filter Filter) ([]*models.Project, error) {
	projects, err := s.stores.Projects.List(ctx, func(p *models.Project) bool {
		if filter.Status != "" && p.Status != filter.Status {
			return false
		}
		if filter.Category != "" && p.Category != filter.Category {
			return false
		}
		if filter.Country != "" && p.Location.Country != filter.Country {
			return false
		}
		return true
	})
	if err != nil {
		return nil, apperr.Internal("failed to list projects", err)
	}
	return projects, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, req *UpdateProjectRequest) (*models.Project, error) {
	if req.Category != nil && !req.Category.Valid() {
		return nil, apperr.Field("category", fmt.Sprintf("unknown category %q", *req.Category))
	}
	var location *models.Location
	if req.Location != nil {
		loc, err := buildLocation(*req.Location)
		if err != nil {
			return nil, err
		}
		location = &loc
	}

	project, err := s.stores.Projects.Update(ctx, id, func(p *models.Project) error {
		if req.Name != nil {
			if *req.Name == "" {
				return apperr.Field("name", "must not be empty")
			}
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if location != nil {
			p.Location = *location
		}
		if req.StartDate != nil {
			p.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			p.EndDate = req.EndDate
		}
		if req.EstimatedCredits != nil {
			p.EstimatedCredits = *req.EstimatedCredits
		}
		if req.ActualCredits != nil {
			p.ActualCredits = *req.ActualCredits
		}
		if req.Budget != nil {
			p.Budget = *req.Budget
		}
		return checkDates(p.StartDate, p.EndDate)
	})
	if err != nil {
		return nil, apperr.FromStore(err, "project", id)
	}

	s.indexProject(ctx, project)
	return project, nil
}

// ChangeStatus moves a project along its lifecycle.
func (s *Service) ChangeStatus(ctx context.Context, id, actor string, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, apperr.Field("status", fmt.Sprintf("unknown status %q", status))
	}

	var previous models.ProjectStatus
	project, err := s.stores.Projects.Update(ctx, id, func(p *models.Project) error {
		if err := s.stateMachine.Transition(string(p.Status), string(status)); err != nil {
			return apperr.StateConflict("%s", err.Error())
		}
		previous = p.Status
		p.Status = status
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "project", id)
	}

	s.indexProject(ctx, project)
	s.logger.Info("Project status changed",
		zap.String("project_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.publisher.Publish(ctx, events.New(events.ProjectStatusChanged, id, id, actor, map[string]interface{}{
		"from": string(previous),
		"to":   string(status),
	}))
	return project, nil
}

// DeleteProject removes a project that no upload or credit refers to.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	project, err := s.stores.Projects.Get(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "project", id)
	}

	uploads, err := s.stores.Uploads.List(ctx, func(u *models.DataUpload) bool { return u.ProjectID == id })
	if err != nil {
		return apperr.Internal("failed to check project uploads", err)
	}
	credits, err := s.stores.Credits.List(ctx, func(c *models.CarbonCredit) bool { return c.ProjectID == id })
	if err != nil {
		return apperr.Internal("failed to check project credits", err)
	}
	if len(uploads) > 0 || len(credits) > 0 {
		return apperr.StateConflict("project %s is still referenced by %d uploads and %d credits", id, len(uploads), len(credits))
	}

	if err := s.stores.Projects.Delete(ctx, id); err != nil {
		return apperr.FromStore(err, "project", id)
	}

	for _, stakeholderID := range project.StakeholderIDs {
		_, err := s.stores.Stakeholders.Update(ctx, stakeholderID, func(st *models.Stakeholder) error {
			st.ProjectIDs = models.UnlinkID(st.ProjectIDs, id)
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Failed to unlink stakeholder from deleted project",
				zap.String("project_id", id),
				zap.String("stakeholder_id", stakeholderID),
				zap.Error(err))
		}
	}
	if err := s.index.DeleteProject(ctx, id); err != nil {
		s.logger.Warn("Failed to remove project from search index", zap.String("project_id", id), zap.Error(err))
	}

	s.logger.Info("Project deleted", zap.String("project_id", id))
	return nil
}

// SearchProjects runs a free-text query. Ids the index still knows about
// but the store no longer has are skipped.
func (s *Service) SearchProjects(ctx context.Context, query string, limit int) ([]*models.Project, error) {
	if query == "" {
		return nil, apperr.Field("q", "is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ids, err := s.index.SearchProjects(ctx, query, limit)
	if err != nil {
		return nil, apperr.Internal("project search failed", err)
	}

	out := make([]*models.Project, 0, len(ids))
	for _, id := range ids {
		project, err := s.stores.Projects.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal("failed to load search result", err)
		}
		out = append(out, project)
	}
	return out, nil
}

// Overlaps returns the other projects whose boundaries share area with the
// project's boundary, compared by bounding box. A project without a boundary
// overlaps nothing.
func (s *Service) Overlaps(ctx context.Context, id string) ([]*models.Project, error) {
	project, err := s.stores.Projects.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "project", id)
	}
	out, err := s.overlapping(ctx, project)
	if err != nil {
		return nil, apperr.Internal("failed to compare project boundaries", err)
	}
	return out, nil
}

func (s *Service) overlapping(ctx context.Context, project *models.Project) ([]*models.Project, error) {
	out := []*models.Project{}
	if len(project.Location.Boundary) == 0 {
		return out, nil
	}
	boundary, err := geospatial.ParseBoundary(project.Location.Boundary)
	if err != nil {
		return nil, err
	}
	candidates, err := s.stores.Projects.List(ctx, func(p *models.Project) bool {
		return p.ID != project.ID && len(p.Location.Boundary) > 0
	})
	if err != nil {
		return nil, err
	}
	for _, p := range candidates {
		other, err := geospatial.ParseBoundary(p.Location.Boundary)
		if err != nil {
			s.logger.Warn("Skipping stored project with unreadable boundary", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		if geospatial.CheckOverlap(boundary, other) {
			out = append(out, p)
		}
	}
	return out, nil
}

// NextSteps reports the statuses the project may move to.
func (s *Service) NextSteps(ctx context.Context, id string) (*workflows.NextSteps, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := s.stateMachine.NextSteps(string(project.Status))
	return &steps, nil
}

func (s *Service) linkStakeholder(ctx context.Context, stakeholderID, projectID string) {
	_, err := s.stores.Stakeholders.Update(ctx, stakeholderID, func(st *models.Stakeholder) error {
		st.ProjectIDs = models.LinkID(st.ProjectIDs, projectID)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to link stakeholder to project",
			zap.String("project_id", projectID),
			zap.String("stakeholder_id", stakeholderID),
			zap.Error(err))
	}
}

func (s *Service) indexProject(ctx context.Context, p *models.Project) {
	if err := s.index.IndexProject(ctx, p); err != nil {
		s.logger.Warn("Failed to index project", zap.String("project_id", p.ID), zap.Error(err))
	}
}

func buildLocation(in LocationInput) (models.Location, error) {
	loc := models.Location{
		Country:      in.Country,
		State:        in.State,
		District:     in.District,
		Coordinates:  in.Coordinates,
		AreaHectares: in.AreaHectares,
	}
	if loc.Coordinates != nil {
		if loc.Coordinates.Latitude < -90 || loc.Coordinates.Latitude > 90 {
			return loc, apperr.Field("location.coordinates.latitude", "must be between -90 and 90")
		}
		if loc.Coordinates.Longitude < -180 || loc.Coordinates.Longitude > 180 {
			return loc, apperr.Field("location.coordinates.longitude", "must be between -180 and 180")
		}
	}

	raw := bytes.TrimSpace(in.Boundary)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return loc, nil
	}
	geometry, err := geospatial.ParseBoundary(raw)
	if err != nil {
		return loc, apperr.Field("location.boundary", err.Error())
	}
	loc.Boundary = raw
	if loc.AreaHectares == 0 {
		loc.AreaHectares = geospatial.ConvertToHectares(geospatial.CalculateArea(geometry))
	}
	if loc.Coordinates == nil {
		centroid := geospatial.CalculateCentroid(geometry)
		loc.Coordinates = &models.Coordinates{Latitude: centroid.Lat(), Longitude: centroid.Lon()}
	}
	return loc, nil
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Field("end_date", "must not be before start_date")
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = models.LinkID(out, id)
	}
	return out
}
