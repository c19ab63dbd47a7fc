// Package stakeholders manages the organisations and people taking part in
// projects, and the links between them and projects.
package stakeholders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
)

type Service struct {
	stores    *database.Stores
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(stores *database.Stores, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		stores:    stores,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) CreateStakeholder(ctx context.Context, req *CreateStakeholderRequest) (*models.Stakeholder, error) {
	if !req.Category.Valid() {
		return nil, apperr.Field("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	status := req.Status
	if status == "" {
		status = models.StakeholderActive
	}
	if !status.Valid() {
		return nil, apperr.Field("status", fmt.Sprintf("unknown status %q", status))
	}

	stakeholder := &models.Stakeholder{
		Name:         req.Name,
		Category:     req.Category,
		Organization: req.Organization,
		Contact:      req.Contact.toModel(),
		ProjectIDs:   []string{},
		Status:       status,
	}
	id, err := s.stores.Stakeholders.Insert(ctx, stakeholder)
	if err != nil {
		return nil, apperr.FromStore(err, "stakeholder", stakeholder.ID)
	}

	s.logger.Info("Stakeholder created",
		zap.String("stakeholder_id", id),
		zap.String("category", string(stakeholder.Category)))
	return stakeholder, nil
}

func (s *Service) GetStakeholder(ctx context.Context, id string) (*models.Stakeholder, error) {
	stakeholder, err := s.stores.Stakeholders.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "stakeholder", id)
	}
	return stakeholder, nil
}

func (s *Service) ListStakeholders(ctx context.Context, filter Filter) ([]*models.Stakeholder, error) {
	out, err := s.stores.Stakeholders.List(ctx, func(st *models.Stakeholder) bool {
		if filter.Category != "" && st.Category != filter.Category {
			return false
		}
		return filter.Status == "" || st.Status == filter.Status
	})
	if err != nil {
		return nil, apperr.Internal("failed to list stakeholders", err)
	}
	return out, nil
}

func (s *Service) UpdateStakeholder(ctx context.Context, id string, req *UpdateStakeholderRequest) (*models.Stakeholder, error) {
	stakeholder, err := s.stores.Stakeholders.Update(ctx, id, func(st *models.Stakeholder) error {
		if req.Name != nil {
			if *req.Name == "" {
				return apperr.Field("name", "must not be empty")
			}
			st.Name = *req.Name
		}
		if req.Category != nil {
			if !req.Category.Valid() {
				return apperr.Field("category", fmt.Sprintf("unknown category %q", *req.Category))
			}
			st.Category = *req.Category
		}
		if req.Organization != nil {
			st.Organization = *req.Organization
		}
		if req.Contact != nil {
			st.Contact = req.Contact.toModel()
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return apperr.Field("status", fmt.Sprintf("unknown status %q", *req.Status))
			}
			st.Status = *req.Status
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "stakeholder", id)
	}
	return stakeholder, nil
}

// DeleteStakeholder removes the stakeholder and drops it from every project
// it was linked to.
func (s *Service) DeleteStakeholder(ctx context.Context, id string) error {
	stakeholder, err := s.stores.Stakeholders.Get(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "stakeholder", id)
	}
	if err := s.stores.Stakeholders.Delete(ctx, id); err != nil {
		return apperr.FromStore(err, "stakeholder", id)
	}

	for _, projectID := range stakeholder.ProjectIDs {
		_, err := s.stores.Projects.Update(ctx, projectID, func(p *models.Project) error {
			p.StakeholderIDs = models.UnlinkID(p.StakeholderIDs, id)
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Failed to unlink deleted stakeholder from project",
				zap.String("stakeholder_id", id),
				zap.String("project_id", projectID),
				zap.Error(err))
		}
	}

	s.logger.Info("Stakeholder deleted", zap.String("stakeholder_id", id))
	return nil
}

// LinkProject records the association on both the stakeholder and the
// project. Linking twice is a no-op.
func (s *Service) LinkProject(ctx context.Context, id, projectID, actor string) (*models.Stakeholder, error) {
	if _, err := s.stores.Projects.Get(ctx, projectID); err != nil {
		return nil, apperr.FromStore(err, "project", projectID)
	}

	stakeholder, err := s.stores.Stakeholders.Update(ctx, id, func(st *models.Stakeholder) error {
		st.ProjectIDs = models.LinkID(st.ProjectIDs, projectID)
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "stakeholder", id)
	}

	_, err = s.stores.Projects.Update(ctx, projectID, func(p *models.Project) error {
		p.StakeholderIDs = models.LinkID(p.StakeholderIDs, id)
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "project", projectID)
	}

	s.publisher.Publish(ctx, events.New(events.StakeholderLinked, projectID, id, actor, map[string]interface{}{
		"name":     stakeholder.Name,
		"category": string(stakeholder.Category),
	}))
	return stakeholder, nil
}

func (s *Service) UnlinkProject(ctx context.Context, id, projectID string) (*models.Stakeholder, error) {
	stakeholder, err := s.stores.Stakeholders.Update(ctx, id, func(st *models.Stakeholder) error {
		st.ProjectIDs = models.UnlinkID(st.ProjectIDs, projectID)
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "stakeholder", id)
	}

	_, err = s.stores.Projects.Update(ctx, projectID, func(p *models.Project) error {
		p.StakeholderIDs = models.UnlinkID(p.StakeholderIDs, id)
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.FromStore(err, "project", projectID)
	}
	return stakeholder, nil
}

// ContactEmails returns the e-mail addresses of the active stakeholders
// linked to a project. It backs the notification e-mail sink.
func (s *Service) ContactEmails(ctx context.Context, projectID string) ([]string, error) {
	linked, err := s.stores.Stakeholders.List(ctx, func(st *models.Stakeholder) bool {
		if st.Status != models.StakeholderActive || st.Contact.Email == "" {
			return false
		}
		for _, id := range st.ProjectIDs {
			if id == projectID {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(linked))
	for _, st := range linked {
		emails = models.LinkID(emails, st.Contact.Email)
	}
	return emails, nil
}
