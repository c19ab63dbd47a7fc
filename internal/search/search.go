// Package search indexes projects for free-text lookup.
package search

import (
	"context"
	"strings"

	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
)

// Index keeps a searchable copy of projects.
type Index interface {
	IndexProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	// SearchProjects returns the ids of matching projects, best match first.
	SearchProjects(ctx context.Context, query string, limit int) ([]string, error)
}

// StoreIndex searches the project collection directly. It is used when no
// Elasticsearch cluster is configured; indexing is a no-op because the
// collection is always current.
type StoreIndex struct {
	projects store.Collection[models.Project]
}

func NewStoreIndex(projects store.Collection[models.Project]) *StoreIndex {
	return &StoreIndex{projects: projects}
}

func (s *StoreIndex) IndexProject(context.Context, *models.Project) error { return nil }

func (s *StoreIndex) DeleteProject(context.Context, string) error { return nil }

func (s *StoreIndex) SearchProjects(ctx context.Context, query string, limit int) ([]string, error) {
	terms := strings.Fields(strings.ToLower(query))
	matches, err := s.projects.List(ctx, func(p *models.Project) bool {
		text := searchableText(p)
		for _, term := range terms {
			if !strings.Contains(text, term) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(matches))
	for _, p := range matches {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func searchableText(p *models.Project) string {
	return strings.ToLower(strings.Join([]string{
		p.Name,
		p.Description,
		string(p.Category),
		p.Location.Country,
		p.Location.State,
		p.Location.District,
	}, " "))
}
