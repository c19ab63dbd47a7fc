package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"carbon-scribe/credit-registry-backend/internal/models"
)

// projectDocument is the indexed shape of a project.
type projectDocument struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	State       string  `json:"state"`
	District    string  `json:"district"`
	Area        float64 `json:"area_hectares"`
}

// ElasticIndex stores projects in an Elasticsearch index.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndex(cfg elasticsearch.Config, index string) (*ElasticIndex, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticIndex{client: client, index: index}, nil
}

func (e *ElasticIndex) IndexProject(ctx context.Context, p *models.Project) error {
	body, err := json.Marshal(projectDocument{
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		Status:      string(p.Status),
		Country:     p.Location.Country,
		State:       p.Location.State,
		District:    p.Location.District,
		Area:        p.Location.AreaHectares,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index project %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	return responseError(res, "index project "+p.ID)
}

func (e *ElasticIndex) DeleteProject(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: e.index, DocumentID: id}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to delete project %s from index: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError(res, "delete project "+id)
}

func (e *ElasticIndex) SearchProjects(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := json.Marshal(map[string]interface{}{
		"_source": false,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^3", "description", "category", "country", "state", "district"},
				"fuzziness": "AUTO",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search projects: %w", err)
	}
	defer res.Body.Close()
	if err := responseError(res, "search projects"); err != nil {
		return nil, err
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func responseError(res *esapi.Response, action string) error {
	if !res.IsError() {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("elasticsearch %s: %s: %s", action, res.Status(), bytes.TrimSpace(msg))
}
