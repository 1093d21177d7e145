// Package search keeps a full-text Elasticsearch index of listings.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

// MaxCandidates bounds how many ids a text query may return. The SQL layer
// applies the remaining filters and pagination to this candidate set.
const MaxCandidates = 500

var ErrDisabled = errors.New("search is disabled")

// Document is the indexed projection of a listing.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	City        string    `json:"city"`
	Price       string    `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

// Index is the listing search surface used by the listing service.
type Index interface {
	IndexListing(ctx context.Context, doc Document) error
	DeleteListing(ctx context.Context, id uuid.UUID) error
	SearchListingIDs(ctx context.Context, query string, limit int) ([]uuid.UUID, error)
}

type Client struct {
	es    *elasticsearch.Client
	index string
}

var _ Index = (*Client)(nil)

var indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "title":       {"type": "text"},
      "author":      {"type": "text"},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "condition":   {"type": "keyword"},
      "city":        {"type": "keyword"},
      "price":       {"type": "scaled_float", "scaling_factor": 100},
      "created_at":  {"type": "date"}
    }
  }
}`

// NewClient connects to Elasticsearch and creates the listing index when it
// does not exist yet.
func NewClient(ctx context.Context, cfg config.SearchConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, errors.New("search index name is required")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	c := &Client{es: es, index: cfg.Index}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	if err := c.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "index", cfg.Index), "elasticsearch client initialized")
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("info", res.StatusCode, res.Body)
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", c.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: status %d", c.index, res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res.StatusCode, res.Body)
	}
	return nil
}

func (c *Client) IndexListing(ctx context.Context, doc Document) error {
	if doc.ID == uuid.Nil {
		return errors.New("document id is required")
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode listing document: %w", err)
	}
	res, err := c.es.Index(
		c.index,
		&buf,
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(doc.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index listing %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res.StatusCode, res.Body)
	}
	return nil
}

// DeleteListing removes a listing document. A missing document is not an error.
func (c *Client) DeleteListing(ctx context.Context, id uuid.UUID) error {
	res, err := c.es.Delete(c.index, id.String(), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res.StatusCode, res.Body)
	}
	return nil
}

// SearchListingIDs returns ids of listings matching query, best match first.
func (c *Client) SearchListingIDs(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(query, limit)); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res.StatusCode, res.Body)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildQuery(query string, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     strings.TrimSpace(query),
				"fields":    []string{"title^3", "author^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
		"size":    size,
	}
}

func responseError(op string, status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 2048))
	return fmt.Errorf("elasticsearch %s: status %d: %s", op, status, strings.TrimSpace(string(raw)))
}
