// Package search implements the document index client and the projections
// written to it. The index is an eventually consistent secondary: the
// relational store stays the source of truth and every document here can be
// rebuilt from it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Index names.
const (
	IndexEntries   = "entries"
	IndexSolutions = "solutions"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
)

// Config holds index client configuration.
type Config struct {
	// URL is the Meilisearch base URL.
	URL string

	// APIKey is the master or API key, sent as a bearer token. Empty
	// disables authentication.
	APIKey string

	// Timeout bounds every outbound call (default: 30s).
	Timeout time.Duration
}

// Client talks to a Meilisearch-compatible document index over HTTP. It is
// read-only after construction and safe for concurrent use.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates an index client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: trimTrailingSlash(cfg.URL),
		apiKey:  cfg.APIKey,
	}
}

// StatusError is a non-2xx response from the index.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("index returned status %d: %s", e.Code, e.Body)
}

// indexSettings is the attribute and ranking configuration applied to an
// index. Reapplied unconditionally by EnsureIndexes.
type indexSettings struct {
	SearchableAttributes []string `json:"searchableAttributes"`
	FilterableAttributes []string `json:"filterableAttributes"`
	SortableAttributes   []string `json:"sortableAttributes"`
	RankingRules         []string `json:"rankingRules"`
}

var rankingRules = []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}

// EnsureIndexes creates both indexes if absent and reapplies their
// settings. Idempotent: safe at first deployment and as an ad hoc reset.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	err := c.ensureIndex(ctx, IndexEntries, indexSettings{
		SearchableAttributes: []string{"title", "description", "symptoms", "root_cause"},
		FilterableAttributes: []string{"severity", "workflow_state", "created_by"},
		SortableAttributes:   []string{"created_at", "severity"},
		RankingRules:         rankingRules,
	})
	if err != nil {
		return fmt.Errorf("ensure %s index: %w", IndexEntries, err)
	}

	err = c.ensureIndex(ctx, IndexSolutions, indexSettings{
		SearchableAttributes: []string{"title", "description", "steps_text"},
		FilterableAttributes: []string{"solution_type", "entry_id"},
		SortableAttributes:   []string{"created_at"},
		RankingRules:         rankingRules,
	})
	if err != nil {
		return fmt.Errorf("ensure %s index: %w", IndexSolutions, err)
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, name string, settings indexSettings) error {
	err := c.do(ctx, http.MethodGet, "/indexes/"+name, nil, nil)
	if isStatus(err, http.StatusNotFound) {
		create := map[string]string{"uid": name, "primaryKey": "id"}
		if err := c.do(ctx, http.MethodPost, "/indexes", create, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}

	if err := c.do(ctx, http.MethodPatch, "/indexes/"+name+"/settings", settings, nil); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}
	return nil
}

// IndexEntry upserts one entry document.
func (c *Client) IndexEntry(ctx context.Context, doc EntryDocument) error {
	return c.upsert(ctx, IndexEntries, doc)
}

// DeleteEntry removes an entry document by id.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/indexes/"+IndexEntries+"/documents/"+id, nil, nil)
}

// IndexSolution upserts one solution document.
func (c *Client) IndexSolution(ctx context.Context, doc SolutionDocument) error {
	return c.upsert(ctx, IndexSolutions, doc)
}

// DeleteSolution removes a solution document by id.
func (c *Client) DeleteSolution(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/indexes/"+IndexSolutions+"/documents/"+id, nil, nil)
}

// upsert posts a single-element array: the documents endpoint takes an
// array payload even for one document.
func (c *Client) upsert(ctx context.Context, index string, doc any) error {
	return c.do(ctx, http.MethodPost, "/indexes/"+index+"/documents", []any{doc}, nil)
}

type searchRequest struct {
	Query            string `json:"q"`
	Limit            int    `json:"limit"`
	Offset           int    `json:"offset"`
	ShowRankingScore bool   `json:"showRankingScore"`
	Filter           string `json:"filter,omitempty"`
}

// EntryHit is one entry search result with its relevance score.
type EntryHit struct {
	EntryDocument
	Score float64 `json:"_rankingScore"`
}

// EntryResult is a page of entry hits.
type EntryResult struct {
	Hits               []EntryHit `json:"hits"`
	EstimatedTotalHits int        `json:"estimatedTotalHits"`
}

// SolutionHit is one solution search result with its relevance score.
type SolutionHit struct {
	SolutionDocument
	Score float64 `json:"_rankingScore"`
}

// SolutionResult is a page of solution hits.
type SolutionResult struct {
	Hits               []SolutionHit `json:"hits"`
	EstimatedTotalHits int           `json:"estimatedTotalHits"`
}

// SearchEntries queries the entries index. The filter expression comes from
// CompileFilters; empty means unfiltered.
func (c *Client) SearchEntries(ctx context.Context, query, filter string, limit, offset int) (EntryResult, error) {
	var result EntryResult
	req := searchRequest{Query: query, Limit: limit, Offset: offset, ShowRankingScore: true, Filter: filter}
	if err := c.do(ctx, http.MethodPost, "/indexes/"+IndexEntries+"/search", req, &result); err != nil {
		return EntryResult{}, fmt.Errorf("search entries: %w", err)
	}
	return result, nil
}

// SearchSolutions queries the solutions index.
func (c *Client) SearchSolutions(ctx context.Context, query, filter string, limit, offset int) (SolutionResult, error) {
	var result SolutionResult
	req := searchRequest{Query: query, Limit: limit, Offset: offset, ShowRankingScore: true, Filter: filter}
	if err := c.do(ctx, http.MethodPost, "/indexes/"+IndexSolutions+"/search", req, &result); err != nil {
		return SolutionResult{}, fmt.Errorf("search solutions: %w", err)
	}
	return result, nil
}

// Health reports whether the index is up and available.
func (c *Client) Health(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return fmt.Errorf("index health: %w", err)
	}
	if health.Status != "available" {
		return fmt.Errorf("index health: status %q", health.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func isStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

func trimTrailingSlash(url string) string {
	for len(url) > 0 && url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}
