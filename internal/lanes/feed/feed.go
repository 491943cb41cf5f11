// Package feed implements the news and markets retrieval lanes over HTTP
// JSON feed endpoints.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fluxrank/fluxrank/internal/retrieval"
)

// Defaults for the feed client.
const (
	DefaultLimit     = 20
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 30 * time.Second
)

// feedItem is the wire format feed endpoints return.
type feedItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet,omitempty"`
	URL         string   `json:"url"`
	Domain      string   `json:"domain,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Author      string   `json:"author,omitempty"`
	Score       float64  `json:"score"`
	Authority   float64  `json:"authority,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Symbols     []string `json:"symbols,omitempty"`
}

type feedResponse struct {
	Items []feedItem `json:"items"`
}

// cacheEntry pairs a cached wire response with its fetch time for TTL
// eviction. Wire items are cached rather than built retrieval items so every
// hit yields fresh items the caller is free to mutate.
type cacheEntry struct {
	items   []feedItem
	fetched time.Time
}

// Lane is an HTTP feed lane. One type serves both news and markets: the lane
// ID and endpoint differ, the wire contract is the same.
type Lane struct {
	id       retrieval.LaneID
	endpoint string
	client   *http.Client
	cache    *lru.Cache[string, cacheEntry]
	cacheTTL time.Duration
	limit    int
}

// Option configures a feed lane.
type Option func(*Lane)

// WithHTTPClient overrides the HTTP client (tests inject short timeouts).
func WithHTTPClient(c *http.Client) Option {
	return func(l *Lane) { l.client = c }
}

// WithCacheTTL overrides how long feed responses are served from cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(l *Lane) { l.cacheTTL = ttl }
}

// WithLimit bounds how many items one retrieval contributes to fusion.
func WithLimit(limit int) Option {
	return func(l *Lane) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// NewNews creates the news feed lane against the given endpoint.
func NewNews(endpoint string, opts ...Option) *Lane {
	return newLane(retrieval.LaneNews, endpoint, opts...)
}

// NewMarkets creates the market-data feed lane against the given endpoint.
func NewMarkets(endpoint string, opts ...Option) *Lane {
	return newLane(retrieval.LaneMarkets, endpoint, opts...)
}

func newLane(id retrieval.LaneID, endpoint string, opts ...Option) *Lane {
	cache, _ := lru.New[string, cacheEntry](DefaultCacheSize)
	l := &Lane{
		id:       id,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{},
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID implements retrieval.Lane.
func (l *Lane) ID() retrieval.LaneID { return l.id }

// Retrieve implements retrieval.Lane. Responses are cached briefly; a feed
// with nothing matching is an empty success.
func (l *Lane) Retrieve(ctx context.Context, query string, complexity retrieval.Complexity, constraints []retrieval.Constraint) ([]*retrieval.Item, error) {
	requestURL, err := l.buildURL(query, complexity, constraints)
	if err != nil {
		return nil, err
	}

	if entry, ok := l.cache.Get(requestURL); ok && time.Since(entry.fetched) < l.cacheTTL {
		return l.toItems(entry.items), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", l.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s feed returned %d: %s", l.id, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s feed: %w", l.id, err)
	}

	l.cache.Add(requestURL, cacheEntry{items: parsed.Items, fetched: time.Now()})
	return l.toItems(parsed.Items), nil
}

func (l *Lane) buildURL(query string, complexity retrieval.Complexity, constraints []retrieval.Constraint) (string, error) {
	u, err := url.Parse(l.endpoint + "/search")
	if err != nil {
		return "", fmt.Errorf("feed endpoint: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("tier", string(complexity))
	params.Set("limit", fmt.Sprintf("%d", l.limit))
	for _, c := range constraints {
		if c.Lane != "" && c.Lane != l.id {
			continue
		}
		switch c.Field {
		case "category", "symbol", "since":
			params.Add(c.Field, c.Value)
		}
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (l *Lane) toItems(raw []feedItem) []*retrieval.Item {
	items := make([]*retrieval.Item, 0, len(raw))
	for i, fi := range raw {
		if i >= l.limit {
			break
		}
		domain := fi.Domain
		if domain == "" {
			domain = domainOf(fi.URL)
		}
		item := &retrieval.Item{
			ID:             fi.ID,
			Title:          fi.Title,
			Content:        fi.Snippet,
			URL:            fi.URL,
			Domain:         domain,
			PublishedAt:    fi.PublishedAt,
			Author:         fi.Author,
			RelevanceScore: clamp01(fi.Score),
			AuthorityScore: clamp01(fi.Authority),
			WordCount:      len(strings.Fields(fi.Snippet)),
			Category:       fi.Category,
			Tags:           slices.Clone(fi.Tags),
		}
		if len(fi.Symbols) > 0 {
			item.Extra = map[string]any{"symbols": slices.Clone(fi.Symbols)}
		}
		items = append(items, item)
	}
	return items
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
