// Package keyword implements the full-text retrieval lane on Bleve.
package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/fluxrank/fluxrank/internal/retrieval"
)

// DefaultLimit bounds how many hits one retrieval contributes to fusion.
const DefaultLimit = 20

// Document is one indexable source document.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	Domain      string   `json:"domain"`
	PublishedAt string   `json:"published_at,omitempty"`
	Author      string   `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Authority   float64  `json:"authority"`
}

// bleveDocument is the projection actually indexed; full documents live in
// the metadata map so hits can be rehydrated without stored fields.
type bleveDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Lane is a keyword full-text lane backed by an in-process Bleve index.
type Lane struct {
	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]*Document
	limit  int
	closed bool
}

// New creates an in-memory keyword lane. limit <= 0 uses DefaultLimit.
func New(limit int) (*Lane, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Lane{
		index: index,
		docs:  make(map[string]*Document),
		limit: limit,
	}, nil
}

// ID implements retrieval.Lane.
func (l *Lane) ID() retrieval.LaneID { return retrieval.LaneKeyword }

// Index adds documents to the lane in one batch.
func (l *Lane) Index(docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lane is closed")
	}

	batch := l.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Title: doc.Title, Content: doc.Content}); err != nil {
			return fmt.Errorf("batch document %s: %w", doc.ID, err)
		}
		l.docs[doc.ID] = doc
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Retrieve implements retrieval.Lane. No matches is an empty success.
func (l *Lane) Retrieve(ctx context.Context, query string, _ retrieval.Complexity, constraints []retrieval.Constraint) ([]*retrieval.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lane is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []*retrieval.Item{}, nil
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	request := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQuery, contentQuery))
	request.Size = l.limit

	result, err := l.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	if len(result.Hits) == 0 {
		return []*retrieval.Item{}, nil
	}

	maxScore := result.Hits[0].Score
	items := make([]*retrieval.Item, 0, len(result.Hits))
	for _, hit := range result.Hits {
		doc, ok := l.docs[hit.ID]
		if !ok {
			continue // deleted between search and rehydration
		}
		if !matchesConstraints(doc, constraints) {
			continue
		}
		relevance := 0.0
		if maxScore > 0 {
			relevance = hit.Score / maxScore
		}
		items = append(items, &retrieval.Item{
			ID:             doc.ID,
			Title:          doc.Title,
			Content:        snippet(doc.Content),
			URL:            doc.URL,
			Domain:         doc.Domain,
			PublishedAt:    doc.PublishedAt,
			Author:         doc.Author,
			RelevanceScore: relevance,
			AuthorityScore: doc.Authority,
			WordCount:      len(strings.Fields(doc.Content)),
			Category:       doc.Category,
			Tags:           doc.Tags,
		})
	}
	return items, nil
}

// Close releases the index.
func (l *Lane) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

// matchesConstraints applies this lane's own constraints; foreign-lane
// constraints are ignored.
func matchesConstraints(doc *Document, constraints []retrieval.Constraint) bool {
	for _, c := range constraints {
		if c.Lane != "" && c.Lane != retrieval.LaneKeyword {
			continue
		}
		switch c.Field {
		case "category":
			if !strings.EqualFold(doc.Category, c.Value) {
				return false
			}
		case "domain":
			if !strings.EqualFold(doc.Domain, c.Value) {
				return false
			}
		}
	}
	return true
}

const snippetLen = 280

func snippet(content string) string {
	if len(content) <= snippetLen {
		return content
	}
	return content[:snippetLen]
}
