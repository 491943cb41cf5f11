// Package vector implements the dense-similarity retrieval lane on an HNSW
// graph.
package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	"github.com/fluxrank/fluxrank/internal/retrieval"
)

// DefaultLimit bounds how many neighbors one retrieval contributes to fusion.
const DefaultLimit = 20

// Document is one indexable source document for the vector lane.
type Document struct {
	ID          string
	Title       string
	Content     string
	URL         string
	Domain      string
	PublishedAt string
	Author      string
	Category    string
	Tags        []string
	Authority   float64
}

// Lane is a dense vector-similarity lane backed by coder/hnsw with cosine
// distance. String IDs map to internal uint64 keys.
type Lane struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder Embedder
	docs     map[string]*Document
	idMap    map[string]uint64
	keyMap   map[uint64]string
	nextKey  uint64
	limit    int
	closed   bool
}

// New creates a vector lane over the given embedder. limit <= 0 uses
// DefaultLimit.
func New(embedder Embedder, limit int) (*Lane, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &Lane{
		graph:    graph,
		embedder: embedder,
		docs:     make(map[string]*Document),
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		limit:    limit,
	}, nil
}

// ID implements retrieval.Lane.
func (l *Lane) ID() retrieval.LaneID { return retrieval.LaneVector }

// Index embeds documents and adds them to the graph. Re-indexing an ID uses
// lazy deletion: the old graph node is orphaned rather than removed.
func (l *Lane) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lane is closed")
	}

	for _, doc := range docs {
		vec, err := l.embedder.Embed(ctx, doc.Title+"\n"+doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}

		if oldKey, exists := l.idMap[doc.ID]; exists {
			delete(l.keyMap, oldKey)
			delete(l.idMap, doc.ID)
		}

		key := l.nextKey
		l.nextKey++
		l.graph.Add(hnsw.MakeNode(key, vec))
		l.idMap[doc.ID] = key
		l.keyMap[key] = doc.ID
		l.docs[doc.ID] = doc
	}
	return nil
}

// Retrieve implements retrieval.Lane. No neighbors is an empty success.
func (l *Lane) Retrieve(ctx context.Context, query string, _ retrieval.Complexity, _ []retrieval.Constraint) ([]*retrieval.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lane is closed")
	}
	if strings.TrimSpace(query) == "" || l.graph.Len() == 0 {
		return []*retrieval.Item{}, nil
	}

	queryVec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes := l.graph.Search(queryVec, l.limit)

	items := make([]*retrieval.Item, 0, len(nodes))
	for _, node := range nodes {
		id, ok := l.keyMap[node.Key]
		if !ok {
			continue // orphaned by re-indexing
		}
		doc := l.docs[id]
		if doc == nil {
			continue
		}
		// Cosine distance ranges 0-2; fold into a 0-1 similarity.
		similarity := float64(1.0 - l.graph.Distance(queryVec, node.Value)/2.0)
		items = append(items, &retrieval.Item{
			ID:             doc.ID,
			Title:          doc.Title,
			Content:        doc.Content,
			URL:            doc.URL,
			Domain:         doc.Domain,
			PublishedAt:    doc.PublishedAt,
			Author:         doc.Author,
			RelevanceScore: similarity,
			AuthorityScore: doc.Authority,
			WordCount:      len(strings.Fields(doc.Content)),
			Category:       doc.Category,
			Tags:           doc.Tags,
			Extra:          map[string]any{"similarity": similarity},
		})
	}
	return items, nil
}

// Count returns the number of live documents in the lane.
func (l *Lane) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.idMap)
}

// Close releases the lane.
func (l *Lane) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
