// Package kg implements the knowledge-graph retrieval lane on SQLite.
package kg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/fluxrank/fluxrank/internal/retrieval"
)

// DefaultLimit bounds how many documents one retrieval contributes to fusion.
const DefaultLimit = 20

// Entity is a named node in the graph.
type Entity struct {
	Name string
	Kind string
}

// Edge links two entities by name with a relation label.
type Edge struct {
	Source   string
	Target   string
	Relation string
}

// Document is a source document mentioning one or more entities.
type Document struct {
	ID          string
	Title       string
	URL         string
	Domain      string
	PublishedAt string
	Author      string
	Authority   float64
	Entities    []string // entity names this document mentions
}

// Lane traverses an entity/edge graph stored in SQLite: query tokens match
// entity names, matches expand one hop along edges, and documents mentioning
// any reached entity are returned ranked by how many they mention.
type Lane struct {
	db    *sql.DB
	limit int
}

// New opens (or creates) the graph store at path. Use ":memory:" for an
// ephemeral store. limit <= 0 uses DefaultLimit.
func New(path string, limit int) (*Lane, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	// Single writer prevents lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	l := &Lane{db: db, limit: limit}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Lane) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS entities (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	kind TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS edges (
	source_id INTEGER NOT NULL REFERENCES entities(id),
	target_id INTEGER NOT NULL REFERENCES entities(id),
	relation  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source_id, target_id, relation)
);
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	domain       TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	authority    REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS mentions (
	entity_id INTEGER NOT NULL REFERENCES entities(id),
	doc_id    TEXT NOT NULL REFERENCES documents(id),
	PRIMARY KEY (entity_id, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_mentions_entity ON mentions(entity_id);
`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("init graph schema: %w", err)
	}
	return nil
}

// ID implements retrieval.Lane.
func (l *Lane) ID() retrieval.LaneID { return retrieval.LaneKnowledgeGraph }

// AddEntities inserts entities, ignoring duplicates by name.
func (l *Lane) AddEntities(ctx context.Context, entities []Entity) error {
	for _, e := range entities {
		if _, err := l.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO entities (name, kind) VALUES (?, ?)`, e.Name, e.Kind); err != nil {
			return fmt.Errorf("add entity %q: %w", e.Name, err)
		}
	}
	return nil
}

// AddEdges links entities by name. Both endpoints must already exist.
func (l *Lane) AddEdges(ctx context.Context, edges []Edge) error {
	for _, e := range edges {
		res, err := l.db.ExecContext(ctx, `
INSERT OR IGNORE INTO edges (source_id, target_id, relation)
SELECT s.id, t.id, ?
FROM entities s, entities t
WHERE s.name = ? AND t.name = ?`, e.Relation, e.Source, e.Target)
		if err != nil {
			return fmt.Errorf("add edge %s->%s: %w", e.Source, e.Target, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Either a duplicate or an unknown endpoint; unknown
			// endpoints are a caller bug worth surfacing.
			var count int
			row := l.db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM entities WHERE name IN (?, ?)`, e.Source, e.Target)
			if err := row.Scan(&count); err == nil && count < 2 {
				return fmt.Errorf("add edge %s->%s: unknown entity", e.Source, e.Target)
			}
		}
	}
	return nil
}

// AddDocuments inserts documents and their entity mentions.
func (l *Lane) AddDocuments(ctx context.Context, docs []Document) error {
	for _, d := range docs {
		if _, err := l.db.ExecContext(ctx, `
INSERT OR REPLACE INTO documents (id, title, url, domain, published_at, author, authority)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Title, d.URL, d.Domain, d.PublishedAt, d.Author, d.Authority); err != nil {
			return fmt.Errorf("add document %s: %w", d.ID, err)
		}
		for _, name := range d.Entities {
			if _, err := l.db.ExecContext(ctx, `
INSERT OR IGNORE INTO mentions (entity_id, doc_id)
SELECT id, ? FROM entities WHERE name = ?`, d.ID, name); err != nil {
				return fmt.Errorf("add mention %s->%s: %w", name, d.ID, err)
			}
		}
	}
	return nil
}

// Retrieve implements retrieval.Lane: tokenize the query, match entity names,
// expand one hop along edges, then rank documents by matched-mention count.
// No matched entities is an empty success.
func (l *Lane) Retrieve(ctx context.Context, query string, _ retrieval.Complexity, _ []retrieval.Constraint) ([]*retrieval.Item, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return []*retrieval.Item{}, nil
	}

	entityIDs, err := l.matchEntities(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if len(entityIDs) == 0 {
		return []*retrieval.Item{}, nil
	}

	entityIDs, err = l.expandOneHop(ctx, entityIDs)
	if err != nil {
		return nil, err
	}

	return l.rankDocuments(ctx, entityIDs)
}

// matchEntities finds entity IDs whose name matches any query token.
func (l *Lane) matchEntities(ctx context.Context, tokens []string) ([]int64, error) {
	var ids []int64
	for _, token := range tokens {
		rows, err := l.db.QueryContext(ctx,
			`SELECT id FROM entities WHERE name LIKE ?`, "%"+token+"%")
		if err != nil {
			return nil, fmt.Errorf("match entities: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return dedupeIDs(ids), nil
}

// expandOneHop adds direct neighbors of the matched entities.
func (l *Lane) expandOneHop(ctx context.Context, seeds []int64) ([]int64, error) {
	ids := append([]int64(nil), seeds...)
	for _, seed := range seeds {
		rows, err := l.db.QueryContext(ctx, `
SELECT target_id FROM edges WHERE source_id = ?
UNION
SELECT source_id FROM edges WHERE target_id = ?`, seed, seed)
		if err != nil {
			return nil, fmt.Errorf("expand entities: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return dedupeIDs(ids), nil
}

// rankDocuments returns documents mentioning any reached entity, ordered by
// how many of them each document mentions.
func (l *Lane) rankDocuments(ctx context.Context, entityIDs []int64) ([]*retrieval.Item, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entityIDs)), ",")
	args := make([]any, 0, len(entityIDs)+1)
	for _, id := range entityIDs {
		args = append(args, id)
	}
	args = append(args, l.limit)

	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`
SELECT d.id, d.title, d.url, d.domain, d.published_at, d.author, d.authority,
       COUNT(m.entity_id) AS matched,
       GROUP_CONCAT(e.name) AS entity_names
FROM documents d
JOIN mentions m ON m.doc_id = d.id
JOIN entities e ON e.id = m.entity_id
WHERE m.entity_id IN (%s)
GROUP BY d.id
ORDER BY matched DESC, d.authority DESC, d.id ASC
LIMIT ?`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("rank documents: %w", err)
	}
	defer rows.Close()

	var items []*retrieval.Item
	maxMatched := 0
	type row struct {
		item    *retrieval.Item
		matched int
	}
	var collected []row
	for rows.Next() {
		var (
			it          retrieval.Item
			matched     int
			entityNames sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.URL, &it.Domain, &it.PublishedAt,
			&it.Author, &it.AuthorityScore, &matched, &entityNames); err != nil {
			return nil, err
		}
		if entityNames.Valid && entityNames.String != "" {
			it.Extra = map[string]any{"entities": strings.Split(entityNames.String, ",")}
		}
		if matched > maxMatched {
			maxMatched = matched
		}
		collected = append(collected, row{item: &it, matched: matched})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items = make([]*retrieval.Item, 0, len(collected))
	for _, r := range collected {
		if maxMatched > 0 {
			r.item.RelevanceScore = float64(r.matched) / float64(maxMatched)
		}
		items = append(items, r.item)
	}
	return items, nil
}

// Close releases the store.
func (l *Lane) Close() error {
	return l.db.Close()
}

// queryTokens extracts lowercase tokens of length >= 3.
func queryTokens(query string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, `"'.,;:!?()[]`)
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
