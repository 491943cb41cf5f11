package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxrank/fluxrank/internal/config"
	"github.com/fluxrank/fluxrank/internal/lanes/feed"
	"github.com/fluxrank/fluxrank/internal/lanes/keyword"
	"github.com/fluxrank/fluxrank/internal/lanes/kg"
	"github.com/fluxrank/fluxrank/internal/lanes/vector"
	"github.com/fluxrank/fluxrank/internal/retrieval"
	"github.com/fluxrank/fluxrank/internal/telemetry"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	tier        string
	corpus      string
	format      string // "text", "json"
	constraints []string
}

// corpusFile is the seed format for the in-process lanes.
type corpusFile struct {
	Documents []corpusDocument `json:"documents"`
	Entities  []kg.Entity      `json:"entities"`
	Edges     []kg.Edge        `json:"edges"`
}

type corpusDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	Domain      string   `json:"domain"`
	PublishedAt string   `json:"published_at,omitempty"`
	Author      string   `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Authority   float64  `json:"authority,omitempty"`
	Entities    []string `json:"entities,omitempty"`
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run one fusion query across all configured lanes",
		Long: `Run one fusion query: the query is dispatched to every enabled lane
under its per-tier budget, and surviving results are fused with
Reciprocal Rank Fusion, deduplicated, and cited.

Examples:
  fluxrank query "reciprocal rank fusion" --corpus corpus.json
  fluxrank query "AAPL earnings" --tier simple --format json
  fluxrank query "graph databases" --constraint keyword:category=docs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tier, "tier", "t", "", "Complexity tier: simple, technical, research, multimedia (default: classify)")
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "JSON corpus file to seed the in-process lanes")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringArrayVarP(&opts.constraints, "constraint", "c", nil, "Lane constraint as [lane:]field=value (repeatable)")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lanes, cleanup, err := buildLanes(ctx, cfg, opts.corpus)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(lanes) == 0 {
		return fmt.Errorf("no lanes available: check lanes.enabled and feed endpoints in config")
	}

	dispatcher := retrieval.NewDispatcher(lanes, cfg.BudgetTable())
	fuser := retrieval.NewFuser(cfg.FusionParams())
	engine, err := retrieval.NewEngine(dispatcher, fuser,
		retrieval.WithClassifier(retrieval.NewPatternClassifier()),
		retrieval.WithMetrics(telemetry.NewRunMetrics()),
	)
	if err != nil {
		return err
	}

	constraints, err := parseConstraints(opts.constraints)
	if err != nil {
		return err
	}

	fused, err := engine.Run(ctx, query, retrieval.RunOptions{
		Complexity:  retrieval.Complexity(opts.tier),
		Constraints: constraints,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fused)
	}
	return printText(cmd, fused)
}

// buildLanes constructs the enabled lanes and seeds the in-process ones from
// the corpus file. Feed lanes without a configured endpoint are skipped with
// a warning rather than failing the run.
func buildLanes(ctx context.Context, cfg *config.Config, corpusPath string) ([]retrieval.Lane, func(), error) {
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return nil, nil, err
	}

	var lanes []retrieval.Lane
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, id := range cfg.EnabledLanes() {
		switch id {
		case retrieval.LaneKeyword:
			lane, err := keyword.New(cfg.Lanes.ResultLimit)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			if err := lane.Index(keywordDocs(corpus)); err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = lane.Close() })
			lanes = append(lanes, lane)

		case retrieval.LaneVector:
			lane, err := vector.New(vector.NewHashEmbedder(), cfg.Lanes.ResultLimit)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			if err := lane.Index(ctx, vectorDocs(corpus)); err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = lane.Close() })
			lanes = append(lanes, lane)

		case retrieval.LaneKnowledgeGraph:
			lane, err := kg.New(cfg.Lanes.GraphPath, cfg.Lanes.ResultLimit)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			if err := seedGraph(ctx, lane, corpus); err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = lane.Close() })
			lanes = append(lanes, lane)

		case retrieval.LaneNews:
			if cfg.Lanes.NewsEndpoint == "" {
				slog.Warn("news lane skipped: no endpoint configured")
				continue
			}
			lanes = append(lanes, feed.NewNews(cfg.Lanes.NewsEndpoint, feed.WithLimit(cfg.Lanes.ResultLimit)))

		case retrieval.LaneMarkets:
			if cfg.Lanes.MarketsEndpoint == "" {
				slog.Warn("markets lane skipped: no endpoint configured")
				continue
			}
			lanes = append(lanes, feed.NewMarkets(cfg.Lanes.MarketsEndpoint, feed.WithLimit(cfg.Lanes.ResultLimit)))

		default:
			slog.Warn("unknown lane in config", slog.String("lane", string(id)))
		}
	}

	return lanes, cleanup, nil
}

func loadCorpus(path string) (*corpusFile, error) {
	if path == "" {
		return &corpusFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var corpus corpusFile
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return &corpus, nil
}

func keywordDocs(corpus *corpusFile) []*keyword.Document {
	docs := make([]*keyword.Document, len(corpus.Documents))
	for i, d := range corpus.Documents {
		docs[i] = &keyword.Document{
			ID: d.ID, Title: d.Title, Content: d.Content, URL: d.URL,
			Domain: d.Domain, PublishedAt: d.PublishedAt, Author: d.Author,
			Category: d.Category, Tags: d.Tags, Authority: d.Authority,
		}
	}
	return docs
}

func vectorDocs(corpus *corpusFile) []*vector.Document {
	docs := make([]*vector.Document, len(corpus.Documents))
	for i, d := range corpus.Documents {
		docs[i] = &vector.Document{
			ID: d.ID, Title: d.Title, Content: d.Content, URL: d.URL,
			Domain: d.Domain, PublishedAt: d.PublishedAt, Author: d.Author,
			Category: d.Category, Tags: d.Tags, Authority: d.Authority,
		}
	}
	return docs
}

func seedGraph(ctx context.Context, lane *kg.Lane, corpus *corpusFile) error {
	if err := lane.AddEntities(ctx, corpus.Entities); err != nil {
		return err
	}
	if err := lane.AddEdges(ctx, corpus.Edges); err != nil {
		return err
	}
	docs := make([]kg.Document, 0, len(corpus.Documents))
	for _, d := range corpus.Documents {
		if len(d.Entities) == 0 {
			continue
		}
		docs = append(docs, kg.Document{
			ID: d.ID, Title: d.Title, URL: d.URL, Domain: d.Domain,
			PublishedAt: d.PublishedAt, Author: d.Author,
			Authority: d.Authority, Entities: d.Entities,
		})
	}
	return lane.AddDocuments(ctx, docs)
}

// parseConstraints parses repeatable [lane:]field=value flags.
func parseConstraints(raw []string) ([]retrieval.Constraint, error) {
	constraints := make([]retrieval.Constraint, 0, len(raw))
	for _, r := range raw {
		field, value, ok := strings.Cut(r, "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("invalid constraint %q: expected [lane:]field=value", r)
		}
		var lane retrieval.LaneID
		if laneName, f, scoped := strings.Cut(field, ":"); scoped {
			lane = retrieval.LaneID(laneName)
			field = f
		}
		constraints = append(constraints, retrieval.Constraint{Lane: lane, Field: field, Value: value})
	}
	return constraints, nil
}

func printText(cmd *cobra.Command, fused *retrieval.FusedResult) error {
	out := cmd.OutOrStdout()
	if fused.TotalResults == 0 {
		fmt.Fprintf(out, "No results (%d/%d lanes succeeded)\n",
			fused.Metadata.SuccessfulLanes, fused.Metadata.TotalLanes)
		return nil
	}

	fmt.Fprintf(out, "%d results from %d domains (%d/%d lanes, %dms)\n\n",
		fused.TotalResults, fused.UniqueDomains,
		fused.Metadata.SuccessfulLanes, fused.Metadata.TotalLanes,
		fused.FusionTimeMS)

	for i, item := range fused.Results {
		fmt.Fprintf(out, "%3d. %s (%s) score=%.4f lane=%s\n", i+1, item.Title, item.Domain, item.FusionScore, item.Lane)
		if item.URL != "" {
			fmt.Fprintf(out, "     %s\n", item.URL)
		}
	}

	if len(fused.Disagreements) > 0 {
		fmt.Fprintf(out, "\nPotential disagreements:\n")
		for _, d := range fused.Disagreements {
			fmt.Fprintf(out, "  %s vs %s (%.2f)\n", d.Source1, d.Source2, d.Confidence)
		}
	}
	return nil
}
