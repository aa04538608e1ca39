package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/drblury/operatorhost/operator"
)

const (
	// DefaultLimit is used when a search asks for no limit.
	DefaultLimit = 20
	// MaxLimit caps the number of hits per search.
	MaxLimit = 100
)

// ErrInvalidQuery wraps query parse and execution failures.
var ErrInvalidQuery = errors.New("invalid search query")

// Config sets the field boosts.
type Config struct {
	NameBoost     float64
	TagsBoost     float64
	CategoryBoost float64
}

func (c Config) withDefaults() Config {
	if c.NameBoost <= 0 {
		c.NameBoost = 3
	}
	if c.TagsBoost <= 0 {
		c.TagsBoost = 2
	}
	if c.CategoryBoost <= 0 {
		c.CategoryBoost = 2
	}
	return c
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Index) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithConfig sets the field boosts.
func WithConfig(cfg Config) Option {
	return func(x *Index) {
		x.cfg = cfg.withDefaults()
	}
}

// Index is safe for concurrent use.
type Index struct {
	logger *slog.Logger
	cfg    Config

	mu          sync.RWMutex
	idx         bleve.Index
	fingerprint string
	size        int
}

// New returns an empty index.
func New(opts ...Option) *Index {
	x := &Index{
		logger: slog.Default(),
		cfg:    Config{}.withDefaults(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x
}

type document struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Paths       []string `json:"paths"`
}

func toDocument(op *operator.Registered) document {
	info := op.Info()
	return document{
		Name:        info.Name,
		Title:       info.Title,
		Description: info.Description,
		Category:    op.Category(),
		Tags:        info.Tags,
		Paths:       op.Descriptor.SortedPaths(),
	}
}

// Rebuild replaces the indexed operators with ops. The previous index keeps
// serving searches until the new one is ready.
func (x *Index) Rebuild(ops []*operator.Registered) error {
	fp := fingerprint(ops)

	x.mu.RLock()
	unchanged := x.idx != nil && x.fingerprint == fp
	x.mu.RUnlock()
	if unchanged {
		return nil
	}

	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}

	batch := idx.NewBatch()
	for _, op := range ops {
		if op == nil || op.Descriptor == nil {
			continue
		}
		if err := batch.Index(op.ID, toDocument(op)); err != nil {
			_ = idx.Close()
			return fmt.Errorf("index operator %s: %w", op.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("index operators: %w", err)
	}

	x.mu.Lock()
	old := x.idx
	x.idx = idx
	x.fingerprint = fp
	x.size = batch.Size()
	x.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			x.logger.Warn("Failed to close previous search index.", "error", err)
		}
	}
	x.logger.Debug("Search index rebuilt.", "operators", len(ops))
	return nil
}

// Search returns up to limit hits for q. limit <= 0 means DefaultLimit.
// Queries containing a colon use the bleve query string syntax, for example
// "category:text-processing".
func (x *Index) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.idx == nil {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(x.query(strings.TrimSpace(q)), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (x *Index) query(q string) query.Query {
	if q == "" {
		return bleve.NewMatchAllQuery()
	}
	if strings.Contains(q, ":") {
		return bleve.NewQueryStringQuery(q)
	}

	fields := []struct {
		name  string
		boost float64
	}{
		{"name", x.cfg.NameBoost},
		{"title", x.cfg.NameBoost},
		{"tags", x.cfg.TagsBoost},
		{"category", x.cfg.CategoryBoost},
		{"description", 1},
		{"paths", 1},
	}

	disjuncts := make([]query.Query, 0, len(fields)+1)
	for _, f := range fields {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		disjuncts = append(disjuncts, mq)
	}

	if !strings.ContainsAny(q, " \t") {
		pq := bleve.NewPrefixQuery(strings.ToLower(q))
		pq.SetField("name")
		pq.SetBoost(x.cfg.NameBoost)
		disjuncts = append(disjuncts, pq)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

// Len returns the number of indexed operators.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.size
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.idx == nil {
		return nil
	}
	err := x.idx.Close()
	x.idx = nil
	x.fingerprint = ""
	x.size = 0
	return err
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("category", text)
	doc.AddFieldMappingsAt("tags", text)
	doc.AddFieldMappingsAt("paths", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}
