// Package catalog searches the storefront catalogs and ranks the hits against the query.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/princinho/sahoassist/models"
)

type SearchType string

const (
	SearchText  SearchType = "text"
	SearchImage SearchType = "image"
)

const DefaultLimit = 10

// Adapter is one catalog back-end.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type Options struct {
	// CandidateLimit is how many hits each adapter is asked for before scoring.
	CandidateLimit int
	Timeout        time.Duration
}

type Matcher struct {
	adapters []Adapter
	opts     Options
	logger   *slog.Logger
}

func NewMatcher(adapters []Adapter, opts Options, logger *slog.Logger) *Matcher {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{adapters: adapters, opts: opts, logger: logger}
}

// Adapters lists the configured adapter names in query order.
func (m *Matcher) Adapters() []string {
	names := make([]string, len(m.adapters))
	for i, a := range m.adapters {
		names[i] = a.Name()
	}
	return names
}

// Search queries every adapter in sequence, then dedups, scores, sorts and
// truncates to limit. Image search has no content matching and returns nothing.
func (m *Matcher) Search(ctx context.Context, query string, typ SearchType, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)
	if typ == SearchImage || query == "" {
		return []models.Product{}
	}

	var all []models.Product
	for _, a := range m.adapters {
		hits, err := m.searchOne(ctx, a, query)
		if err != nil {
			m.logger.WarnContext(ctx, "catalog adapter failed, skipping", "adapter", a.Name(), "error", err)
			continue
		}
		all = append(all, hits...)
	}

	products := Dedup(all)
	for i := range products {
		products[i].Score = Score(products[i], query)
	}
	slices.SortStableFunc(products, func(a, b models.Product) int {
		return b.Score - a.Score
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

func (m *Matcher) searchOne(ctx context.Context, a Adapter, query string) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	hits, err := a.Search(ctx, query, m.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		if hits[i].Source == "" {
			hits[i].Source = a.Name()
		}
	}
	return hits, nil
}

// Dedup drops products whose trimmed, case-folded title was already seen. First wins.
func Dedup(products []models.Product) []models.Product {
	seen := make(map[string]bool, len(products))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// Score ranks p against query; higher is more relevant.
func Score(p models.Product, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	terms := strings.Fields(q)
	title := strings.ToLower(p.Title)
	description := strings.ToLower(p.Description)

	score := 0
	if q != "" && strings.Contains(title, q) {
		score += 100
	}
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += 50
		}
		if strings.Contains(description, term) {
			score += 25
		}
	}
	score += 30 * countMatches(p.Categories, terms)
	score += 20 * countMatches(p.Tags, terms)
	if p.InStock {
		score += 10
	}
	return score
}

func countMatches(names, terms []string) int {
	n := 0
	for _, name := range names {
		name = strings.ToLower(name)
		for _, term := range terms {
			if strings.Contains(name, term) {
				n++
			}
		}
	}
	return n
}
