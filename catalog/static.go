package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/princinho/sahoassist/models"
)

// StaticAdapter serves a fixed product list, typically loaded from a YAML file.
type StaticAdapter struct {
	name     string
	products []models.Product
}

func NewStaticAdapter(name string, products []models.Product) *StaticAdapter {
	return &StaticAdapter{name: name, products: products}
}

type staticFile struct {
	Products []models.Product `yaml:"products"`
}

// LoadStaticCatalog reads a YAML document of the form `products: [...]`.
func LoadStaticCatalog(path string) (*StaticAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f staticFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for i := range f.Products {
		if f.Products[i].ID == "" {
			f.Products[i].ID = fmt.Sprintf("static-%d", i+1)
		}
	}
	return NewStaticAdapter("static", f.Products), nil
}

func (s *StaticAdapter) Name() string { return s.name }

// Search returns products mentioning any query term, in file order.
func (s *StaticAdapter) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	terms := strings.Fields(strings.ToLower(query))
	out := make([]models.Product, 0)
	for _, p := range s.products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !mentionsAny(p, terms) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func mentionsAny(p models.Product, terms []string) bool {
	fields := make([]string, 0, 2+len(p.Categories)+len(p.Tags))
	fields = append(fields, p.Title, p.Description)
	fields = append(fields, p.Categories...)
	fields = append(fields, p.Tags...)
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
