package models

// Product is a catalog search hit as returned by a catalog adapter.
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Price       string   `json:"price" yaml:"price"`
	Image       string   `json:"image" yaml:"image"`
	URL         string   `json:"url" yaml:"url"`
	InStock     bool     `json:"inStock" yaml:"in_stock"`
	Categories  []string `json:"categories" yaml:"categories"`
	Tags        []string `json:"tags" yaml:"tags"`
	Source      string   `json:"source" yaml:"-"`
	Score       int      `json:"relevanceScore" yaml:"-"`
}
