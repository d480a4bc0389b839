package ai

import (
	"context"
	"strings"

	"github.com/princinho/sahoassist/models"
)

// CategorySuggester is the part of the gateway the classifier needs.
type CategorySuggester interface {
	SuggestCategories(ctx context.Context, query string) []models.Category
}

// Classifier maps a free-text description to ranked categories. It never returns an empty list.
type Classifier struct {
	suggester CategorySuggester
}

func NewClassifier(s CategorySuggester) *Classifier {
	return &Classifier{suggester: s}
}

func (c *Classifier) Suggest(ctx context.Context, query string) []models.Category {
	query = strings.TrimSpace(query)
	if query == "" || c.suggester == nil {
		return FallbackCategories(query)
	}
	if cats := c.suggester.SuggestCategories(ctx, query); len(cats) > 0 {
		return cats
	}
	return FallbackCategories(query)
}
