package ai

import (
	"regexp"

	"github.com/princinho/sahoassist/models"
)

var fallbackReplies = map[models.ChatContext][]string{
	models.ContextProductSearch: {
		"I understand you're looking for a product. Could you provide more details about what you need?",
		"Let me help you find that product. Can you describe it in more detail?",
		"I'll help you search for that item. What specific features are you looking for?",
	},
	models.ContextOrderSupport: {
		"I'd be happy to help with your order. Could you please provide your order number?",
		"Let me assist you with your order issue. What specifically do you need help with?",
		"I'm here to help with your order. Please share more details about the problem.",
	},
	models.ContextSiteProblem: {
		"I'm sorry you're experiencing issues. Can you describe what problem you're encountering?",
		"Let me help resolve this issue. What specific error or problem are you seeing?",
		"I'll help troubleshoot this problem. Can you provide more details about what's not working?",
	},
	models.ContextGeneral: {
		"Thank you for your message. How can I help you today?",
		"I'm here to assist you. Could you provide more details about what you need?",
		"How can I help you with your inquiry?",
	},
}

// FallbackReplies returns the canned pool for c.
func FallbackReplies(c models.ChatContext) []string {
	if pool, ok := fallbackReplies[c]; ok {
		return pool
	}
	return fallbackReplies[models.ContextGeneral]
}

const fallbackImageDescription = "Product image uploaded - please describe what you're looking for"

func fallbackImageAnalysis() models.ImageAnalysis {
	return models.ImageAnalysis{
		Description: fallbackImageDescription,
		Categories:  []models.Category{},
		Confidence:  0.3,
	}
}

type keywordRule struct {
	pattern    *regexp.Regexp
	categories []models.Category
}

var keywordRules = []keywordRule{
	{regexp.MustCompile(`(?i)phone|mobile|smartphone|iphone|android`), []models.Category{
		{Name: "Electronics", Slug: "electronics"},
		{Name: "Mobile Phones", Slug: "mobile-phones"},
	}},
	{regexp.MustCompile(`(?i)laptop|computer|pc|desktop`), []models.Category{
		{Name: "Electronics", Slug: "electronics"},
		{Name: "Computers", Slug: "computers"},
	}},
	{regexp.MustCompile(`(?i)clothes|shirt|dress|pants|clothing`), []models.Category{
		{Name: "Clothing & Fashion", Slug: "clothing-fashion"},
		{Name: "Apparel", Slug: "apparel"},
	}},
	{regexp.MustCompile(`(?i)shoes|sneakers|boots|footwear`), []models.Category{
		{Name: "Clothing & Fashion", Slug: "clothing-fashion"},
		{Name: "Footwear", Slug: "footwear"},
	}},
	{regexp.MustCompile(`(?i)book|novel|magazine|reading`), []models.Category{
		{Name: "Books & Media", Slug: "books-media"},
		{Name: "Literature", Slug: "literature"},
	}},
}

var defaultCategories = []models.Category{
	{Name: "General", Slug: "general"},
	{Name: "Electronics", Slug: "electronics"},
	{Name: "Clothing & Fashion", Slug: "clothing-fashion"},
}

// FallbackCategories matches query against the keyword table, first rule wins.
// The result is never empty.
func FallbackCategories(query string) []models.Category {
	for _, r := range keywordRules {
		if r.pattern.MatchString(query) {
			return append([]models.Category(nil), r.categories...)
		}
	}
	return append([]models.Category(nil), defaultCategories...)
}
