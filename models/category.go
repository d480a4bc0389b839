package models

// Category is a suggested product category.
type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ImageAnalysis is the outcome of describing an uploaded product image.
type ImageAnalysis struct {
	Description string     `json:"description"`
	Categories  []Category `json:"categories"`
	Confidence  float64    `json:"confidence"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}
