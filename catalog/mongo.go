package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/sahoassist/models"
)

// storefrontProduct is a document of the storefront "products" collection.
type storefrontProduct struct {
	ID          bson.ObjectID   `bson:"_id"`
	Name        string          `bson:"name"`
	Price       float64         `bson:"price"`
	Quantity    int             `bson:"quantity"`
	Slug        string          `bson:"slug"`
	CategoryIDs []bson.ObjectID `bson:"categoryIds"`
	ImageURLs   []string        `bson:"imageUrls"`
	Materials   []string        `bson:"materials"`
	Colors      []string        `bson:"colors"`
	Description string          `bson:"description"`
	IsDisabled  bool            `bson:"isDisabled"`
}

type storefrontCategory struct {
	ID   bson.ObjectID `bson:"_id"`
	Name string        `bson:"name"`
	Slug string        `bson:"slug"`
}

// MongoAdapter searches the storefront products and categories collections.
type MongoAdapter struct {
	products   *mongo.Collection
	categories *mongo.Collection
	siteURL    string
}

func NewMongoAdapter(db *mongo.Database, siteURL string) *MongoAdapter {
	return &MongoAdapter{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		siteURL:    strings.TrimRight(siteURL, "/"),
	}
}

func (a *MongoAdapter) Name() string { return "storefront" }

func (a *MongoAdapter) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []models.Product{}, nil
	}
	or := bson.A{}
	for _, term := range terms {
		re := bson.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		for _, field := range []string{"name", "description", "materials", "colors"} {
			or = append(or, bson.M{field: re})
		}
	}
	filter := bson.M{"isDisabled": bson.M{"$ne": true}, "$or": or}

	findOpts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	cursor, err := a.products.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var docs []storefrontProduct
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	names, err := a.categoryNames(ctx, docs)
	if err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		p := models.Product{
			ID:          d.ID.Hex(),
			Title:       d.Name,
			Description: d.Description,
			Price:       fmt.Sprintf("%.2f", d.Price),
			URL:         a.siteURL + "/products/" + d.Slug,
			InStock:     d.Quantity > 0,
			Categories:  []string{},
			Tags:        append(append([]string{}, d.Materials...), d.Colors...),
			Source:      a.Name(),
		}
		if len(d.ImageURLs) > 0 {
			p.Image = d.ImageURLs[0]
		}
		for _, id := range d.CategoryIDs {
			if n, ok := names[id]; ok {
				p.Categories = append(p.Categories, n)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *MongoAdapter) categoryNames(ctx context.Context, docs []storefrontProduct) (map[bson.ObjectID]string, error) {
	ids := bson.A{}
	for _, d := range docs {
		for _, id := range d.CategoryIDs {
			ids = append(ids, id)
		}
	}
	names := map[bson.ObjectID]string{}
	if len(ids) == 0 {
		return names, nil
	}
	cursor, err := a.categories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	var cats []storefrontCategory
	if err := cursor.All(ctx, &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}
