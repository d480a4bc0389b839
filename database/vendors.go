package database

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

type vendors struct{ s *Store }

func (q vendors) col() *mongo.Collection { return q.s.col(colVendors) }

func (q vendors) Create(ctx context.Context, v *models.Vendor) error {
	id, err := q.s.nextID(ctx, colVendors)
	if err != nil {
		return err
	}
	doc := *v
	doc.ID = id
	if doc.Categories == nil {
		doc.Categories = []models.VendorCategory{}
	}
	if _, err := q.col().InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	v.ID = id
	return nil
}

func (q vendors) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*models.Vendor, error) {
	var v models.Vendor
	if err := q.col().FindOne(ctx, filter, opts...).Decode(&v); err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (q vendors) Get(ctx context.Context, id int64) (*models.Vendor, error) {
	return q.findOne(ctx, bson.M{"_id": id})
}

func (q vendors) GetByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	return q.findOne(ctx, bson.M{"email": email}, options.FindOne().SetCollation(emailCollation))
}

func (q vendors) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Vendor, error) {
	cursor, err := q.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Vendor, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q vendors) List(ctx context.Context, f store.VendorFilter, p store.Page) ([]models.Vendor, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["categories.categorySlug"] = f.Category
	}
	if f.Search != "" {
		filter["$or"] = contains(f.Search, "name", "email", "company")
	}
	total, err := q.col().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out, err := q.find(ctx, filter, findPage(bson.D{{Key: "_id", Value: 1}}, p))
	return out, total, err
}

func (q vendors) Update(ctx context.Context, v *models.Vendor) error {
	res, err := q.col().UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$set": bson.M{
		"userId":               v.UserID,
		"name":                 v.Name,
		"email":                v.Email,
		"company":              v.Company,
		"phone":                v.Phone,
		"status":               v.Status,
		"notificationsEnabled": v.NotificationsEnabled,
		"updatedAt":            v.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q vendors) AddCategory(ctx context.Context, vendorID int64, c models.VendorCategory) error {
	res, err := q.col().UpdateOne(ctx,
		bson.M{"_id": vendorID, "categories.categorySlug": bson.M{"$ne": c.CategorySlug}},
		bson.M{"$push": bson.M{"categories": c}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := q.Get(ctx, vendorID); err != nil {
		return err
	}
	return store.ErrDuplicate
}

func reachableFilter() bson.M {
	return bson.M{"status": models.VendorStatusActive, "notificationsEnabled": true}
}

func (q vendors) FindByCategory(ctx context.Context, slug string) ([]models.Vendor, error) {
	filter := reachableFilter()
	filter["categories.categorySlug"] = bson.M{"$in": bson.A{slug, models.CategoryAll}}
	return q.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (q vendors) ListReachable(ctx context.Context, limit int) ([]models.Vendor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return q.find(ctx, reachableFilter(), opts)
}

// bump increments counters and recomputes responseRate in one pipeline update.
func (q vendors) bump(ctx context.Context, id int64, counters ...string) error {
	inc := bson.M{}
	for _, c := range counters {
		inc[c] = bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + c, 0}}, 1}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: inc}},
		{{Key: "$set", Value: bson.M{"responseRate": bson.M{"$cond": bson.A{
			bson.M{"$gt": bson.A{"$totalRequests", 0}},
			bson.M{"$divide": bson.A{bson.M{"$multiply": bson.A{"$totalResponses", 100}}, "$totalRequests"}},
			0,
		}}}}},
	}
	res, err := q.col().UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q vendors) RecordNotified(ctx context.Context, id int64) error {
	return q.bump(ctx, id, "totalRequests")
}

func (q vendors) RecordResponse(ctx context.Context, id int64) error {
	return q.bump(ctx, id, "totalResponses", "successfulMatches")
}
