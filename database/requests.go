package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

var terminalStatuses = bson.A{
	models.ProductRequestStatusCompleted,
	models.ProductRequestStatusCancelled,
	models.ProductRequestStatusAutoClosed,
}

// withoutActivity keeps the embedded audit trail out of request reads.
var withoutActivity = bson.M{"activity": 0}

type requests struct{ s *Store }

func (q requests) col() *mongo.Collection { return q.s.col(colRequests) }

func (q requests) Create(ctx context.Context, r *models.ProductRequest, created models.RequestActivity) error {
	id, err := q.s.nextID(ctx, colRequests)
	if err != nil {
		return err
	}
	actID, err := q.s.nextID(ctx, "request_activity")
	if err != nil {
		return err
	}
	created.ID = actID
	created.RequestID = id
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.CreatedAt
	}

	doc := *r
	doc.ID = id
	doc.Activity = []models.RequestActivity{created}
	if _, err := q.col().InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	r.ID = id
	return nil
}

func (q requests) Get(ctx context.Context, id int64) (*models.ProductRequest, error) {
	var r models.ProductRequest
	opts := options.FindOne().SetProjection(withoutActivity)
	if err := q.col().FindOne(ctx, bson.M{"_id": id}, opts).Decode(&r); err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func requestFilter(f store.RequestFilter) bson.M {
	filter := bson.M{}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Category != "" {
		filter["category"] = exactFold(f.Category)
	}
	if f.UserID > 0 {
		filter["userId"] = f.UserID
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	timeRange(filter, "createdAt", f.CreatedAfter, f.CreatedBefore)
	if f.Search != "" {
		filter["$or"] = contains(f.Search, "requestNumber", "customerName", "customerEmail", "description")
	}
	return filter
}

func (q requests) List(ctx context.Context, f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
	filter := requestFilter(f)
	total, err := q.col().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	dir := -1
	if f.OldestFirst {
		dir = 1
	}
	opts := findPage(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}}, p).SetProjection(withoutActivity)
	cursor, err := q.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.ProductRequest, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Apply writes the changed request back in one document update guarded by
// its version, so the field changes and the activity push land together.
func (q requests) Apply(ctx context.Context, id int64, c store.RequestChange) (*models.ProductRequest, error) {
	for range maxApplyAttempts {
		cur, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := *cur
		now := q.s.now()
		if err := c.ApplyTo(&next, now); err != nil {
			return nil, err
		}
		acts := c.StampActivities(id, now)
		for i := range acts {
			if acts[i].ID, err = q.s.nextID(ctx, "request_activity"); err != nil {
				return nil, err
			}
		}

		update := bson.M{"$set": bson.M{
			"status":            next.Status,
			"priority":          next.Priority,
			"notes":             next.Notes,
			"vendorsContacted":  next.VendorsContacted,
			"responsesReceived": next.ResponsesReceived,
			"completedAt":       next.CompletedAt,
			"cancelledAt":       next.CancelledAt,
			"updatedAt":         next.UpdatedAt,
			"version":           next.Version,
		}}
		if len(acts) > 0 {
			update["$push"] = bson.M{"activity": bson.M{"$each": acts}}
		}
		res, err := q.col().UpdateOne(ctx, bson.M{"_id": id, "version": cur.Version}, update)
		if err != nil {
			return nil, translate(err)
		}
		if res.MatchedCount == 1 {
			return &next, nil
		}
	}
	return nil, store.ErrContention
}

func (q requests) Activities(ctx context.Context, id int64) ([]models.RequestActivity, error) {
	var doc struct {
		Activity []models.RequestActivity `bson:"activity"`
	}
	opts := options.FindOne().SetProjection(bson.M{"activity": 1})
	if err := q.col().FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	if doc.Activity == nil {
		return []models.RequestActivity{}, nil
	}
	return doc.Activity, nil
}

func (q requests) Delete(ctx context.Context, id int64) error {
	res, err := q.col().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q requests) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.col().DeleteMany(ctx, bson.M{
		"status":    bson.M{"$in": terminalStatuses},
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
