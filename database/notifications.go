package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

type notifications struct{ s *Store }

func (q notifications) col() *mongo.Collection { return q.s.col(colNotifications) }

// Claim first tries to requeue a failed attempt, then to insert a fresh row.
// The unique (vendorId, requestId) index makes the insert lose to any
// concurrent claimer.
func (q notifications) Claim(ctx context.Context, vendorID, requestID int64, tokenID string, now, staleBefore time.Time) (*models.VendorNotification, bool, error) {
	pair := bson.M{"vendorId": vendorID, "requestId": requestID}

	var n models.VendorNotification
	err := q.col().FindOneAndUpdate(ctx,
		bson.M{"vendorId": vendorID, "requestId": requestID, "$or": bson.A{
			bson.M{"status": bson.M{"$in": bson.A{models.NotificationStatusFailed, models.NotificationStatusError}}},
			bson.M{"status": models.NotificationStatusQueued, "updatedAt": bson.M{"$lt": staleBefore}},
		}},
		bson.M{"$set": bson.M{
			"status":       models.NotificationStatusQueued,
			"tokenId":      tokenID,
			"errorMessage": "",
			"updatedAt":    now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err == nil {
		return &n, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	id, err := q.s.nextID(ctx, colNotifications)
	if err != nil {
		return nil, false, err
	}
	n = models.VendorNotification{
		ID:        id,
		VendorID:  vendorID,
		RequestID: requestID,
		Status:    models.NotificationStatusQueued,
		TokenID:   tokenID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = q.col().InsertOne(ctx, n)
	if err == nil {
		return &n, true, nil
	}
	if !IsDuplicateKey(err) {
		return nil, false, err
	}
	if err := q.col().FindOne(ctx, pair).Decode(&n); err != nil {
		return nil, false, translate(err)
	}
	return &n, false, nil
}

func (q notifications) SetStatus(ctx context.Context, id int64, status models.NotificationStatus, errMsg string, now time.Time) error {
	res, err := q.col().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       status,
		"errorMessage": errMsg,
		"updatedAt":    now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q notifications) MarkOpened(ctx context.Context, vendorID, requestID int64, tokenID string, now time.Time) error {
	_, err := q.col().UpdateOne(ctx,
		bson.M{"vendorId": vendorID, "requestId": requestID, "tokenId": tokenID, "status": models.NotificationStatusSent},
		bson.M{"$set": bson.M{"status": models.NotificationStatusOpened, "updatedAt": now}},
	)
	return err
}

func (q notifications) MarkResponded(ctx context.Context, vendorID, requestID int64, tokenID, message string, now time.Time) error {
	res, err := q.col().UpdateOne(ctx,
		bson.M{
			"vendorId":  vendorID,
			"requestId": requestID,
			"tokenId":   tokenID,
			"status":    bson.M{"$ne": models.NotificationStatusResponded},
		},
		bson.M{"$set": bson.M{
			"status":          models.NotificationStatusResponded,
			"responseMessage": message,
			"respondedAt":     now,
			"updatedAt":       now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrConflict
	}
	return nil
}

func (q notifications) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.VendorNotification, error) {
	cursor, err := q.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.VendorNotification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q notifications) ListByRequest(ctx context.Context, requestID int64) ([]models.VendorNotification, error) {
	return q.find(ctx, bson.M{"requestId": requestID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (q notifications) ListByVendor(ctx context.Context, vendorID int64, p store.Page) ([]models.VendorNotification, int64, error) {
	filter := bson.M{"vendorId": vendorID}
	total, err := q.col().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out, err := q.find(ctx, filter, findPage(bson.D{{Key: "_id", Value: -1}}, p))
	return out, total, err
}

func (q notifications) DeleteByRequest(ctx context.Context, requestID int64) error {
	_, err := q.col().DeleteMany(ctx, bson.M{"requestId": requestID})
	return err
}
