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

type tickets struct{ s *Store }

func (q tickets) col() *mongo.Collection { return q.s.col(colTickets) }

func (q tickets) Create(ctx context.Context, t *models.SupportTicket) error {
	id, err := q.s.nextID(ctx, colTickets)
	if err != nil {
		return err
	}
	doc := *t
	doc.ID = id
	if doc.ConversationHistory == nil {
		doc.ConversationHistory = []models.TicketHistoryEntry{}
	}
	if _, err := q.col().InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	t.ID = id
	return nil
}

func (q tickets) Get(ctx context.Context, id int64) (*models.SupportTicket, error) {
	var t models.SupportTicket
	if err := q.col().FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func ticketFilter(f store.TicketFilter) bson.M {
	filter := bson.M{}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	switch {
	case f.AssignedTo > 0:
		filter["assignedTo"] = f.AssignedTo
	case f.Unassigned:
		filter["assignedTo"] = bson.M{"$in": bson.A{0, nil}}
	}
	timeRange(filter, "createdAt", f.CreatedAfter, f.CreatedBefore)
	if f.Search != "" {
		filter["$or"] = contains(f.Search, "ticketNumber", "subject", "message", "customerEmail")
	}
	return filter
}

func (q tickets) List(ctx context.Context, f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
	filter := ticketFilter(f)
	total, err := q.col().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	dir := -1
	if f.OldestFirst {
		dir = 1
	}
	cursor, err := q.col().Find(ctx, filter, findPage(bson.D{{Key: "_id", Value: dir}}, p))
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.SupportTicket, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (q tickets) Apply(ctx context.Context, id int64, c store.TicketChange) (*models.SupportTicket, error) {
	for range maxApplyAttempts {
		cur, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := *cur
		next.ConversationHistory = append([]models.TicketHistoryEntry(nil), cur.ConversationHistory...)
		if err := c.ApplyTo(&next, q.s.now()); err != nil {
			return nil, err
		}

		update := bson.M{"$set": bson.M{
			"status":      next.Status,
			"priority":    next.Priority,
			"assignedTo":  next.AssignedTo,
			"resolvedAt":  next.ResolvedAt,
			"escalatedAt": next.EscalatedAt,
			"updatedAt":   next.UpdatedAt,
			"version":     next.Version,
		}}
		if added := next.ConversationHistory[len(cur.ConversationHistory):]; len(added) > 0 {
			update["$push"] = bson.M{"conversationHistory": bson.M{"$each": added}}
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

func (q tickets) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.col().DeleteMany(ctx, bson.M{
		"status":    bson.M{"$in": bson.A{models.TicketStatusResolved, models.TicketStatusClosed}},
		"updatedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ---- users ----

type users struct{ s *Store }

func (q users) col() *mongo.Collection { return q.s.col(colUsers) }

func (q users) Create(ctx context.Context, u *models.User) error {
	id, err := q.s.nextID(ctx, colUsers)
	if err != nil {
		return err
	}
	doc := *u
	doc.ID = id
	if _, err := q.col().InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	u.ID = id
	return nil
}

func (q users) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := q.col().FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (q users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	opts := options.FindOne().SetCollation(emailCollation)
	if err := q.col().FindOne(ctx, bson.M{"email": email}, opts).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (q users) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	cursor, err := q.col().Find(ctx,
		bson.M{"role": role, "isActive": true},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- conversations ----

type conversations struct{ s *Store }

func (q conversations) col() *mongo.Collection { return q.s.col(colConversations) }

func (q conversations) Log(ctx context.Context, c *models.Conversation) error {
	id, err := q.s.nextID(ctx, colConversations)
	if err != nil {
		return err
	}
	c.ID = id
	_, err = q.col().InsertOne(ctx, c)
	return translate(err)
}

func conversationFilter(f store.ConversationFilter) bson.M {
	filter := bson.M{}
	if f.UserID > 0 {
		filter["userId"] = f.UserID
	}
	if f.SessionID != "" {
		filter["sessionId"] = f.SessionID
	}
	if f.Context != "" {
		filter["context"] = f.Context
	}
	timeRange(filter, "createdAt", f.CreatedAfter, f.CreatedBefore)
	return filter
}

func (q conversations) List(ctx context.Context, f store.ConversationFilter, p store.Page) ([]models.Conversation, int64, error) {
	filter := conversationFilter(f)
	total, err := q.col().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	cursor, err := q.col().Find(ctx, filter, findPage(sort, p))
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (q conversations) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.col().DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
