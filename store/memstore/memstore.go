// Package memstore is an in-memory store.Store used by tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

type Store struct {
	mu sync.Mutex

	ids           map[string]int64
	sequences     map[string]int64
	conversations []models.Conversation
	requests      map[int64]*models.ProductRequest
	activities    map[int64][]models.RequestActivity
	vendors       map[int64]*models.Vendor
	notifications map[int64]*models.VendorNotification
	tickets       map[int64]*models.SupportTicket
	users         map[int64]*models.User

	now func() time.Time
}

func New() *Store {
	return &Store{
		ids:           map[string]int64{},
		sequences:     map[string]int64{},
		requests:      map[int64]*models.ProductRequest{},
		activities:    map[int64][]models.RequestActivity{},
		vendors:       map[int64]*models.Vendor{},
		notifications: map[int64]*models.VendorNotification{},
		tickets:       map[int64]*models.SupportTicket{},
		users:         map[int64]*models.User{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock makes the store stamp updates with now instead of the wall clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Conversations() store.ConversationStore { return conversations{s} }
func (s *Store) Requests() store.RequestStore           { return requests{s} }
func (s *Store) Vendors() store.VendorStore             { return vendors{s} }
func (s *Store) Notifications() store.NotificationStore { return notifications{s} }
func (s *Store) Tickets() store.TicketStore             { return tickets{s} }
func (s *Store) Users() store.UserStore                 { return users{s} }
func (s *Store) Sequences() store.SequenceStore         { return sequences{s} }
func (s *Store) Ping(context.Context) error             { return nil }
func (s *Store) Close(context.Context) error            { return nil }

// nextID must be called with s.mu held.
func (s *Store) nextID(kind string) int64 {
	s.ids[kind]++
	return s.ids[kind]
}

func paginate[T any](items []T, p store.Page) []T {
	if p.PerPage <= 0 {
		return items
	}
	off := p.Offset()
	if off >= len(items) {
		return []T{}
	}
	end := min(off+p.PerPage, len(items))
	return items[off:end]
}

// ---- sequences ----

type sequences struct{ s *Store }

func (q sequences) Next(_ context.Context, key string) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.sequences[key]++
	return q.s.sequences[key], nil
}

// ---- conversations ----

type conversations struct{ s *Store }

func (q conversations) Log(_ context.Context, c *models.Conversation) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c.ID = q.s.nextID("conversations")
	q.s.conversations = append(q.s.conversations, *c)
	return nil
}

func (q conversations) List(_ context.Context, f store.ConversationFilter, p store.Page) ([]models.Conversation, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.Conversation, 0)
	for i := len(q.s.conversations) - 1; i >= 0; i-- {
		if c := q.s.conversations[i]; f.Match(c) {
			out = append(out, c)
		}
	}
	return paginate(out, p), int64(len(out)), nil
}

func (q conversations) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	kept := q.s.conversations[:0]
	var n int64
	for _, c := range q.s.conversations {
		if c.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	q.s.conversations = kept
	return n, nil
}

// ---- requests ----

type requests struct{ s *Store }

func copyRequest(r *models.ProductRequest) *models.ProductRequest {
	c := *r
	c.Activity = nil
	return &c
}

func (q requests) Create(_ context.Context, r *models.ProductRequest, created models.RequestActivity) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.requests {
		if existing.RequestNumber == r.RequestNumber {
			return store.ErrDuplicate
		}
	}
	r.ID = q.s.nextID("requests")
	q.s.requests[r.ID] = copyRequest(r)
	created.ID = q.s.nextID("activity")
	created.RequestID = r.ID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.CreatedAt
	}
	q.s.activities[r.ID] = append(q.s.activities[r.ID], created)
	return nil
}

func (q requests) Get(_ context.Context, id int64) (*models.ProductRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	r, ok := q.s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRequest(r), nil
}

func (q requests) List(_ context.Context, f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.ProductRequest, 0)
	for _, r := range q.s.requests {
		if f.Match(*r) {
			out = append(out, *copyRequest(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if f.OldestFirst {
				return out[i].ID < out[j].ID
			}
			return out[i].ID > out[j].ID
		}
		if f.OldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, p), int64(len(out)), nil
}

func (q requests) Apply(_ context.Context, id int64, c store.RequestChange) (*models.ProductRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	r, ok := q.s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := copyRequest(r)
	now := q.s.now()
	if err := c.ApplyTo(next, now); err != nil {
		return nil, err
	}
	for _, a := range c.StampActivities(id, now) {
		a.ID = q.s.nextID("activity")
		q.s.activities[id] = append(q.s.activities[id], a)
	}
	q.s.requests[id] = next
	return copyRequest(next), nil
}

func (q requests) Activities(_ context.Context, id int64) ([]models.RequestActivity, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.requests[id]; !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(q.s.activities[id]), nil
}

func (q requests) Delete(_ context.Context, id int64) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.requests[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.s.requests, id)
	delete(q.s.activities, id)
	return nil
}

func (q requests) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var n int64
	for id, r := range q.s.requests {
		if r.Status.IsTerminal() && r.CreatedAt.Before(cutoff) {
			delete(q.s.requests, id)
			delete(q.s.activities, id)
			n++
		}
	}
	return n, nil
}

// ---- vendors ----

type vendors struct{ s *Store }

func copyVendor(v *models.Vendor) *models.Vendor {
	c := *v
	c.Categories = slices.Clone(v.Categories)
	return &c
}

func (q vendors) Create(_ context.Context, v *models.Vendor) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.vendors {
		if strings.EqualFold(existing.Email, v.Email) {
			return store.ErrDuplicate
		}
	}
	v.ID = q.s.nextID("vendors")
	q.s.vendors[v.ID] = copyVendor(v)
	return nil
}

func (q vendors) Get(_ context.Context, id int64) (*models.Vendor, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	v, ok := q.s.vendors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyVendor(v), nil
}

func (q vendors) GetByEmail(_ context.Context, email string) (*models.Vendor, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, v := range q.s.vendors {
		if strings.EqualFold(v.Email, email) {
			return copyVendor(v), nil
		}
	}
	return nil, store.ErrNotFound
}

// sorted must be called with s.mu held.
func (q vendors) sorted(keep func(models.Vendor) bool) []models.Vendor {
	out := make([]models.Vendor, 0)
	for _, v := range q.s.vendors {
		if keep(*v) {
			out = append(out, *copyVendor(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (q vendors) List(_ context.Context, f store.VendorFilter, p store.Page) ([]models.Vendor, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := q.sorted(f.Match)
	return paginate(out, p), int64(len(out)), nil
}

func (q vendors) Update(_ context.Context, v *models.Vendor) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	existing, ok := q.s.vendors[v.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, other := range q.s.vendors {
		if id != v.ID && strings.EqualFold(other.Email, v.Email) {
			return store.ErrDuplicate
		}
	}
	next := copyVendor(v)
	next.Categories = existing.Categories
	next.TotalRequests = existing.TotalRequests
	next.TotalResponses = existing.TotalResponses
	next.SuccessfulMatches = existing.SuccessfulMatches
	next.ResponseRate = existing.ResponseRate
	next.CreatedAt = existing.CreatedAt
	q.s.vendors[v.ID] = next
	return nil
}

func (q vendors) AddCategory(_ context.Context, vendorID int64, c models.VendorCategory) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	v, ok := q.s.vendors[vendorID]
	if !ok {
		return store.ErrNotFound
	}
	if store.HasCategory(*v, c.CategorySlug) {
		return store.ErrDuplicate
	}
	c.ID = q.s.nextID("vendor_categories")
	c.VendorID = vendorID
	v.Categories = append(v.Categories, c)
	return nil
}

func (q vendors) FindByCategory(_ context.Context, slug string) ([]models.Vendor, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.sorted(func(v models.Vendor) bool { return store.ReachableFor(v, slug) }), nil
}

func (q vendors) ListReachable(_ context.Context, limit int) ([]models.Vendor, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := q.sorted(models.Vendor.Reachable)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q vendors) RecordNotified(_ context.Context, id int64) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	v, ok := q.s.vendors[id]
	if !ok {
		return store.ErrNotFound
	}
	v.TotalRequests++
	v.ResponseRate = responseRate(v.TotalResponses, v.TotalRequests)
	return nil
}

func (q vendors) RecordResponse(_ context.Context, id int64) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	v, ok := q.s.vendors[id]
	if !ok {
		return store.ErrNotFound
	}
	v.TotalResponses++
	v.SuccessfulMatches++
	v.ResponseRate = responseRate(v.TotalResponses, v.TotalRequests)
	return nil
}

func responseRate(responses, requests int) float64 {
	if requests <= 0 {
		return 0
	}
	return float64(responses) * 100 / float64(requests)
}

// ---- notifications ----

type notifications struct{ s *Store }

// find must be called with s.mu held.
func (q notifications) find(vendorID, requestID int64) *models.VendorNotification {
	for _, n := range q.s.notifications {
		if n.VendorID == vendorID && n.RequestID == requestID {
			return n
		}
	}
	return nil
}

func (q notifications) Claim(_ context.Context, vendorID, requestID int64, tokenID string, now, staleBefore time.Time) (*models.VendorNotification, bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if n := q.find(vendorID, requestID); n != nil {
		stuck := n.Status == models.NotificationStatusQueued && n.UpdatedAt.Before(staleBefore)
		if n.Status != models.NotificationStatusFailed && n.Status != models.NotificationStatusError && !stuck {
			c := *n
			return &c, false, nil
		}
		n.Status = models.NotificationStatusQueued
		n.TokenID = tokenID
		n.ErrorMessage = ""
		n.UpdatedAt = now
		c := *n
		return &c, true, nil
	}
	n := &models.VendorNotification{
		ID:        q.s.nextID("notifications"),
		VendorID:  vendorID,
		RequestID: requestID,
		Status:    models.NotificationStatusQueued,
		TokenID:   tokenID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.s.notifications[n.ID] = n
	c := *n
	return &c, true, nil
}

func (q notifications) SetStatus(_ context.Context, id int64, status models.NotificationStatus, errMsg string, now time.Time) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	n, ok := q.s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	n.Status = status
	n.ErrorMessage = errMsg
	n.UpdatedAt = now
	return nil
}

func (q notifications) MarkOpened(_ context.Context, vendorID, requestID int64, tokenID string, now time.Time) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	n := q.find(vendorID, requestID)
	if n != nil && n.TokenID == tokenID && n.Status == models.NotificationStatusSent {
		n.Status = models.NotificationStatusOpened
		n.UpdatedAt = now
	}
	return nil
}

func (q notifications) MarkResponded(_ context.Context, vendorID, requestID int64, tokenID, message string, now time.Time) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	n := q.find(vendorID, requestID)
	if n == nil || n.TokenID != tokenID || n.Status == models.NotificationStatusResponded {
		return store.ErrConflict
	}
	n.Status = models.NotificationStatusResponded
	n.ResponseMessage = message
	n.RespondedAt = &now
	n.UpdatedAt = now
	return nil
}

func (q notifications) ListByRequest(_ context.Context, requestID int64) ([]models.VendorNotification, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.VendorNotification, 0)
	for _, n := range q.s.notifications {
		if n.RequestID == requestID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q notifications) ListByVendor(_ context.Context, vendorID int64, p store.Page) ([]models.VendorNotification, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.VendorNotification, 0)
	for _, n := range q.s.notifications {
		if n.VendorID == vendorID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, p), int64(len(out)), nil
}

func (q notifications) DeleteByRequest(_ context.Context, requestID int64) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for id, n := range q.s.notifications {
		if n.RequestID == requestID {
			delete(q.s.notifications, id)
		}
	}
	return nil
}

// ---- tickets ----

type tickets struct{ s *Store }

func copyTicket(t *models.SupportTicket) *models.SupportTicket {
	c := *t
	c.ConversationHistory = slices.Clone(t.ConversationHistory)
	return &c
}

func (q tickets) Create(_ context.Context, t *models.SupportTicket) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.tickets {
		if existing.TicketNumber == t.TicketNumber {
			return store.ErrDuplicate
		}
	}
	t.ID = q.s.nextID("tickets")
	q.s.tickets[t.ID] = copyTicket(t)
	return nil
}

func (q tickets) Get(_ context.Context, id int64) (*models.SupportTicket, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	t, ok := q.s.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTicket(t), nil
}

func (q tickets) List(_ context.Context, f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.SupportTicket, 0)
	for _, t := range q.s.tickets {
		if f.Match(*t) {
			out = append(out, *copyTicket(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.OldestFirst {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, p), int64(len(out)), nil
}

func (q tickets) Apply(_ context.Context, id int64, c store.TicketChange) (*models.SupportTicket, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	t, ok := q.s.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := copyTicket(t)
	if err := c.ApplyTo(next, q.s.now()); err != nil {
		return nil, err
	}
	q.s.tickets[id] = next
	return copyTicket(next), nil
}

func (q tickets) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var n int64
	for id, t := range q.s.tickets {
		if t.Status.IsFinal() && t.UpdatedAt.Before(cutoff) {
			delete(q.s.tickets, id)
			n++
		}
	}
	return n, nil
}

// ---- users ----

type users struct{ s *Store }

func (q users) Create(_ context.Context, u *models.User) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	u.ID = q.s.nextID("users")
	c := *u
	q.s.users[u.ID] = &c
	return nil
}

func (q users) Get(_ context.Context, id int64) (*models.User, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	u, ok := q.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (q users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, u := range q.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q users) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range q.s.users {
		if u.Role == role && u.IsActive {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
