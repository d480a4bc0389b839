// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

// Opener returns an empty store. It is called once per subtest.
type Opener func(t *testing.T) store.Store

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// Run exercises every repository of the store returned by open.
func Run(t *testing.T, open Opener) {
	t.Run("Sequences", func(t *testing.T) { testSequences(t, open(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, open(t)) })
	t.Run("RequestListing", func(t *testing.T) { testRequestListing(t, open(t)) })
	t.Run("RequestRetention", func(t *testing.T) { testRequestRetention(t, open(t)) })
	t.Run("ConcurrentApply", func(t *testing.T) { testConcurrentApply(t, open(t)) })
	t.Run("Vendors", func(t *testing.T) { testVendors(t, open(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, open(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, open(t)) })
	t.Run("Tickets", func(t *testing.T) { testTickets(t, open(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, open(t)) })
}

func newRequest(number, category string, created time.Time) *models.ProductRequest {
	return &models.ProductRequest{
		RequestNumber: number,
		Category:      category,
		Description:   "wireless headphones",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Status:        models.ProductRequestStatusPending,
		Priority:      models.PriorityNormal,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func createRequest(t *testing.T, s store.Store, r *models.ProductRequest) {
	t.Helper()
	err := s.Requests().Create(context.Background(), r, models.RequestActivity{
		Action:      models.ActivityCreated,
		Description: "Request created",
		Actor:       "guest",
		CreatedAt:   r.CreatedAt,
	})
	require.NoError(t, err)
	require.NotZero(t, r.ID)
}

func newVendor(email string, slugs ...string) *models.Vendor {
	v := &models.Vendor{
		Name:                 email,
		Email:                email,
		Status:               models.VendorStatusActive,
		NotificationsEnabled: true,
		CreatedAt:            base,
		UpdatedAt:            base,
	}
	for i, s := range slugs {
		v.Categories = append(v.Categories, models.VendorCategory{CategoryName: s, CategorySlug: s, IsPrimary: i == 0, CreatedAt: base})
	}
	return v
}

func ids[T any](items []T, id func(T) int64) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

func requestID(r models.ProductRequest) int64 { return r.ID }
func vendorID(v models.Vendor) int64          { return v.ID }
func ticketID(t models.SupportTicket) int64   { return t.ID }

func testSequences(t *testing.T, s store.Store) {
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := s.Sequences().Next(ctx, "request:20250310")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := s.Sequences().Next(ctx, "request:20250311")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Sequences().Next(ctx, "ticket:20250310")
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 20)
}

func testRequests(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := newRequest("REQ-20250310-0001", "electronics", base)
	createRequest(t, s, r)

	err := s.Requests().Create(ctx, newRequest("REQ-20250310-0001", "books", base), models.RequestActivity{Action: models.ActivityCreated})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.Requests().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "REQ-20250310-0001", got.RequestNumber)
	assert.Equal(t, models.ProductRequestStatusPending, got.Status)
	assert.WithinDuration(t, base, got.CreatedAt, time.Second)

	_, err = s.Requests().Get(ctx, r.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)

	processing := models.ProductRequestStatusProcessing
	updated, err := s.Requests().Apply(ctx, r.ID, store.RequestChange{
		Status:        &processing,
		AppendNote:    "called",
		RequireStatus: []models.ProductRequestStatus{models.ProductRequestStatusPending},
		Activities:    []models.RequestActivity{{Action: models.ActivityUpdated, Description: "Status changed to processing", Actor: "admin:1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, processing, updated.Status)
	assert.Equal(t, "called", updated.Notes)

	_, err = s.Requests().Apply(ctx, r.ID, store.RequestChange{
		Status:        &processing,
		AppendNote:    "ignored",
		RequireStatus: []models.ProductRequestStatus{models.ProductRequestStatusPending},
		Activities:    []models.RequestActivity{{Action: models.ActivityUpdated, Actor: "admin:2"}},
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	updated, err = s.Requests().Apply(ctx, r.ID, store.RequestChange{AppendNote: "second", IncResponses: 2})
	require.NoError(t, err)
	assert.Equal(t, "called\n\nsecond", updated.Notes)
	assert.Equal(t, 2, updated.ResponsesReceived)

	_, err = s.Requests().Apply(ctx, r.ID+100, store.RequestChange{AppendNote: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	activity, err := s.Requests().Activities(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, models.ActivityCreated, activity[0].Action)
	assert.Equal(t, "admin:1", activity[1].Actor)
	assert.Equal(t, r.ID, activity[1].RequestID)

	require.NoError(t, s.Requests().Delete(ctx, r.ID))
	_, err = s.Requests().Get(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Requests().Delete(ctx, r.ID), store.ErrNotFound)
	_, err = s.Requests().Activities(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRequestListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	var created []*models.ProductRequest
	for i := range 5 {
		category := "electronics"
		if i%2 == 1 {
			category = "books"
		}
		r := newRequest(fmt.Sprintf("REQ-20250310-%04d", i+1), category, base.Add(time.Duration(i)*time.Hour))
		createRequest(t, s, r)
		created = append(created, r)
	}

	all, total, err := s.Requests().List(ctx, store.RequestFilter{}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, []int64{created[4].ID, created[3].ID, created[2].ID, created[1].ID, created[0].ID}, ids(all, requestID))

	page, total, err := s.Requests().List(ctx, store.RequestFilter{OldestFirst: true}, store.Page{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, []int64{created[2].ID, created[3].ID}, ids(page, requestID))

	books, total, err := s.Requests().List(ctx, store.RequestFilter{Category: "books"}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []int64{created[3].ID, created[1].ID}, ids(books, requestID))

	window, _, err := s.Requests().List(ctx, store.RequestFilter{
		CreatedAfter:  base.Add(time.Hour),
		CreatedBefore: base.Add(3 * time.Hour),
		OldestFirst:   true,
	}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{created[1].ID, created[2].ID}, ids(window, requestID))

	found, _, err := s.Requests().List(ctx, store.RequestFilter{Search: "0003"}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{created[2].ID}, ids(found, requestID))

	cancelled := models.ProductRequestStatusCancelled
	_, err = s.Requests().Apply(ctx, created[0].ID, store.RequestChange{Status: &cancelled})
	require.NoError(t, err)
	pending, total, err := s.Requests().List(ctx, store.RequestFilter{Statuses: []models.ProductRequestStatus{models.ProductRequestStatusPending}}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.NotContains(t, ids(pending, requestID), created[0].ID)
}

func testRequestRetention(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := newRequest("REQ-1", "books", base.AddDate(0, 0, -100))
	oldOpen := newRequest("REQ-2", "books", base.AddDate(0, 0, -100))
	recent := newRequest("REQ-3", "books", base)
	for _, r := range []*models.ProductRequest{old, oldOpen, recent} {
		createRequest(t, s, r)
	}
	completed := models.ProductRequestStatusCompleted
	for _, id := range []int64{old.ID, recent.ID} {
		_, err := s.Requests().Apply(ctx, id, store.RequestChange{Status: &completed})
		require.NoError(t, err)
	}

	n, err := s.Requests().DeleteFinishedBefore(ctx, base.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Requests().Get(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, id := range []int64{oldOpen.ID, recent.ID} {
		_, err = s.Requests().Get(ctx, id)
		assert.NoError(t, err)
	}
}

func testConcurrentApply(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := newRequest("REQ-RACE", "books", base)
	createRequest(t, s, r)

	completed := models.ProductRequestStatusCompleted
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Requests().Apply(ctx, r.ID, store.RequestChange{
				Status:        &completed,
				AppendNote:    fmt.Sprintf("closer %d", i),
				RequireStatus: []models.ProductRequestStatus{models.ProductRequestStatusPending},
				Activities:    []models.RequestActivity{{Action: models.ActivityCompleted, Actor: fmt.Sprintf("admin:%d", i)}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)

	activity, err := s.Requests().Activities(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, activity, 2)
}

func testVendors(t *testing.T, s store.Store) {
	ctx := context.Background()
	books := newVendor("books@example.com", "books")
	toys := newVendor("toys@example.com", "toys")
	everything := newVendor("all@example.com", models.CategoryAll)
	muted := newVendor("muted@example.com", "books")
	muted.NotificationsEnabled = false
	for _, v := range []*models.Vendor{books, toys, everything, muted} {
		require.NoError(t, s.Vendors().Create(ctx, v))
		require.NotZero(t, v.ID)
	}
	assert.ErrorIs(t, s.Vendors().Create(ctx, newVendor("books@example.com")), store.ErrDuplicate)

	got, err := s.Vendors().GetByEmail(ctx, "BOOKS@example.com")
	require.NoError(t, err)
	assert.Equal(t, books.ID, got.ID)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, "books", got.Categories[0].CategorySlug)
	assert.True(t, got.Categories[0].IsPrimary)

	_, err = s.Vendors().Get(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	found, err := s.Vendors().FindByCategory(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, []int64{books.ID, everything.ID}, ids(found, vendorID))

	found, err = s.Vendors().FindByCategory(ctx, "garden")
	require.NoError(t, err)
	assert.Equal(t, []int64{everything.ID}, ids(found, vendorID))

	reachable, err := s.Vendors().ListReachable(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{books.ID, toys.ID}, ids(reachable, vendorID))

	listed, total, err := s.Vendors().List(ctx, store.VendorFilter{Category: "books"}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []int64{books.ID, muted.ID}, ids(listed, vendorID))

	require.NoError(t, s.Vendors().AddCategory(ctx, toys.ID, models.VendorCategory{CategoryName: "Garden", CategorySlug: "garden", CreatedAt: base}))
	assert.ErrorIs(t, s.Vendors().AddCategory(ctx, toys.ID, models.VendorCategory{CategoryName: "Garden", CategorySlug: "garden"}), store.ErrDuplicate)
	assert.ErrorIs(t, s.Vendors().AddCategory(ctx, 999, models.VendorCategory{CategorySlug: "garden"}), store.ErrNotFound)
	found, err = s.Vendors().FindByCategory(ctx, "garden")
	require.NoError(t, err)
	assert.Equal(t, []int64{toys.ID, everything.ID}, ids(found, vendorID))

	toys.Name = "Toy Box"
	toys.Status = models.VendorStatusInactive
	toys.Categories = nil
	require.NoError(t, s.Vendors().Update(ctx, toys))
	got, err = s.Vendors().Get(ctx, toys.ID)
	require.NoError(t, err)
	assert.Equal(t, "Toy Box", got.Name)
	assert.Len(t, got.Categories, 2)
	found, err = s.Vendors().FindByCategory(ctx, "toys")
	require.NoError(t, err)
	assert.Equal(t, []int64{everything.ID}, ids(found, vendorID))

	require.NoError(t, s.Vendors().RecordNotified(ctx, books.ID))
	require.NoError(t, s.Vendors().RecordNotified(ctx, books.ID))
	require.NoError(t, s.Vendors().RecordResponse(ctx, books.ID))
	got, err = s.Vendors().Get(ctx, books.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalRequests)
	assert.Equal(t, 1, got.TotalResponses)
	assert.InDelta(t, 50.0, got.ResponseRate, 0.001)
	assert.ErrorIs(t, s.Vendors().RecordNotified(ctx, 999), store.ErrNotFound)
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()
	n := s.Notifications()

	row, claimed, err := n.Claim(ctx, 1, 10, "tok-1", base, time.Time{})
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, models.NotificationStatusQueued, row.Status)

	again, claimed, err := n.Claim(ctx, 1, 10, "tok-2", base, time.Time{})
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, row.ID, again.ID)

	// a queued row outlives its sender only past the stale cutoff
	later := base.Add(10 * time.Minute)
	_, claimed, err = n.Claim(ctx, 1, 10, "tok-2", later, base)
	require.NoError(t, err)
	assert.False(t, claimed)
	stuck, claimed, err := n.Claim(ctx, 1, 10, "tok-2", later, later.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, row.ID, stuck.ID)
	assert.Equal(t, "tok-2", stuck.TokenID)
	_, claimed, err = n.Claim(ctx, 1, 10, "tok-2b", later, later.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, n.SetStatus(ctx, row.ID, models.NotificationStatusFailed, "mailbox full", base))
	retry, claimed, err := n.Claim(ctx, 1, 10, "tok-3", base, time.Time{})
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, row.ID, retry.ID)
	assert.Empty(t, retry.ErrorMessage)

	require.NoError(t, n.SetStatus(ctx, row.ID, models.NotificationStatusSent, "", base))
	sent, claimed, err := n.Claim(ctx, 1, 10, "tok-4", base, time.Time{})
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, models.NotificationStatusSent, sent.Status)

	require.NoError(t, n.MarkOpened(ctx, 1, 10, "tok-3", base))
	assert.ErrorIs(t, n.MarkResponded(ctx, 1, 10, "tok-1", "stale token", base), store.ErrConflict)
	require.NoError(t, n.MarkResponded(ctx, 1, 10, "tok-3", "in stock", base))
	assert.ErrorIs(t, n.MarkResponded(ctx, 1, 10, "tok-3", "again", base), store.ErrConflict)
	assert.ErrorIs(t, n.MarkResponded(ctx, 2, 10, "tok-3", "unknown pair", base), store.ErrConflict)

	_, _, err = n.Claim(ctx, 2, 10, "tok-5", base, time.Time{})
	require.NoError(t, err)
	_, _, err = n.Claim(ctx, 1, 11, "tok-6", base, time.Time{})
	require.NoError(t, err)

	rows, err := n.ListByRequest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0].VendorID)
	assert.Equal(t, models.NotificationStatusResponded, rows[0].Status)
	assert.Equal(t, "in stock", rows[0].ResponseMessage)
	assert.NotNil(t, rows[0].RespondedAt)

	byVendor, total, err := n.ListByVendor(ctx, 1, store.Page{Page: 1, PerPage: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, byVendor, 1)
	assert.EqualValues(t, 11, byVendor[0].RequestID)

	require.NoError(t, n.DeleteByRequest(ctx, 10))
	rows, err = n.ListByRequest(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testConcurrentClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := s.Notifications().Claim(ctx, 7, 70, fmt.Sprintf("tok-%d", i), base, time.Time{})
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claims)

	rows, err := s.Notifications().ListByRequest(ctx, 70)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func newTicket(number string, status models.TicketStatus, updated time.Time) *models.SupportTicket {
	return &models.SupportTicket{
		TicketNumber:  number,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Subject:       "Checkout broken",
		Message:       "The checkout page spins",
		Category:      models.TicketCategoryPayment,
		Priority:      models.PriorityNormal,
		Status:        status,
		ConversationHistory: []models.TicketHistoryEntry{
			{Type: models.HistoryCustomer, Message: "The checkout page spins", Timestamp: updated},
		},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func testTickets(t *testing.T, s store.Store) {
	ctx := context.Background()
	open := newTicket("TICKET-1", models.TicketStatusOpen, base)
	oldResolved := newTicket("TICKET-2", models.TicketStatusResolved, base.AddDate(0, 0, -60))
	oldOpen := newTicket("TICKET-3", models.TicketStatusOpen, base.AddDate(0, 0, -60))
	for _, tk := range []*models.SupportTicket{open, oldResolved, oldOpen} {
		require.NoError(t, s.Tickets().Create(ctx, tk))
		require.NotZero(t, tk.ID)
	}
	assert.ErrorIs(t, s.Tickets().Create(ctx, newTicket("TICKET-1", models.TicketStatusOpen, base)), store.ErrDuplicate)

	got, err := s.Tickets().Get(ctx, open.ID)
	require.NoError(t, err)
	require.Len(t, got.ConversationHistory, 1)
	assert.Equal(t, models.HistoryCustomer, got.ConversationHistory[0].Type)

	inProgress := models.TicketStatusInProgress
	agent := int64(5)
	updated, err := s.Tickets().Apply(ctx, open.ID, store.TicketChange{
		Status:        &inProgress,
		AssignedTo:    &agent,
		RequireStatus: []models.TicketStatus{models.TicketStatusOpen},
		AppendHistory: []models.TicketHistoryEntry{{Type: models.HistoryAgent, Message: "on it"}},
	})
	require.NoError(t, err)
	assert.Equal(t, inProgress, updated.Status)
	assert.EqualValues(t, 5, updated.AssignedTo)
	require.Len(t, updated.ConversationHistory, 2)
	assert.Equal(t, "on it", updated.ConversationHistory[1].Message)

	_, err = s.Tickets().Apply(ctx, open.ID, store.TicketChange{
		Status:        &inProgress,
		RequireStatus: []models.TicketStatus{models.TicketStatusOpen},
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.Tickets().Apply(ctx, 999, store.TicketChange{Status: &inProgress})
	assert.ErrorIs(t, err, store.ErrNotFound)

	unassigned, total, err := s.Tickets().List(ctx, store.TicketFilter{
		Statuses:   []models.TicketStatus{models.TicketStatusOpen, models.TicketStatusInProgress},
		Unassigned: true,
	}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []int64{oldOpen.ID}, ids(unassigned, ticketID))

	mine, _, err := s.Tickets().List(ctx, store.TicketFilter{AssignedTo: 5}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{open.ID}, ids(mine, ticketID))

	oldest, _, err := s.Tickets().List(ctx, store.TicketFilter{OldestFirst: true}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{open.ID, oldResolved.ID, oldOpen.ID}, ids(oldest, ticketID))

	n, err := s.Tickets().DeleteFinishedBefore(ctx, base.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = s.Tickets().Get(ctx, oldResolved.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Tickets().Get(ctx, oldOpen.ID)
	assert.NoError(t, err)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	agent := &models.User{Email: "agent@example.com", DisplayName: "Agent", Role: models.RoleAgent, IsActive: true, AgentAvailable: true}
	retired := &models.User{Email: "retired@example.com", Role: models.RoleAgent}
	vendor := &models.User{Email: "vendor@example.com", Role: models.RoleVendor, IsActive: true, VendorCategories: []string{"Books", "Toys"}}
	for _, u := range []*models.User{agent, retired, vendor} {
		require.NoError(t, s.Users().Create(ctx, u))
		require.NotZero(t, u.ID)
	}
	assert.ErrorIs(t, s.Users().Create(ctx, &models.User{Email: "Agent@example.com"}), store.ErrDuplicate)

	got, err := s.Users().GetByEmail(ctx, "AGENT@example.com")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.True(t, got.AgentAvailable)

	got, err = s.Users().Get(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Toys"}, got.VendorCategories)

	_, err = s.Users().Get(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	agents, err := s.Users().ListByRole(ctx, models.RoleAgent)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, agent.ID, agents[0].ID)
}

func testConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	logs := []models.Conversation{
		{SessionID: "s-1", UserMessage: "old", AIResponse: "a", Context: models.ContextGeneral, CreatedAt: base.AddDate(0, 0, -40)},
		{SessionID: "s-1", UserID: 3, UserMessage: "lamp?", AIResponse: "b", Context: models.ContextProductSearch, CreatedAt: base},
		{SessionID: "s-2", UserMessage: "order?", AIResponse: "c", Context: models.ContextOrderSupport, CreatedAt: base.Add(time.Minute)},
	}
	for i := range logs {
		require.NoError(t, s.Conversations().Log(ctx, &logs[i]))
		require.NotZero(t, logs[i].ID)
	}

	all, total, err := s.Conversations().List(ctx, store.ConversationFilter{}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "order?", all[0].UserMessage)

	session, _, err := s.Conversations().List(ctx, store.ConversationFilter{SessionID: "s-1", CreatedAfter: base.AddDate(0, 0, -1)}, store.Page{})
	require.NoError(t, err)
	require.Len(t, session, 1)
	assert.Equal(t, "lamp?", session[0].UserMessage)

	early, _, err := s.Conversations().List(ctx, store.ConversationFilter{CreatedBefore: base.Add(time.Minute)}, store.Page{})
	require.NoError(t, err)
	assert.Len(t, early, 2)

	n, err := s.Conversations().DeleteOlderThan(ctx, base.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, total, err = s.Conversations().List(ctx, store.ConversationFilter{}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
