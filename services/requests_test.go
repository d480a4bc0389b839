package services

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRequestNumbersPerDay(t *testing.T) {
	f := newFixture(t)
	reqs := f.requests(RequestConfig{})

	first := f.addRequest(t, reqs)
	second := f.addRequest(t, reqs)
	f.clock.Advance(24 * time.Hour)
	nextDay := f.addRequest(t, reqs)

	assert.Equal(t, "REQ-20250310-0001", first.RequestNumber)
	assert.Equal(t, "REQ-20250310-0002", second.RequestNumber)
	assert.Equal(t, "REQ-20250311-0001", nextDay.RequestNumber)
	assert.Equal(t, models.ProductRequestStatusPending, first.Status)
	assert.Equal(t, models.PriorityNormal, first.Priority)

	activity, err := reqs.Activities(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, models.ActivityCreated, activity[0].Action)
}

func TestCreateRequestValidation(t *testing.T) {
	reqs := newFixture(t).requests(RequestConfig{})
	tests := []struct {
		name string
		in   CreateRequestInput
	}{
		{"missing category", CreateRequestInput{Description: "a lamp"}},
		{"missing description", CreateRequestInput{Category: "home"}},
		{"blank description", CreateRequestInput{Category: "home", Description: "   "}},
		{"bad priority", CreateRequestInput{Category: "home", Description: "a lamp", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reqs.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateRequestFillsCustomerFromProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := &models.User{Email: "Grace@Example.com", DisplayName: "Grace", Phone: "555-0100", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, f.store.Users().Create(ctx, u))

	r, err := f.requests(RequestConfig{}).Create(ctx, CreateRequestInput{UserID: u.ID, Category: "books", Description: "a rare novel", CustomerName: "G. Hopper"})
	require.NoError(t, err)
	assert.Equal(t, "G. Hopper", r.CustomerName)
	assert.Equal(t, "grace@example.com", r.CustomerEmail)
	assert.Equal(t, "555-0100", r.CustomerPhone)
}

func TestCompleteIsNotRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	r := f.addRequest(t, reqs)

	done, err := reqs.Complete(ctx, r.ID, "Vendor found", "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = reqs.Complete(ctx, r.ID, "again", "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)

	after, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Version, after.Version)
	assert.Equal(t, "Vendor found", after.Notes)

	mails := f.mail.to("ada@example.com")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Subject, "Completed")
}

func TestContentionIsTransient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.addRequest(t, f.requests(RequestConfig{}))

	f.contend(1)
	reqs := f.requests(RequestConfig{})
	_, err := reqs.Complete(ctx, r.ID, "Vendor found", "admin:1")
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.NotErrorIs(t, err, apperr.ErrState)
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(err))

	done, err := reqs.Complete(ctx, r.ID, "Vendor found", "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusCompleted, done.Status)
}

func TestCancelAfterCompleteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	r := f.addRequest(t, reqs)

	_, err := reqs.Cancel(ctx, r.ID, "changed my mind", "user:1")
	require.NoError(t, err)
	_, err = reqs.Complete(ctx, r.ID, "", "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)

	got, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.Notes)
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	r := f.addRequest(t, reqs)

	got, err := reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusProcessing)}, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusProcessing, got.Status)

	_, err = reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusProcessing)}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)
	_, err = reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusPending)}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)
	_, err = reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusAutoClosed)}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)
	_, err = reqs.Update(ctx, r.ID, UpdateRequestInput{}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = reqs.Update(ctx, 999, UpdateRequestInput{Priority: ptr(models.PriorityHigh)}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err = reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusCompleted), Priority: ptr(models.PriorityLow)}, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusCompleted, got.Status)
	assert.Equal(t, models.PriorityLow, got.Priority)

	_, err = reqs.Update(ctx, r.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusCancelled)}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestUpdateAppendsNotesAndActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	r := f.addRequest(t, reqs)

	var events []string
	f.deps.Hooks.On(EventRequestUpdated, func(_ context.Context, e HookEvent) error {
		events = append(events, e.Actor)
		return nil
	})

	_, err := reqs.Update(ctx, r.ID, UpdateRequestInput{Notes: "called the customer"}, "admin:1")
	require.NoError(t, err)
	got, err := reqs.Update(ctx, r.ID, UpdateRequestInput{Notes: "sourced two options", VendorsContacted: ptr(3)}, "admin:2")
	require.NoError(t, err)

	assert.Equal(t, "called the customer\n\nsourced two options", got.Notes)
	assert.Equal(t, 3, got.VendorsContacted)
	assert.Equal(t, []string{"admin:1", "admin:2"}, events)

	activity, err := reqs.Activities(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	assert.Equal(t, models.ActivityUpdated, activity[2].Action)
	assert.Equal(t, "admin:2", activity[2].Actor)
}

func TestAutoCloseDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{AutoCloseDays: 0})
	r := f.addRequest(t, reqs)
	f.clock.Advance(30 * 24 * time.Hour)

	n, err := reqs.AutoCloseOldRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusPending, got.Status)
	assert.Equal(t, r.Version, got.Version)
}

func TestAutoCloseOldRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{AutoCloseDays: 7})

	stale := f.addRequest(t, reqs)
	processing := f.addRequest(t, reqs)
	_, err := reqs.Update(ctx, processing.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusProcessing)}, "admin:1")
	require.NoError(t, err)
	f.clock.Advance(8 * 24 * time.Hour)
	fresh := f.addRequest(t, reqs)

	n, err := reqs.AutoCloseOldRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := reqs.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductRequestStatusAutoClosed, got.Status)
	assert.Equal(t, "Automatically closed after 7 days of inactivity.", got.Notes)

	for _, id := range []int64{processing.ID, fresh.ID} {
		other, err := reqs.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, other.Status.IsTerminal())
	}

	n, err = reqs.AutoCloseOldRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOverdueOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{OverdueHours: 48})

	oldest := f.addRequest(t, reqs)
	f.clock.Advance(time.Hour)
	older := f.addRequest(t, reqs)
	f.clock.Advance(72 * time.Hour)
	f.addRequest(t, reqs)

	got, err := reqs.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, oldest.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestRequestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})

	a := f.addRequest(t, reqs)
	b := f.addRequest(t, reqs)
	_, err := reqs.Create(ctx, CreateRequestInput{Category: "books", Description: "a novel"})
	require.NoError(t, err)
	c := f.addRequest(t, reqs)

	_, err = reqs.Update(ctx, a.ID, UpdateRequestInput{VendorsContacted: ptr(4), ResponsesReceived: ptr(2)}, "system")
	require.NoError(t, err)
	_, err = reqs.Complete(ctx, a.ID, "", "admin:1")
	require.NoError(t, err)
	_, err = reqs.Cancel(ctx, b.ID, "", "admin:1")
	require.NoError(t, err)
	_, err = reqs.Update(ctx, c.ID, UpdateRequestInput{Status: ptr(models.ProductRequestStatusProcessing)}, "admin:1")
	require.NoError(t, err)

	st, err := reqs.Statistics(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, st.Days)
	assert.EqualValues(t, 4, st.TotalRequests)
	assert.EqualValues(t, 4, st.TotalVendorsContacted)
	assert.EqualValues(t, 2, st.TotalResponses)
	assert.Equal(t, 1.0, st.AvgVendorsPerRequest)
	assert.Equal(t, 0.5, st.AvgResponsesPerRequest)
	assert.EqualValues(t, 1, st.Completed)
	assert.EqualValues(t, 1, st.Cancelled)
	assert.EqualValues(t, 1, st.Pending)
	assert.EqualValues(t, 1, st.Processing)
	assert.Equal(t, 25.0, st.SuccessRate)
	assert.Equal(t, []models.CategoryCount{{Category: "electronics", Count: 3}, {Category: "books", Count: 1}}, st.Categories)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	dst := utils.NewLocalStore(t.TempDir(), "")

	res, err := reqs.ExportCSV(ctx, store.RequestFilter{}, dst)
	require.NoError(t, err)
	assert.Nil(t, res)

	f.addRequest(t, reqs)
	_, err = reqs.Create(ctx, CreateRequestInput{Category: "home", Description: "lamp, with \"brass\" base"})
	require.NoError(t, err)

	res, err = reqs.ExportCSV(ctx, store.RequestFilter{Category: "home"}, dst)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Rows)

	raw, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Request Number,Customer Name,Customer Email,Category,Description,Status,Priority,Vendors Contacted,Responses Received,Created At,Updated At", lines[0])
	assert.Contains(t, lines[1], `"lamp, with ""brass"" base"`)
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.requests(RequestConfig{})
	r := f.addRequest(t, reqs)

	require.NoError(t, reqs.Delete(ctx, r.ID, "admin:1"))
	_, err := reqs.Get(ctx, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, reqs.Delete(ctx, r.ID, "admin:1"), apperr.ErrNotFound)
}
