package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/models"
)

func notificationStatuses(t *testing.T, f *fixture, requestID int64) map[int64]models.NotificationStatus {
	t.Helper()
	rows, err := f.store.Notifications().ListByRequest(context.Background(), requestID)
	require.NoError(t, err)
	out := map[int64]models.NotificationStatus{}
	for _, n := range rows {
		out[n.VendorID] = n.Status
	}
	return out
}

func TestNotifyVendorsIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{CustomerConfirmations: true})
	v1 := f.addVendor(t, "Volt", "volt@example.com", "Electronics")
	v2 := f.addVendor(t, "Amp", "amp@example.com", "Electronics")
	v3 := f.addVendor(t, "Ohm", "ohm@example.com", "Electronics")
	f.addVendor(t, "Pages", "pages@example.com", "Books")
	r := f.addRequest(t, reqs)
	f.mail.panics["amp@example.com"] = true

	ids, err := n.NotifyVendors(ctx, "Electronics", r.Description, r.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{v1.ID, v3.ID}, ids)

	statuses := notificationStatuses(t, f, r.ID)
	assert.Equal(t, map[int64]models.NotificationStatus{
		v1.ID: models.NotificationStatusSent,
		v2.ID: models.NotificationStatusError,
		v3.ID: models.NotificationStatusSent,
	}, statuses)
	assert.Empty(t, f.mail.to("pages@example.com"))

	confirmations := f.mail.to("ada@example.com")
	require.Len(t, confirmations, 1)
	assert.Contains(t, confirmations[0].Subject, "Has Been Sent")

	stored, err := f.store.Vendors().Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalRequests)
}

func TestNotifyVendorsRejectedMailIsFailed(t *testing.T) {
	f := newFixture(t)
	n, reqs := f.notifier(NotifierConfig{})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	f.mail.fail["volt@example.com"] = fmt.Errorf("%w: mailbox unavailable", mailer.ErrRejected)

	ids, err := n.NotifyVendors(context.Background(), "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, models.NotificationStatusFailed, notificationStatuses(t, f, r.ID)[v.ID])
}

func TestNotifyVendorsRetrySkipsDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{CustomerConfirmations: true})
	v1 := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	v2 := f.addVendor(t, "Amp", "amp@example.com", "electronics")
	r := f.addRequest(t, reqs)
	f.mail.fail["amp@example.com"] = fmt.Errorf("connection refused")

	ids, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{v1.ID}, ids)

	delete(f.mail.fail, "amp@example.com")
	ids, err = n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{v1.ID, v2.ID}, ids)

	assert.Len(t, f.mail.to("volt@example.com"), 1)
	assert.Len(t, f.mail.to("amp@example.com"), 1)
	assert.Len(t, f.mail.to("ada@example.com"), 2)

	ids, err = n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Len(t, f.mail.to("ada@example.com"), 2, "no new vendors, no new confirmation")
}

func TestNotifyVendorsReclaimsAbandonedSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{SendTimeout: time.Minute})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)

	// a sender that claimed the row and never reported back
	_, claimed, err := f.store.Notifications().Claim(ctx, v.ID, r.ID, "lost", f.clock.Now(), time.Time{})
	require.NoError(t, err)
	require.True(t, claimed)

	ids, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.mail.to("volt@example.com"))

	f.clock.Advance(2 * time.Minute)
	ids, err = n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{v.ID}, ids)
	assert.Len(t, f.mail.to("volt@example.com"), 1)
	assert.Equal(t, models.NotificationStatusSent, notificationStatuses(t, f, r.ID)[v.ID])
}

func TestNotifyVendorsMaterialisesVendorUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	u := &models.User{Email: "shop@example.com", DisplayName: "Corner Shop", Role: models.RoleVendor, IsActive: true, VendorCategories: []string{"Electronics"}}
	require.NoError(t, f.store.Users().Create(ctx, u))
	other := &models.User{Email: "books@example.com", DisplayName: "Bookworm", Role: models.RoleVendor, IsActive: true, VendorCategories: []string{"Books"}}
	require.NoError(t, f.store.Users().Create(ctx, other))
	r := f.addRequest(t, reqs)

	ids, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	v, err := f.store.Vendors().GetByEmail(ctx, "shop@example.com")
	require.NoError(t, err)
	assert.Equal(t, ids[0], v.ID)
	assert.Equal(t, u.ID, v.UserID)
	assert.Len(t, f.mail.to("shop@example.com"), 1)
	assert.Empty(t, f.mail.to("books@example.com"))
}

func TestNotifyVendorsRejectsClosedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	_, err := reqs.Cancel(ctx, r.ID, "", "admin:1")
	require.NoError(t, err)

	_, err = n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrState)
	assert.Empty(t, f.mail.to("volt@example.com"))

	_, err = n.NotifyVendors(ctx, "electronics", "", 999, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVendorFilterHook(t *testing.T) {
	f := newFixture(t)
	n, reqs := f.notifier(NotifierConfig{})
	f.addVendor(t, "Volt", "volt@example.com", "electronics")
	keep := f.addVendor(t, "Amp", "amp@example.com", "electronics")
	r := f.addRequest(t, reqs)

	f.deps.Hooks.OnResolveVendors(func(_ context.Context, _ string, vs []models.Vendor) []models.Vendor {
		return vs[1:]
	})
	f.deps.Hooks.OnResolveVendors(func(context.Context, string, []models.Vendor) []models.Vendor {
		panic("broken filter")
	})

	ids, err := n.NotifyVendors(context.Background(), "electronics", "", r.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, ids)
}

func TestBroadcastNotifyAllIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{NotifyAll: true})
	for i := range 12 {
		f.addVendor(t, fmt.Sprintf("Toy %d", i), fmt.Sprintf("toy%d@example.com", i), "toys")
	}
	b := NewBroadcaster(f.deps, reqs, n)

	res, err := b.CreateAndNotify(ctx, CreateRequestInput{Category: "Garden", Description: "a hammock", CustomerEmail: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 10, res.VendorsContacted)
	assert.Equal(t, 10, res.Request.VendorsContacted)
	assert.Equal(t, "Your request has been sent to 10 vendors in the Garden category.", res.Message)
	assert.Empty(t, f.mail.to("toy10@example.com"))
	assert.Empty(t, f.mail.to("toy11@example.com"))

	stored, err := reqs.Get(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.VendorsContacted)
}

func TestBroadcastWithoutVendors(t *testing.T) {
	f := newFixture(t)
	n, reqs := f.notifier(NotifierConfig{})
	f.addVendor(t, "Toy", "toy@example.com", "toys")
	b := NewBroadcaster(f.deps, reqs, n)

	res, err := b.CreateAndNotify(context.Background(), CreateRequestInput{Category: "Garden", Description: "a hammock"})
	require.NoError(t, err)
	assert.Zero(t, res.VendorsContacted)
	assert.Equal(t, "We couldn't find vendors for the Garden category right now. Your request has been saved and our team will follow up.", res.Message)
	assert.Equal(t, models.ProductRequestStatusPending, res.Request.Status)
}

func TestBroadcastSingleVendorMessage(t *testing.T) {
	assert.Equal(t, "Your request has been sent to 1 vendor in the books category.", broadcastMessage(1, "books"))
}

func TestIngestResponseConsumesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	_, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	token := f.responseToken(t, "volt@example.com")

	got, err := n.IngestResponse(ctx, token, 0, 0, "  In stock, 89 EUR  ")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ResponsesReceived)
	assert.Equal(t, models.NotificationStatusResponded, notificationStatuses(t, f, r.ID)[v.ID])

	_, err = n.IngestResponse(ctx, token, v.ID, r.ID, "second answer")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	after, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ResponsesReceived)

	stored, err := f.store.Vendors().Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalResponses)

	activity, err := reqs.Activities(ctx, r.ID)
	require.NoError(t, err)
	last := activity[len(activity)-1]
	assert.Equal(t, models.ActivityVendorResponse, last.Action)
	assert.Contains(t, last.Description, "In stock, 89 EUR")
}

func TestIngestResponseKeepsTokenWhenCountFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	_, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	token := f.responseToken(t, "volt@example.com")

	f.contend(1)
	n, reqs = f.notifier(NotifierConfig{})
	_, err = n.IngestResponse(ctx, token, 0, 0, "In stock")
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.NotErrorIs(t, err, apperr.ErrState)
	assert.Equal(t, models.NotificationStatusSent, notificationStatuses(t, f, r.ID)[v.ID])

	got, err := n.IngestResponse(ctx, token, 0, 0, "In stock")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ResponsesReceived)
	assert.Equal(t, models.NotificationStatusResponded, notificationStatuses(t, f, r.ID)[v.ID])

	after, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ResponsesReceived)
}

func TestIngestResponseRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	_, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	token := f.responseToken(t, "volt@example.com")

	_, err = n.IngestResponse(ctx, "not-a-token", 0, 0, "hi")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = n.IngestResponse(ctx, token, v.ID+1, r.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = n.IngestResponse(ctx, token, v.ID, r.ID+1, "hi")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = n.IngestResponse(ctx, token, v.ID, r.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.clock.Advance(25 * time.Hour)
	_, err = n.IngestResponse(ctx, token, v.ID, r.ID, "late answer")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	after, err := reqs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, after.ResponsesReceived)
}

func TestIngestResponseRequiresNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)

	token, _, err := f.tokens.Sign(1, r.ID)
	require.NoError(t, err)
	_, err = n.IngestResponse(ctx, token, 0, 0, "never notified")
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestOpenResponseLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, reqs := f.notifier(NotifierConfig{})
	v := f.addVendor(t, "Volt", "volt@example.com", "electronics")
	r := f.addRequest(t, reqs)
	_, err := n.NotifyVendors(ctx, "electronics", "", r.ID, 0)
	require.NoError(t, err)
	token := f.responseToken(t, "volt@example.com")

	link, err := n.OpenResponseLink(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, v.ID, link.VendorID)
	assert.Equal(t, "Volt", link.VendorName)
	assert.Equal(t, r.RequestNumber, link.RequestNumber)
	assert.False(t, link.Closed)
	assert.NotEmpty(t, link.ExpiresAt)
	assert.Equal(t, models.NotificationStatusOpened, notificationStatuses(t, f, r.ID)[v.ID])

	_, err = n.IngestResponse(ctx, token, 0, 0, "we have it")
	require.NoError(t, err)

	_, err = n.OpenResponseLink(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestResponseURL(t *testing.T) {
	f := newFixture(t)
	n, _ := f.notifier(NotifierConfig{PublicAPIURL: "https://api.example.com/"})
	assert.Equal(t, "https://api.example.com/vendor-response?token=a%2Bb", n.ResponseURL("a+b"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"token":"x","message":"hi"}`)

	open, _ := f.notifier(NotifierConfig{})
	assert.NoError(t, open.VerifyWebhookSignature(body, ""))

	n, _ := f.notifier(NotifierConfig{WebhookSecret: "hook-secret"})
	good := "sha256=" + hex.EncodeToString(SignWebhook("hook-secret", body))
	assert.NoError(t, n.VerifyWebhookSignature(body, good))

	tests := map[string]string{
		"missing":   "",
		"no prefix": hex.EncodeToString(SignWebhook("hook-secret", body)),
		"not hex":   "sha256=zz",
		"wrong key": "sha256=" + hex.EncodeToString(SignWebhook("other", body)),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, n.VerifyWebhookSignature(body, header), apperr.ErrAuth)
		})
	}
}
