package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

type stubOrders struct {
	reply string
	found bool
	err   error
	asked []string
}

func (s *stubOrders) LookupOrder(_ context.Context, number string) (string, bool, error) {
	s.asked = append(s.asked, number)
	return s.reply, s.found, s.err
}

func (f *fixture) tickets(cfg TicketConfig) *TicketService {
	return NewTicketService(f.deps, cfg, nil)
}

func (f *fixture) addTicket(t *testing.T, svc *TicketService, priority models.Priority) *models.SupportTicket {
	t.Helper()
	tk, err := svc.CreateTicket(context.Background(), TicketInput{
		Subject:       "Checkout broken",
		Message:       "The checkout page spins forever",
		Priority:      priority,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
	})
	require.NoError(t, err)
	return tk
}

func (f *fixture) addUser(t *testing.T, email string, role models.Role, available bool) *models.User {
	t.Helper()
	u := &models.User{Email: email, DisplayName: email, Role: role, IsActive: true, AgentAvailable: available}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func TestExtractOrderNumber(t *testing.T) {
	tests := map[string]string{
		"My order 12345 hasn't arrived":   "12345",
		"order #778 is late":              "778",
		"Order number: 9876 please":       "9876",
		"Where is #42?":                   "42",
		"I paid with reference 20241 ago": "20241",
		"I ordered 2 items":               "",
		"hello there":                     "",
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.Equal(t, want, ExtractOrderNumber(msg))
		})
	}
}

func TestCategorizeSiteProblem(t *testing.T) {
	tests := map[string]string{
		"I forgot my password":        models.TicketCategoryLogin,
		"Checkout keeps failing":      models.TicketCategoryPayment,
		"I get a 404 on the shop":     models.TicketCategoryPageError,
		"The site is very slow today": models.TicketCategoryPerformance,
		"Something feels off":         models.TicketCategoryGeneral,
		"Login page shows an error":   models.TicketCategoryLogin,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.Equal(t, want, CategorizeSiteProblem(msg))
		})
	}
}

func TestHandleOrderSupport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	plain := f.tickets(TicketConfig{})
	assert.Equal(t, requestOrderDetailsReply, plain.HandleOrderSupport(ctx, "where is my stuff"))
	assert.Equal(t, orderReferenceReply("12345"), plain.HandleOrderSupport(ctx, "order 12345"))

	orders := &stubOrders{reply: "Order 12345 shipped yesterday.", found: true}
	svc := NewTicketService(f.deps, TicketConfig{}, orders)
	assert.Equal(t, "Order 12345 shipped yesterday.", svc.HandleOrderSupport(ctx, "order 12345"))
	assert.Equal(t, []string{"12345"}, orders.asked)

	orders.found = false
	assert.Equal(t, orderNotFoundReply("555"), svc.HandleOrderSupport(ctx, "#555"))

	orders.err = errors.New("upstream down")
	assert.Equal(t, orderReferenceReply("555"), svc.HandleOrderSupport(ctx, "#555"))
}

func TestHandleSiteProblem(t *testing.T) {
	svc := newFixture(t).tickets(TicketConfig{})
	reply := svc.HandleSiteProblem(context.Background(), "my password is not accepted")
	assert.Contains(t, reply, "trouble logging in")
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{AdminNotifications: true, CustomerConfirmations: true, AdminEmail: "support@example.com"})

	var created []string
	f.deps.Hooks.On(EventTicketCreated, func(_ context.Context, e HookEvent) error {
		created = append(created, e.Ticket.TicketNumber)
		return nil
	})

	tk, err := svc.CreateTicket(ctx, TicketInput{Subject: "Can't sign in", Message: "I forgot my password"})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-20250310-0001", tk.TicketNumber)
	assert.Equal(t, models.TicketCategoryLogin, tk.Category)
	assert.Equal(t, models.PriorityNormal, tk.Priority)
	assert.Equal(t, models.TicketStatusOpen, tk.Status)
	assert.Equal(t, "Guest User", tk.CustomerName)
	require.Len(t, tk.ConversationHistory, 1)
	assert.Equal(t, models.HistoryCustomer, tk.ConversationHistory[0].Type)
	assert.Equal(t, []string{tk.TicketNumber}, created)

	admin := f.mail.to("support@example.com")
	require.Len(t, admin, 1)
	assert.Equal(t, "[Saho] New Support Ticket: TICKET-20250310-0001", admin[0].Subject)

	withEmail := f.addTicket(t, svc, models.PriorityLow)
	assert.Equal(t, "TICKET-20250310-0002", withEmail.TicketNumber)
	customer := f.mail.to("ada@example.com")
	require.Len(t, customer, 1)
	assert.Equal(t, "[Saho] Support Ticket Created: TICKET-20250310-0002", customer[0].Subject)
}

func TestCreateTicketValidation(t *testing.T) {
	svc := newFixture(t).tickets(TicketConfig{})
	tests := []struct {
		name string
		in   TicketInput
	}{
		{"missing subject", TicketInput{Message: "help"}},
		{"missing message", TicketInput{Subject: "help"}},
		{"unknown category", TicketInput{Subject: "help", Message: "help", Category: "shipping"}},
		{"bad priority", TicketInput{Subject: "help", Message: "help", Priority: "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTicket(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAddReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{})
	tk := f.addTicket(t, svc, "")

	got, err := svc.AddReply(ctx, tk.ID, models.HistoryCustomer, "any news?")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, got.Status)

	got, err = svc.AddReply(ctx, tk.ID, models.HistoryAgent, "Looking into it")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, got.Status)
	require.Len(t, got.ConversationHistory, 3)
	assert.Equal(t, "Looking into it", got.ConversationHistory[2].Message)

	_, err = svc.AddReply(ctx, tk.ID, "robot", "beep")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddReply(ctx, tk.ID, models.HistoryAgent, "  ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddReply(ctx, 999, models.HistoryAgent, "hello")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CloseTicket(ctx, tk.ID, "Fixed the checkout", "admin:1")
	require.NoError(t, err)
	_, err = svc.AddReply(ctx, tk.ID, models.HistoryCustomer, "thanks")
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestCloseTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{})
	tk := f.addTicket(t, svc, "")

	got, err := svc.CloseTicket(ctx, tk.ID, "Cleared the cart cache", "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	last := got.ConversationHistory[len(got.ConversationHistory)-1]
	assert.Equal(t, models.HistoryResolution, last.Type)
	assert.Equal(t, "Cleared the cart cache", last.Message)

	_, err = svc.CloseTicket(ctx, tk.ID, "again", "admin:1")
	assert.ErrorIs(t, err, apperr.ErrState)

	mails := f.mail.to("ada@example.com")
	require.Len(t, mails, 1)
	assert.Equal(t, "[Saho] Ticket Resolved: "+tk.TicketNumber, mails[0].Subject)
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{})
	tk := f.addTicket(t, svc, "")
	agent := f.addUser(t, "agent@example.com", models.RoleAgent, true)
	customer := f.addUser(t, "cust@example.com", models.RoleCustomer, false)

	_, err := svc.UpdateTicket(ctx, tk.ID, TicketPatch{}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UpdateTicket(ctx, tk.ID, TicketPatch{AssignedTo: &customer.ID}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UpdateTicket(ctx, tk.ID, TicketPatch{Status: ptr(models.TicketStatus("archived"))}, "admin:1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.UpdateTicket(ctx, tk.ID, TicketPatch{AssignedTo: &agent.ID, Priority: ptr(models.PriorityHigh)}, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.AssignedTo)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	last := got.ConversationHistory[len(got.ConversationHistory)-1]
	assert.Equal(t, models.HistorySystem, last.Type)
	assert.Equal(t, "Priority set to high, assigned to user 1 by admin:1", last.Message)

	got, err = svc.UpdateTicket(ctx, tk.ID, TicketPatch{Status: ptr(models.TicketStatusClosed)}, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusClosed, got.Status)
	assert.NotNil(t, got.ResolvedAt)

	other := f.addTicket(t, svc, "")
	got, err = svc.UpdateTicket(ctx, other.ID, TicketPatch{Status: ptr(models.TicketStatusResolved)}, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusResolved, got.Status)
}

func TestProcessQueueEscalatesOverdueTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{AdminEmail: "support@example.com"})
	normal := f.addTicket(t, svc, models.PriorityNormal)
	low := f.addTicket(t, svc, models.PriorityLow)
	high := f.addTicket(t, svc, models.PriorityHigh)

	var escalated []int64
	f.deps.Hooks.On(EventTicketEscalated, func(_ context.Context, e HookEvent) error {
		escalated = append(escalated, e.Ticket.ID)
		return nil
	})

	f.clock.Advance(25 * time.Hour)
	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
	assert.Equal(t, []int64{normal.ID}, escalated)

	got, err := svc.Get(ctx, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	require.NotNil(t, got.EscalatedAt)

	for _, id := range []int64{low.ID, high.ID} {
		other, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, other.EscalatedAt)
	}

	mails := f.mail.to("support@example.com")
	require.Len(t, mails, 1)
	assert.Equal(t, "[URGENT] Overdue Ticket: "+normal.TicketNumber, mails[0].Subject)

	res, err = svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Escalated)
}

func TestProcessQueueAutoAssignsLeastLoaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{AutoAssign: true})
	busy := f.addUser(t, "busy@example.com", models.RoleAgent, true)
	idle := f.addUser(t, "idle@example.com", models.RoleAgent, true)
	f.addUser(t, "away@example.com", models.RoleAgent, false)

	first := f.addTicket(t, svc, "")
	_, err := svc.UpdateTicket(ctx, first.ID, TicketPatch{AssignedTo: &busy.ID}, "admin:1")
	require.NoError(t, err)
	second := f.addTicket(t, svc, "")
	third := f.addTicket(t, svc, "")

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assigned)

	got, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, idle.ID, got.AssignedTo)
	got, err = svc.Get(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, busy.ID, got.AssignedTo)

	list, total, err := svc.List(ctx, store.TicketFilter{Unassigned: true}, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestCleanupOldTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{RetentionDays: 30})

	old := f.addTicket(t, svc, "")
	_, err := svc.CloseTicket(ctx, old.ID, "", "admin:1")
	require.NoError(t, err)
	stillOpen := f.addTicket(t, svc, "")
	f.clock.Advance(31 * 24 * time.Hour)
	recent := f.addTicket(t, svc, "")
	_, err = svc.CloseTicket(ctx, recent.ID, "", "admin:1")
	require.NoError(t, err)

	n, err := svc.CleanupOldTickets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	for _, id := range []int64{stillOpen.ID, recent.ID} {
		_, err = svc.Get(ctx, id)
		assert.NoError(t, err)
	}

	disabled := f.tickets(TicketConfig{})
	n, err = disabled.CleanupOldTickets(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTicketStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{})
	a := f.addTicket(t, svc, "")
	f.addTicket(t, svc, "")
	_, err := svc.CreateTicket(ctx, TicketInput{Subject: "Login", Message: "password reset never arrives"})
	require.NoError(t, err)
	_, err = svc.CloseTicket(ctx, a.ID, "", "admin:1")
	require.NoError(t, err)

	st, err := svc.Statistics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Days)
	assert.EqualValues(t, 3, st.Total)
	assert.EqualValues(t, 2, st.Open)
	assert.EqualValues(t, 1, st.Resolved)
	assert.Equal(t, map[string]int64{models.TicketCategoryPayment: 2, models.TicketCategoryLogin: 1}, st.ByCategory)
}

func TestTicketSuggestedResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.tickets(TicketConfig{})
	tk, err := svc.CreateTicket(ctx, TicketInput{Subject: "Refund for order 1234", Message: "I want to return it"})
	require.NoError(t, err)

	got, err := svc.SuggestedResponses(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "about your order")
	assert.Contains(t, got[1], "refund")

	assert.Equal(t, []string{generalInquiryResponse}, SuggestedResponses("hello"))
}
