package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

// OrderLookup answers order status questions from an external order system.
type OrderLookup interface {
	// LookupOrder returns a customer-facing summary, or found=false when the number is unknown.
	LookupOrder(ctx context.Context, number string) (reply string, found bool, err error)
}

type TicketConfig struct {
	Prefix                string
	RetentionDays         int
	AutoAssign            bool
	AdminNotifications    bool
	CustomerConfirmations bool
	AdminEmail            string
}

type TicketService struct {
	deps   Deps
	cfg    TicketConfig
	orders OrderLookup
}

func NewTicketService(deps Deps, cfg TicketConfig, orders OrderLookup) *TicketService {
	if cfg.Prefix == "" {
		cfg.Prefix = "TICKET"
	}
	return &TicketService{deps: deps.withDefaults(), cfg: cfg, orders: orders}
}

var ticketCategories = []string{
	models.TicketCategoryLogin,
	models.TicketCategoryPayment,
	models.TicketCategoryPageError,
	models.TicketCategoryPerformance,
	models.TicketCategoryGeneral,
	models.TicketCategoryOrder,
}

var activeTicketStatuses = []models.TicketStatus{models.TicketStatusOpen, models.TicketStatusInProgress}

// HandleOrderSupport answers an order-support chat message without the AI model.
func (s *TicketService) HandleOrderSupport(ctx context.Context, message string) string {
	number := ExtractOrderNumber(message)
	if number == "" {
		return requestOrderDetailsReply
	}
	if s.orders == nil {
		return orderReferenceReply(number)
	}
	reply, found, err := s.orders.LookupOrder(ctx, number)
	switch {
	case err != nil:
		s.deps.Logger.WarnContext(ctx, "order lookup failed", "order", number, "error", err)
		return orderReferenceReply(number)
	case !found:
		return orderNotFoundReply(number)
	default:
		return reply
	}
}

// HandleSiteProblem answers a site-problem chat message with a troubleshooting template.
func (s *TicketService) HandleSiteProblem(_ context.Context, message string) string {
	return siteProblemReplies[CategorizeSiteProblem(message)]
}

type TicketInput struct {
	Subject       string
	Message       string
	Category      string
	Priority      models.Priority
	UserID        int64
	CustomerName  string
	CustomerEmail string
}

type TicketPatch struct {
	Status     *models.TicketStatus
	Priority   *models.Priority
	AssignedTo *int64
}

func (s *TicketService) CreateTicket(ctx context.Context, in TicketInput) (*models.SupportTicket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Subject == "" || in.Message == "" {
		return nil, apperr.Validation("subject and message are required")
	}
	if in.Category == "" {
		in.Category = CategorizeSiteProblem(in.Message)
	}
	if !slices.Contains(ticketCategories, in.Category) {
		return nil, apperr.Validation("invalid ticket category %q", in.Category)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", in.Priority)
	}

	if in.UserID > 0 && (in.CustomerName == "" || in.CustomerEmail == "") {
		if u, err := s.deps.Store.Users().Get(ctx, in.UserID); err == nil {
			if in.CustomerName == "" {
				in.CustomerName = u.DisplayName
			}
			if in.CustomerEmail == "" {
				in.CustomerEmail = u.Email
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load customer profile: %w", err)
		}
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		in.CustomerName = "Guest User"
	}

	now := s.deps.Now()
	seq, err := s.deps.Store.Sequences().Next(ctx, sequenceKey("ticket", now))
	if err != nil {
		return nil, fmt.Errorf("next ticket number: %w", err)
	}
	t := &models.SupportTicket{
		TicketNumber:  sequenceNumber(s.cfg.Prefix, now, seq),
		UserID:        in.UserID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		Subject:       in.Subject,
		Message:       in.Message,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        models.TicketStatusOpen,
		ConversationHistory: []models.TicketHistoryEntry{
			{Type: models.HistoryCustomer, Message: in.Message, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Store.Tickets().Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	if s.cfg.AdminNotifications {
		s.mailAdmin(ctx, t, "")
	}
	if s.cfg.CustomerConfirmations {
		s.mailCustomer(ctx, t)
	}
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventTicketCreated, Actor: actorFor(in.UserID), Ticket: t})
	s.deps.Logger.InfoContext(ctx, "support ticket created", "ticket_id", t.ID, "number", t.TicketNumber, "category", t.Category)
	return t, nil
}

func (s *TicketService) Get(ctx context.Context, id int64) (*models.SupportTicket, error) {
	t, err := s.deps.Store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return t, nil
}

func (s *TicketService) List(ctx context.Context, f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, 0, apperr.Validation("invalid status %q", st)
		}
	}
	return s.deps.Store.Tickets().List(ctx, f, p)
}

// AddReply appends to the ticket history. An agent reply starts work on an open ticket.
func (s *TicketService) AddReply(ctx context.Context, id int64, typ, message string) (*models.SupportTicket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("reply message is required")
	}
	switch typ {
	case models.HistoryCustomer, models.HistoryAgent, models.HistorySystem:
	default:
		return nil, apperr.Validation("invalid reply type %q", typ)
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	change := store.TicketChange{
		RequireStatus: activeTicketStatuses,
		AppendHistory: []models.TicketHistoryEntry{{Type: typ, Message: message}},
	}
	if typ == models.HistoryAgent && cur.Status == models.TicketStatusOpen {
		st := models.TicketStatusInProgress
		change.Status = &st
	}
	t, err := s.deps.Store.Tickets().Apply(ctx, id, change)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.State("ticket %s is %s", cur.TicketNumber, cur.Status)
	}
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return t, nil
}

func (s *TicketService) UpdateTicket(ctx context.Context, id int64, p TicketPatch, actor string) (*models.SupportTicket, error) {
	if p.Status == nil && p.Priority == nil && p.AssignedTo == nil {
		return nil, apperr.Validation("no changes supplied")
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", *p.Priority)
	}
	if p.Status != nil && *p.Status == models.TicketStatusResolved {
		t, err := s.CloseTicket(ctx, id, "", actor)
		if err != nil || (p.Priority == nil && p.AssignedTo == nil) {
			return t, err
		}
		p.Status = nil
	}
	if p.AssignedTo != nil && *p.AssignedTo != 0 {
		u, err := s.deps.Store.Users().Get(ctx, *p.AssignedTo)
		if err != nil || (u.Role != models.RoleAgent && u.Role != models.RoleAdmin) {
			return nil, apperr.Validation("user %d cannot be assigned tickets", *p.AssignedTo)
		}
	}

	change := store.TicketChange{Status: p.Status, Priority: p.Priority, AssignedTo: p.AssignedTo}
	var parts []string
	if p.Status != nil {
		parts = append(parts, "status changed to "+string(*p.Status))
		if *p.Status == models.TicketStatusClosed {
			now := s.deps.Now()
			change.ResolvedAt = &now
		}
	}
	if p.Priority != nil {
		parts = append(parts, "priority set to "+string(*p.Priority))
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == 0 {
			parts = append(parts, "unassigned")
		} else {
			parts = append(parts, fmt.Sprintf("assigned to user %d", *p.AssignedTo))
		}
	}
	change.AppendHistory = []models.TicketHistoryEntry{{
		Type:    models.HistorySystem,
		Message: capitalize(strings.Join(parts, ", ")) + " by " + actor,
	}}

	t, err := s.deps.Store.Tickets().Apply(ctx, id, change)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return t, nil
}

// CloseTicket resolves an open ticket and emails the customer.
func (s *TicketService) CloseTicket(ctx context.Context, id int64, resolution, actor string) (*models.SupportTicket, error) {
	now := s.deps.Now()
	status := models.TicketStatusResolved
	change := store.TicketChange{
		Status:        &status,
		ResolvedAt:    &now,
		RequireStatus: activeTicketStatuses,
	}
	if r := strings.TrimSpace(resolution); r != "" {
		change.AppendHistory = append(change.AppendHistory, models.TicketHistoryEntry{Type: models.HistoryResolution, Message: r})
	}

	t, err := s.deps.Store.Tickets().Apply(ctx, id, change)
	if errors.Is(err, store.ErrConflict) {
		cur, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperr.State("ticket %s is already %s", cur.TicketNumber, cur.Status)
	}
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}

	s.mailCustomer(ctx, t)
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventTicketClosed, Actor: actor, Ticket: t, Message: resolution})
	s.deps.Logger.InfoContext(ctx, "support ticket resolved", "ticket_id", t.ID, "actor", actor)
	return t, nil
}

// QueueResult counts what one ProcessQueue pass changed.
type QueueResult struct {
	Escalated int `json:"escalated"`
	Assigned  int `json:"assigned"`
}

// ProcessQueue escalates tickets past their response target and, when enabled,
// assigns unassigned tickets to the least loaded available agent.
func (s *TicketService) ProcessQueue(ctx context.Context) (QueueResult, error) {
	var res QueueResult
	active, err := collect(func(f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
		return s.deps.Store.Tickets().List(ctx, f, p)
	}, store.TicketFilter{Statuses: activeTicketStatuses, OldestFirst: true})
	if err != nil {
		return res, fmt.Errorf("list active tickets: %w", err)
	}

	now := s.deps.Now()
	for _, t := range active {
		limit := time.Duration(models.SLAHours(t.Priority)) * time.Hour
		if t.Priority == models.PriorityHigh || now.Sub(t.CreatedAt) <= limit {
			continue
		}
		if s.escalate(ctx, t, now.Sub(t.CreatedAt)) {
			res.Escalated++
		}
	}

	if s.cfg.AutoAssign {
		n, err := s.autoAssign(ctx, active)
		if err != nil {
			return res, err
		}
		res.Assigned = n
	}
	return res, nil
}

func (s *TicketService) escalate(ctx context.Context, t models.SupportTicket, age time.Duration) bool {
	now := s.deps.Now()
	high := models.PriorityHigh
	updated, err := s.deps.Store.Tickets().Apply(ctx, t.ID, store.TicketChange{
		Priority:           &high,
		EscalatedAt:        &now,
		RequireStatus:      activeTicketStatuses,
		RequirePriorityNot: models.PriorityHigh,
		AppendHistory: []models.TicketHistoryEntry{{
			Type:    models.HistorySystem,
			Message: fmt.Sprintf("Escalated to high priority after missing the %d-hour response target", models.SLAHours(t.Priority)),
		}},
	})
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "escalate ticket", "ticket_id", t.ID, "error", err)
		return false
	}
	s.deps.Metrics.RecordEscalation()
	s.mailAdmin(ctx, updated, humanDuration(age))
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventTicketEscalated, Actor: "system", Ticket: updated})
	s.deps.Logger.WarnContext(ctx, "support ticket escalated", "ticket_id", t.ID, "number", t.TicketNumber, "age", age.Round(time.Minute))
	return true
}

func (s *TicketService) autoAssign(ctx context.Context, tickets []models.SupportTicket) (int, error) {
	agents, err := s.deps.Store.Users().ListByRole(ctx, models.RoleAgent)
	if err != nil {
		return 0, fmt.Errorf("list agents: %w", err)
	}
	agents = slices.DeleteFunc(agents, func(u models.User) bool { return !u.AgentAvailable })
	if len(agents) == 0 {
		return 0, nil
	}

	load := make(map[int64]int64, len(agents))
	for _, a := range agents {
		_, n, err := s.deps.Store.Tickets().List(ctx, store.TicketFilter{Statuses: activeTicketStatuses, AssignedTo: a.ID}, store.Page{Page: 1, PerPage: 1})
		if err != nil {
			return 0, fmt.Errorf("count agent load: %w", err)
		}
		load[a.ID] = n
	}

	assigned := 0
	for _, t := range tickets {
		if t.AssignedTo != 0 {
			continue
		}
		pick := agents[0].ID
		for _, a := range agents[1:] {
			if load[a.ID] < load[pick] {
				pick = a.ID
			}
		}
		_, err := s.deps.Store.Tickets().Apply(ctx, t.ID, store.TicketChange{
			AssignedTo:    &pick,
			RequireStatus: activeTicketStatuses,
			AppendHistory: []models.TicketHistoryEntry{{
				Type:    models.HistorySystem,
				Message: fmt.Sprintf("Automatically assigned to user %d", pick),
			}},
		})
		if err != nil {
			continue
		}
		load[pick]++
		assigned++
	}
	return assigned, nil
}

// CleanupOldTickets deletes resolved and closed tickets past the retention window.
func (s *TicketService) CleanupOldTickets(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	n, err := s.deps.Store.Tickets().DeleteFinishedBefore(ctx, s.deps.Now().AddDate(0, 0, -s.cfg.RetentionDays))
	if err != nil {
		return 0, fmt.Errorf("cleanup tickets: %w", err)
	}
	if n > 0 {
		s.deps.Logger.InfoContext(ctx, "cleaned up old support tickets", "count", n)
	}
	return n, nil
}

func (s *TicketService) Statistics(ctx context.Context, days int) (*models.TicketStats, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := collect(func(f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
		return s.deps.Store.Tickets().List(ctx, f, p)
	}, store.TicketFilter{CreatedAfter: s.deps.Now().AddDate(0, 0, -days)})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	st := &models.TicketStats{Days: days, ByCategory: map[string]int64{}}
	for _, t := range rows {
		st.Total++
		switch t.Status {
		case models.TicketStatusOpen:
			st.Open++
		case models.TicketStatusInProgress:
			st.InProgress++
		case models.TicketStatusResolved:
			st.Resolved++
		case models.TicketStatusClosed:
			st.Closed++
		}
		if t.EscalatedAt != nil {
			st.Escalated++
		}
		st.ByCategory[t.Category]++
	}
	return st, nil
}

// SuggestedResponses returns canned replies for the ticket's subject and message.
func (s *TicketService) SuggestedResponses(ctx context.Context, id int64) ([]string, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return SuggestedResponses(t.Subject + " " + t.Message), nil
}

func (s *TicketService) ticketData(t *models.SupportTicket) mailer.TicketData {
	return mailer.TicketData{
		Site:          s.deps.Site,
		TicketNumber:  t.TicketNumber,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		Category:      t.Category,
		Priority:      string(t.Priority),
		Subject:       t.Subject,
		Message:       t.Message,
		Date:          mailer.FormatDate(t.CreatedAt),
		Resolved:      t.Status == models.TicketStatusResolved,
	}
}

// mailAdmin sends the new-ticket alert, or the escalation alert when overdue is set.
func (s *TicketService) mailAdmin(ctx context.Context, t *models.SupportTicket, overdue string) {
	if s.cfg.AdminEmail == "" {
		return
	}
	d := s.ticketData(t)
	d.Overdue = overdue
	d.Escalated = overdue != ""
	msg, err := mailer.TicketAdmin(s.cfg.AdminEmail, d)
	if err == nil {
		err = s.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "admin ticket email failed", "ticket_id", t.ID, "error", err)
	}
}

func (s *TicketService) mailCustomer(ctx context.Context, t *models.SupportTicket) {
	if t.CustomerEmail == "" {
		return
	}
	msg, err := mailer.TicketCustomer(t.CustomerEmail, s.ticketData(t))
	if err == nil {
		err = s.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "customer ticket email failed", "ticket_id", t.ID, "error", err)
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d >= time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d mins", int(d.Minutes()))
	}
}
