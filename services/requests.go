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

type RequestConfig struct {
	Prefix        string
	AutoCloseDays int
	OverdueHours  int
	RetentionDays int
}

// RequestService drives the product request lifecycle.
type RequestService struct {
	deps Deps
	cfg  RequestConfig
}

func NewRequestService(deps Deps, cfg RequestConfig) *RequestService {
	if cfg.Prefix == "" {
		cfg.Prefix = "REQ"
	}
	return &RequestService{deps: deps.withDefaults(), cfg: cfg}
}

type CreateRequestInput struct {
	UserID        int64
	Category      string
	Description   string
	ImageURL      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Priority      models.Priority
}

// UpdateRequestInput holds the fields a caller may change. Nil fields are kept.
type UpdateRequestInput struct {
	Status            *models.ProductRequestStatus
	Priority          *models.Priority
	Notes             string
	VendorsContacted  *int
	ResponsesReceived *int
}

func (in UpdateRequestInput) empty() bool {
	return in.Status == nil && in.Priority == nil && strings.TrimSpace(in.Notes) == "" &&
		in.VendorsContacted == nil && in.ResponsesReceived == nil
}

// RequestDetail is a request with its audit trail and vendor notifications.
type RequestDetail struct {
	Request       *models.ProductRequest       `json:"request"`
	Activity      []models.RequestActivity     `json:"activity"`
	Notifications []models.VendorNotification `json:"notifications"`
}

func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*models.ProductRequest, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if in.Category == "" || in.Description == "" {
		return nil, apperr.Validation("category and description are required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", in.Priority)
	}

	if in.UserID > 0 && (in.CustomerName == "" || in.CustomerEmail == "" || in.CustomerPhone == "") {
		u, err := s.deps.Store.Users().Get(ctx, in.UserID)
		switch {
		case err == nil:
			if in.CustomerName == "" {
				in.CustomerName = u.DisplayName
			}
			if in.CustomerEmail == "" {
				in.CustomerEmail = u.Email
			}
			if in.CustomerPhone == "" {
				in.CustomerPhone = u.Phone
			}
		case errors.Is(err, store.ErrNotFound):
			s.deps.Logger.WarnContext(ctx, "request user not found, keeping submitted customer details", "user_id", in.UserID)
		default:
			return nil, fmt.Errorf("load customer profile: %w", err)
		}
	}

	now := s.deps.Now()
	seq, err := s.deps.Store.Sequences().Next(ctx, sequenceKey("request", now))
	if err != nil {
		return nil, fmt.Errorf("next request number: %w", err)
	}
	r := &models.ProductRequest{
		RequestNumber: sequenceNumber(s.cfg.Prefix, now, seq),
		UserID:        in.UserID,
		Category:      in.Category,
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Status:        models.ProductRequestStatusPending,
		Priority:      in.Priority,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created := models.RequestActivity{
		Action:      models.ActivityCreated,
		Description: "Request created",
		Actor:       actorFor(in.UserID),
		CreatedAt:   now,
	}
	if err := s.deps.Store.Requests().Create(ctx, r, created); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.deps.Metrics.RecordTransition(string(r.Status))
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventRequestCreated, Actor: created.Actor, Request: r})
	s.deps.Logger.InfoContext(ctx, "product request created", "request_id", r.ID, "number", r.RequestNumber, "category", r.Category)
	return r, nil
}

func actorFor(userID int64) string {
	if userID > 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return "guest"
}

func (s *RequestService) Get(ctx context.Context, id int64) (*models.ProductRequest, error) {
	r, err := s.deps.Store.Requests().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return r, nil
}

func (s *RequestService) Detail(ctx context.Context, id int64) (*RequestDetail, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	activity, err := s.deps.Store.Requests().Activities(ctx, id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	notes, err := s.deps.Store.Notifications().ListByRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return &RequestDetail{Request: r, Activity: activity, Notifications: notes}, nil
}

func (s *RequestService) List(ctx context.Context, f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, 0, apperr.Validation("invalid status %q", st)
		}
	}
	return s.deps.Store.Requests().List(ctx, f, p)
}

func (s *RequestService) Activities(ctx context.Context, id int64) ([]models.RequestActivity, error) {
	a, err := s.deps.Store.Requests().Activities(ctx, id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return a, nil
}

// Update changes whitelisted fields. Completing or cancelling goes through Complete and Cancel.
func (s *RequestService) Update(ctx context.Context, id int64, in UpdateRequestInput, actor string) (*models.ProductRequest, error) {
	if in.empty() {
		return nil, apperr.Validation("no changes supplied")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", *in.Priority)
	}
	if (in.VendorsContacted != nil && *in.VendorsContacted < 0) || (in.ResponsesReceived != nil && *in.ResponsesReceived < 0) {
		return nil, apperr.Validation("counters cannot be negative")
	}

	if in.Status != nil {
		switch st := *in.Status; st {
		case models.ProductRequestStatusCompleted, models.ProductRequestStatusCancelled:
			var (
				r   *models.ProductRequest
				err error
			)
			if st == models.ProductRequestStatusCompleted {
				r, err = s.Complete(ctx, id, in.Notes, actor)
			} else {
				r, err = s.Cancel(ctx, id, in.Notes, actor)
			}
			if err != nil {
				return nil, err
			}
			rest := in
			rest.Status, rest.Notes = nil, ""
			if rest.empty() {
				return r, nil
			}
			return s.Update(ctx, id, rest, actor)
		case models.ProductRequestStatusProcessing:
		case models.ProductRequestStatusPending, models.ProductRequestStatusAutoClosed:
			return nil, apperr.State("status %s cannot be set directly", st)
		default:
			return nil, apperr.Validation("invalid status %q", st)
		}
	}

	change := store.RequestChange{
		Status:            in.Status,
		Priority:          in.Priority,
		AppendNote:        in.Notes,
		VendorsContacted:  in.VendorsContacted,
		ResponsesReceived: in.ResponsesReceived,
	}
	var parts []string
	if in.Status != nil {
		change.RequireStatus = []models.ProductRequestStatus{models.ProductRequestStatusPending}
		parts = append(parts, "status changed to "+string(*in.Status))
	}
	if in.Priority != nil {
		parts = append(parts, "priority set to "+string(*in.Priority))
	}
	if strings.TrimSpace(in.Notes) != "" {
		parts = append(parts, "note added")
	}
	if in.VendorsContacted != nil {
		parts = append(parts, fmt.Sprintf("vendors contacted set to %d", *in.VendorsContacted))
	}
	if in.ResponsesReceived != nil {
		parts = append(parts, fmt.Sprintf("responses received set to %d", *in.ResponsesReceived))
	}
	change.Activities = []models.RequestActivity{{
		Action:      models.ActivityUpdated,
		Description: capitalize(strings.Join(parts, ", ")),
		Actor:       actor,
	}}

	r, err := s.deps.Store.Requests().Apply(ctx, id, change)
	if errors.Is(err, store.ErrConflict) {
		return nil, s.stateError(ctx, id, "cannot move to processing")
	}
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	if in.Status != nil {
		s.deps.Metrics.RecordTransition(string(*in.Status))
	}
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventRequestUpdated, Actor: actor, Request: r})
	return r, nil
}

func (s *RequestService) Complete(ctx context.Context, id int64, notes, actor string) (*models.ProductRequest, error) {
	return s.close(ctx, id, models.ProductRequestStatusCompleted, notes, actor)
}

func (s *RequestService) Cancel(ctx context.Context, id int64, reason, actor string) (*models.ProductRequest, error) {
	return s.close(ctx, id, models.ProductRequestStatusCancelled, reason, actor)
}

func (s *RequestService) close(ctx context.Context, id int64, status models.ProductRequestStatus, notes, actor string) (*models.ProductRequest, error) {
	now := s.deps.Now()
	change := store.RequestChange{
		Status:        &status,
		AppendNote:    notes,
		RequireStatus: []models.ProductRequestStatus{models.ProductRequestStatusPending, models.ProductRequestStatusProcessing},
	}
	activity := models.RequestActivity{Actor: actor}
	event := EventRequestCompleted
	switch status {
	case models.ProductRequestStatusCompleted:
		change.CompletedAt = &now
		activity.Action = models.ActivityCompleted
		activity.Description = "Request completed"
	default:
		change.CancelledAt = &now
		activity.Action = models.ActivityCancelled
		activity.Description = "Request cancelled"
		event = EventRequestCancelled
	}
	if n := strings.TrimSpace(notes); n != "" {
		activity.Description += ": " + n
	}
	change.Activities = []models.RequestActivity{activity}

	r, err := s.deps.Store.Requests().Apply(ctx, id, change)
	if errors.Is(err, store.ErrConflict) {
		return nil, s.stateError(ctx, id, "cannot be "+string(status))
	}
	if err != nil {
		return nil, notFound(err, "request", id)
	}

	s.deps.Metrics.RecordTransition(string(status))
	s.notifyCustomer(ctx, r, notes)
	s.deps.Hooks.Emit(ctx, HookEvent{Name: event, Actor: actor, Request: r, Message: notes})
	s.deps.Logger.InfoContext(ctx, "product request closed", "request_id", r.ID, "status", status, "actor", actor)
	return r, nil
}

// stateError reports the request's current status after a failed precondition.
func (s *RequestService) stateError(ctx context.Context, id int64, what string) error {
	cur, err := s.deps.Store.Requests().Get(ctx, id)
	if err != nil {
		return notFound(err, "request", id)
	}
	if cur.Status.IsTerminal() {
		return apperr.State("request %s is already %s", cur.RequestNumber, cur.Status)
	}
	return apperr.State("request %s is %s and %s", cur.RequestNumber, cur.Status, what)
}

func (s *RequestService) notifyCustomer(ctx context.Context, r *models.ProductRequest, notes string) {
	if r.CustomerEmail == "" {
		return
	}
	data := mailer.RequestClosedData{
		Site:          s.deps.Site,
		CustomerName:  r.CustomerName,
		RequestNumber: r.RequestNumber,
		Category:      r.Category,
		Description:   r.Description,
		Notes:         notes,
		Date:          mailer.FormatDate(s.deps.Now()),
	}
	var (
		msg mailer.Message
		err error
	)
	if r.Status == models.ProductRequestStatusCompleted {
		msg, err = mailer.RequestCompleted(r.CustomerEmail, data)
	} else {
		msg, err = mailer.RequestCancelled(r.CustomerEmail, data)
	}
	if err == nil {
		err = s.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "customer email failed", "request_id", r.ID, "status", r.Status, "error", err)
	}
}

// RecordVendorResponse counts one accepted vendor reply on the request.
func (s *RequestService) RecordVendorResponse(ctx context.Context, id, vendorID int64, message string) (*models.ProductRequest, error) {
	desc := fmt.Sprintf("Vendor %d responded", vendorID)
	if m := strings.TrimSpace(message); m != "" {
		desc += ": " + truncate(m, 200)
	}
	r, err := s.deps.Store.Requests().Apply(ctx, id, store.RequestChange{
		IncResponses: 1,
		Activities: []models.RequestActivity{{
			Action:      models.ActivityVendorResponse,
			Description: desc,
			Actor:       fmt.Sprintf("vendor:%d", vendorID),
		}},
	})
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventVendorResponded, Actor: fmt.Sprintf("vendor:%d", vendorID), Request: r, VendorID: vendorID, Message: message})
	return r, nil
}

// discardVendorResponse reverses a RecordVendorResponse whose token turned out to be spent.
func (s *RequestService) discardVendorResponse(ctx context.Context, id, vendorID int64) error {
	_, err := s.deps.Store.Requests().Apply(ctx, id, store.RequestChange{
		IncResponses: -1,
		Activities: []models.RequestActivity{{
			Action:      models.ActivityVendorResponse,
			Description: fmt.Sprintf("Duplicate response from vendor %d discarded", vendorID),
			Actor:       "system",
		}},
	})
	return err
}

// AutoCloseOldRequests closes pending requests older than the configured number of days.
func (s *RequestService) AutoCloseOldRequests(ctx context.Context) (int, error) {
	if s.cfg.AutoCloseDays <= 0 {
		return 0, nil
	}
	now := s.deps.Now()
	stale, err := collect(func(f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
		return s.deps.Store.Requests().List(ctx, f, p)
	}, store.RequestFilter{
		Statuses:      []models.ProductRequestStatus{models.ProductRequestStatusPending},
		CreatedBefore: now.AddDate(0, 0, -s.cfg.AutoCloseDays),
		OldestFirst:   true,
	})
	if err != nil {
		return 0, fmt.Errorf("list stale requests: %w", err)
	}

	status := models.ProductRequestStatusAutoClosed
	note := fmt.Sprintf("Automatically closed after %d days of inactivity.", s.cfg.AutoCloseDays)
	closed := 0
	for _, r := range stale {
		updated, err := s.deps.Store.Requests().Apply(ctx, r.ID, store.RequestChange{
			Status:        &status,
			AppendNote:    note,
			RequireStatus: []models.ProductRequestStatus{models.ProductRequestStatusPending},
			Activities: []models.RequestActivity{{
				Action:      models.ActivityAutoClosed,
				Description: "Request auto-closed due to inactivity",
				Actor:       "system",
			}},
		})
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return closed, fmt.Errorf("auto-close request %d: %w", r.ID, err)
		}
		closed++
		s.deps.Metrics.RecordTransition(string(status))
		s.deps.Hooks.Emit(ctx, HookEvent{Name: EventRequestAutoClosed, Actor: "system", Request: updated})
	}
	if closed > 0 {
		s.deps.Logger.InfoContext(ctx, "auto-closed stale requests", "count", closed, "days", s.cfg.AutoCloseDays)
	}
	return closed, nil
}

// Overdue lists pending requests older than the overdue threshold, oldest first.
func (s *RequestService) Overdue(ctx context.Context) ([]models.ProductRequest, error) {
	hours := s.cfg.OverdueHours
	if hours <= 0 {
		hours = 48
	}
	return collect(func(f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
		return s.deps.Store.Requests().List(ctx, f, p)
	}, store.RequestFilter{
		Statuses:      []models.ProductRequestStatus{models.ProductRequestStatusPending},
		CreatedBefore: s.deps.Now().Add(-time.Duration(hours) * time.Hour),
		OldestFirst:   true,
	})
}

// Statistics summarises requests created in the last days (default 30).
func (s *RequestService) Statistics(ctx context.Context, days int) (*models.RequestStats, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := collect(func(f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
		return s.deps.Store.Requests().List(ctx, f, p)
	}, store.RequestFilter{CreatedAfter: s.deps.Now().AddDate(0, 0, -days)})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	st := &models.RequestStats{Days: days, Categories: []models.CategoryCount{}}
	byCategory := map[string]int64{}
	for _, r := range rows {
		st.TotalRequests++
		st.TotalVendorsContacted += int64(r.VendorsContacted)
		st.TotalResponses += int64(r.ResponsesReceived)
		switch r.Status {
		case models.ProductRequestStatusCompleted:
			st.Completed++
		case models.ProductRequestStatusPending:
			st.Pending++
		case models.ProductRequestStatusProcessing:
			st.Processing++
		case models.ProductRequestStatusCancelled:
			st.Cancelled++
		case models.ProductRequestStatusAutoClosed:
			st.AutoClosed++
		}
		byCategory[r.Category]++
	}
	if st.TotalRequests > 0 {
		n := float64(st.TotalRequests)
		st.AvgVendorsPerRequest = round2(float64(st.TotalVendorsContacted) / n)
		st.AvgResponsesPerRequest = round2(float64(st.TotalResponses) / n)
		st.SuccessRate = round2(float64(st.Completed) * 100 / n)
	}
	for c, n := range byCategory {
		st.Categories = append(st.Categories, models.CategoryCount{Category: c, Count: n})
	}
	slices.SortFunc(st.Categories, func(a, b models.CategoryCount) int {
		if a.Count != b.Count {
			return int(b.Count - a.Count)
		}
		return strings.Compare(a.Category, b.Category)
	})
	if len(st.Categories) > 10 {
		st.Categories = st.Categories[:10]
	}
	return st, nil
}

// Delete removes a request, its activity and its notification rows.
func (s *RequestService) Delete(ctx context.Context, id int64, actor string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Notifications().DeleteByRequest(ctx, id); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if err := s.deps.Store.Requests().Delete(ctx, id); err != nil {
		return notFound(err, "request", id)
	}
	s.deps.Hooks.Emit(ctx, HookEvent{Name: EventRequestDeleted, Actor: actor, Request: r})
	s.deps.Logger.InfoContext(ctx, "product request deleted", "request_id", id, "actor", actor)
	return nil
}

// PurgeFinished deletes terminal requests older than the retention window.
func (s *RequestService) PurgeFinished(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	n, err := s.deps.Store.Requests().DeleteFinishedBefore(ctx, s.deps.Now().AddDate(0, 0, -s.cfg.RetentionDays))
	if err != nil {
		return 0, fmt.Errorf("purge finished requests: %w", err)
	}
	return n, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
