package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

type NotifierConfig struct {
	NotifyAll             bool
	NotifyAllCap          int
	Concurrency           int
	SendTimeout           time.Duration
	PublicAPIURL          string
	AdminEmail            string
	WebhookSecret         string
	CustomerConfirmations bool
}

// Notifier broadcasts product requests to vendors and ingests their replies.
type Notifier struct {
	deps     Deps
	cfg      NotifierConfig
	tokens   *utils.VendorTokenSigner
	requests *RequestService
}

func NewNotifier(deps Deps, cfg NotifierConfig, tokens *utils.VendorTokenSigner, requests *RequestService) *Notifier {
	if cfg.NotifyAllCap <= 0 {
		cfg.NotifyAllCap = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	cfg.PublicAPIURL = strings.TrimRight(cfg.PublicAPIURL, "/")
	return &Notifier{deps: deps.withDefaults(), cfg: cfg, tokens: tokens, requests: requests}
}

// NotifyVendors emails every vendor resolved for category and returns the ids of
// those that have been reached for the request. Vendors reached by an earlier call
// are not emailed again but are still returned.
func (n *Notifier) NotifyVendors(ctx context.Context, category, description string, requestID, customerID int64) ([]int64, error) {
	r, err := n.deps.Store.Requests().Get(ctx, requestID)
	if err != nil {
		return nil, notFound(err, "request", requestID)
	}
	if r.Status.IsTerminal() {
		return nil, apperr.State("request %s is %s", r.RequestNumber, r.Status)
	}
	if category == "" {
		category = r.Category
	}
	if description == "" {
		description = r.Description
	}

	vendors, err := n.resolveVendors(ctx, category)
	if err != nil {
		return nil, err
	}
	vendors = n.deps.Hooks.FilterVendors(ctx, category, vendors)

	type outcome struct {
		delivered bool
		fresh     bool
	}
	results := make([]outcome, len(vendors))
	var g errgroup.Group
	g.SetLimit(n.cfg.Concurrency)
	for i, v := range vendors {
		g.Go(func() error {
			delivered, fresh := n.notifyOne(ctx, r, description, v)
			results[i] = outcome{delivered: delivered, fresh: fresh}
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]int64, 0, len(vendors))
	fresh := 0
	for i, res := range results {
		if res.delivered {
			ids = append(ids, vendors[i].ID)
		}
		if res.fresh {
			fresh++
		}
	}

	if fresh > 0 || len(ids) == 0 {
		n.confirmCustomer(ctx, r, len(ids))
	}
	n.deps.Hooks.Emit(ctx, HookEvent{Name: EventVendorsNotified, Actor: actorFor(customerID), Request: r, Message: fmt.Sprintf("%d vendors contacted", len(ids))})
	n.deps.Logger.InfoContext(ctx, "vendors notified",
		"request_id", r.ID, "category", category, "resolved", len(vendors), "contacted", len(ids), "new", fresh)
	return ids, nil
}

func (n *Notifier) resolveVendors(ctx context.Context, category string) ([]models.Vendor, error) {
	slug := utils.GenerateSlug(category)

	vendors, err := n.deps.Store.Vendors().FindByCategory(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("find vendors by category: %w", err)
	}
	if len(vendors) > 0 {
		return vendors, nil
	}

	vendors, err = n.vendorUsers(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(vendors) > 0 {
		return vendors, nil
	}

	if n.cfg.NotifyAll {
		n.deps.Logger.WarnContext(ctx, "no vendors tagged for category, notifying all vendors", "category", slug, "cap", n.cfg.NotifyAllCap)
		vendors, err = n.deps.Store.Vendors().ListReachable(ctx, n.cfg.NotifyAllCap)
		if err != nil {
			return nil, fmt.Errorf("list vendors: %w", err)
		}
		return vendors, nil
	}
	return []models.Vendor{}, nil
}

// vendorUsers returns vendor-role users tagged with slug, each backed by a vendor row.
func (n *Notifier) vendorUsers(ctx context.Context, slug string) ([]models.Vendor, error) {
	users, err := n.deps.Store.Users().ListByRole(ctx, models.RoleVendor)
	if err != nil {
		return nil, fmt.Errorf("list vendor users: %w", err)
	}
	out := []models.Vendor{}
	for _, u := range users {
		tagged := slices.ContainsFunc(u.VendorCategories, func(c string) bool {
			s := utils.GenerateSlug(c)
			return s == slug || s == models.CategoryAll
		})
		if !tagged || u.Email == "" {
			continue
		}
		v, err := n.vendorForUser(ctx, u, slug)
		if err != nil {
			n.deps.Logger.WarnContext(ctx, "vendor user skipped", "user_id", u.ID, "error", err)
			continue
		}
		if v.Reachable() {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (n *Notifier) vendorForUser(ctx context.Context, u models.User, slug string) (*models.Vendor, error) {
	v, err := n.deps.Store.Vendors().GetByEmail(ctx, u.Email)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	now := n.deps.Now()
	v = &models.Vendor{
		UserID:               u.ID,
		Name:                 u.DisplayName,
		Email:                strings.ToLower(u.Email),
		Company:              u.CompanyName,
		Phone:                u.Phone,
		Status:               models.VendorStatusActive,
		NotificationsEnabled: true,
		Categories:           []models.VendorCategory{{CategoryName: slug, CategorySlug: slug, IsPrimary: true, CreatedAt: now}},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	err = n.deps.Store.Vendors().Create(ctx, v)
	if errors.Is(err, store.ErrDuplicate) {
		return n.deps.Store.Vendors().GetByEmail(ctx, u.Email)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// notifyOne claims the (vendor, request) row, sends the email and records the outcome.
// It reports whether the vendor is reached and whether this call reached it.
func (n *Notifier) notifyOne(ctx context.Context, r *models.ProductRequest, description string, v models.Vendor) (delivered, fresh bool) {
	token, tokenID, err := n.tokens.Sign(v.ID, r.ID)
	if err != nil {
		n.deps.Logger.ErrorContext(ctx, "sign vendor token", "vendor_id", v.ID, "error", err)
		return false, false
	}
	// a row still queued after a whole send timeout belongs to a sender that died mid-send
	now := n.deps.Now()
	row, claimed, err := n.deps.Store.Notifications().Claim(ctx, v.ID, r.ID, tokenID, now, now.Add(-n.cfg.SendTimeout))
	if err != nil {
		n.deps.Logger.ErrorContext(ctx, "claim vendor notification", "vendor_id", v.ID, "request_id", r.ID, "error", err)
		return false, false
	}
	if !claimed {
		return row.Status.Delivered(), false
	}

	status, errMsg := n.send(ctx, r, description, v, token)
	if err := n.deps.Store.Notifications().SetStatus(ctx, row.ID, status, errMsg, n.deps.Now()); err != nil {
		n.deps.Logger.ErrorContext(ctx, "record notification status", "notification_id", row.ID, "status", status, "error", err)
	}
	n.deps.Metrics.RecordNotification(string(status))
	if status != models.NotificationStatusSent {
		n.deps.Logger.WarnContext(ctx, "vendor notification not delivered", "vendor_id", v.ID, "request_id", r.ID, "status", status, "error", errMsg)
		return false, false
	}
	if err := n.deps.Store.Vendors().RecordNotified(ctx, v.ID); err != nil {
		n.deps.Logger.WarnContext(ctx, "update vendor stats", "vendor_id", v.ID, "error", err)
	}
	return true, true
}

func (n *Notifier) send(ctx context.Context, r *models.ProductRequest, description string, v models.Vendor, token string) (status models.NotificationStatus, errMsg string) {
	defer func() {
		if rec := recover(); rec != nil {
			status, errMsg = models.NotificationStatusError, fmt.Sprintf("panic: %v", rec)
		}
	}()

	now := n.deps.Now()
	msg, err := mailer.VendorRequest(v.Email, n.cfg.AdminEmail, mailer.VendorRequestData{
		Site:          n.deps.Site,
		VendorName:    v.Name,
		Category:      r.Category,
		Description:   description,
		RequestNumber: r.RequestNumber,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		ResponseURL:   n.ResponseURL(token),
		Date:          mailer.FormatDate(now),
		ExpiresAt:     mailer.FormatDate(now.Add(24 * time.Hour)),
	})
	if err != nil {
		return models.NotificationStatusError, err.Error()
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
	defer cancel()
	switch err := n.deps.Mailer.Send(sendCtx, msg); {
	case err == nil:
		return models.NotificationStatusSent, ""
	case errors.Is(err, mailer.ErrRejected):
		return models.NotificationStatusFailed, err.Error()
	default:
		return models.NotificationStatusError, err.Error()
	}
}

// ResponseURL is the link a vendor follows to answer a request.
func (n *Notifier) ResponseURL(token string) string {
	return n.cfg.PublicAPIURL + "/vendor-response?token=" + url.QueryEscape(token)
}

func (n *Notifier) confirmCustomer(ctx context.Context, r *models.ProductRequest, contacted int) {
	if !n.cfg.CustomerConfirmations || r.CustomerEmail == "" {
		return
	}
	msg, err := mailer.CustomerConfirmation(r.CustomerEmail, mailer.CustomerConfirmationData{
		Site:          n.deps.Site,
		CustomerName:  r.CustomerName,
		RequestNumber: r.RequestNumber,
		Category:      r.Category,
		Description:   r.Description,
		VendorsCount:  contacted,
		Date:          mailer.FormatDate(n.deps.Now()),
	})
	if err == nil {
		err = n.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		n.deps.Logger.WarnContext(ctx, "customer confirmation failed", "request_id", r.ID, "error", err)
	}
}

// IngestResponse accepts a vendor reply authenticated by its single-use token.
// Zero vendorID or requestID are taken from the token.
func (n *Notifier) IngestResponse(ctx context.Context, token string, vendorID, requestID int64, message string) (*models.ProductRequest, error) {
	claims, err := n.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Auth("invalid or expired response token")
	}
	if vendorID == 0 {
		vendorID = claims.VendorID
	}
	if requestID == 0 {
		requestID = claims.RequestID
	}
	if claims.VendorID != vendorID || claims.RequestID != requestID {
		return nil, apperr.Auth("response token does not match vendor and request")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("response message is required")
	}

	// the token is consumed only after the response is counted
	if err := n.checkResponseToken(ctx, vendorID, requestID, claims.ID); err != nil {
		return nil, err
	}
	r, err := n.requests.RecordVendorResponse(ctx, requestID, vendorID, message)
	if err != nil {
		return nil, err
	}
	err = n.deps.Store.Notifications().MarkResponded(ctx, vendorID, requestID, claims.ID, message, n.deps.Now())
	if err != nil {
		// the count must not outlive an unconsumed token
		if uerr := n.requests.discardVendorResponse(ctx, requestID, vendorID); uerr != nil {
			n.deps.Logger.ErrorContext(ctx, "discard duplicate vendor response", "vendor_id", vendorID, "request_id", requestID, "error", uerr)
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Auth("response token already used")
		}
		return nil, fmt.Errorf("mark notification responded: %w", err)
	}
	if err := n.deps.Store.Vendors().RecordResponse(ctx, vendorID); err != nil {
		n.deps.Logger.WarnContext(ctx, "update vendor response stats", "vendor_id", vendorID, "error", err)
	}
	n.deps.Metrics.RecordVendorResponse()
	n.deps.Logger.InfoContext(ctx, "vendor response recorded", "vendor_id", vendorID, "request_id", requestID)
	return r, nil
}

// checkResponseToken reports whether tokenID is the live, unused token of the
// (vendor, request) notification.
func (n *Notifier) checkResponseToken(ctx context.Context, vendorID, requestID int64, tokenID string) error {
	rows, err := n.deps.Store.Notifications().ListByRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	for _, row := range rows {
		if row.VendorID != vendorID {
			continue
		}
		if row.TokenID != tokenID || row.Status == models.NotificationStatusResponded {
			return apperr.Auth("response token already used")
		}
		return nil
	}
	return apperr.Auth("no notification matches this response token")
}

// ResponseLink is what a vendor sees when opening a response link.
type ResponseLink struct {
	Token         string `json:"token"`
	VendorID      int64  `json:"vendorId"`
	VendorName    string `json:"vendorName"`
	RequestID     int64  `json:"requestId"`
	RequestNumber string `json:"requestNumber"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	Closed        bool   `json:"closed"`
	ExpiresAt     string `json:"expiresAt"`
}

// OpenResponseLink validates a token and marks the notification opened.
func (n *Notifier) OpenResponseLink(ctx context.Context, token string) (*ResponseLink, error) {
	claims, err := n.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Auth("invalid or expired response token")
	}
	r, err := n.deps.Store.Requests().Get(ctx, claims.RequestID)
	if err != nil {
		return nil, notFound(err, "request", claims.RequestID)
	}
	v, err := n.deps.Store.Vendors().Get(ctx, claims.VendorID)
	if err != nil {
		return nil, notFound(err, "vendor", claims.VendorID)
	}
	if err := n.deps.Store.Notifications().MarkOpened(ctx, v.ID, r.ID, claims.ID, n.deps.Now()); err != nil {
		n.deps.Logger.WarnContext(ctx, "mark notification opened", "vendor_id", v.ID, "request_id", r.ID, "error", err)
	}
	link := &ResponseLink{
		Token:         token,
		VendorID:      v.ID,
		VendorName:    v.Name,
		RequestID:     r.ID,
		RequestNumber: r.RequestNumber,
		Category:      r.Category,
		Description:   r.Description,
		Status:        string(r.Status),
		Closed:        r.Status.IsTerminal(),
	}
	if claims.ExpiresAt != nil {
		link.ExpiresAt = mailer.FormatDate(claims.ExpiresAt.Time)
	}
	return link, nil
}

// VerifyWebhookSignature checks header against "sha256=" + hex(HMAC-SHA256(body)).
// Without a configured secret every body is accepted.
func (n *Notifier) VerifyWebhookSignature(body []byte, header string) error {
	if n.cfg.WebhookSecret == "" {
		return nil
	}
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok {
		return apperr.Auth("missing webhook signature")
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return apperr.Auth("malformed webhook signature")
	}
	if !hmac.Equal(got, SignWebhook(n.cfg.WebhookSecret, body)) {
		return apperr.Auth("invalid webhook signature")
	}
	return nil
}

func SignWebhook(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
