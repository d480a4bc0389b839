package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/catalog"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/metrics"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store/memstore"
	"github.com/princinho/sahoassist/utils"
)

const (
	testJWTSecret     = "jwt-secret"
	testWebhookSecret = "webhook-secret"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) to(addr string) []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []mailer.Message
	for _, m := range o.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
	mail   *outbox
	api    API
}

type option func(*API)

func withUploads(s utils.ObjectStore) option {
	return func(a *API) { a.Uploads = s }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memstore.New()
	mail := &outbox{}
	m := metrics.New()
	deps := services.Deps{
		Store:   st,
		Mailer:  mail,
		Hooks:   services.NewHooks(logger),
		Metrics: m,
		Logger:  logger,
		Site:    mailer.Site{SiteName: "Saho", SiteURL: "https://shop.example.com"},
	}

	requests := services.NewRequestService(deps, services.RequestConfig{})
	tokens := utils.NewVendorTokenSigner("vendor-secret", time.Hour)
	notifier := services.NewNotifier(deps, services.NotifierConfig{
		PublicAPIURL:  "https://api.example.com",
		WebhookSecret: testWebhookSecret,
	}, tokens, requests)
	tickets := services.NewTicketService(deps, services.TicketConfig{}, nil)
	gateway := ai.NewGateway(nil, ai.Options{}, logger, m)
	matcher := catalog.NewMatcher([]catalog.Adapter{
		catalog.NewStaticAdapter("static", []models.Product{
			{ID: "p1", Title: "Wireless Headphones", Description: "Noise cancelling", InStock: true},
			{ID: "p2", Title: "Desk Lamp", Description: "Brass base"},
		}),
	}, catalog.Options{}, logger)
	chat := services.NewChatService(deps, services.ChatConfig{RetentionDays: 30}, gateway, matcher, tickets, nil)

	api := API{
		Users:       st.Users(),
		Requests:    requests,
		Broadcaster: services.NewBroadcaster(deps, requests, notifier),
		Notifier:    notifier,
		Vendors:     services.NewVendorService(deps),
		Tickets:     tickets,
		Chat:        chat,
		Health:      services.NewHealthService(deps, gateway, nil),
		Sweeper:     services.NewSweeper(requests, tickets, chat, m, logger),
		Metrics:     m,
		Exports:     utils.NewLocalStore(t.TempDir(), ""),
		Images:      utils.NewImageValidator([]string{"image/png", "image/jpeg"}, 1),
		JWTSecret:   testJWTSecret,
		AccessTTL:   time.Hour,
		Limits:      PageLimits{Max: 50, Default: 10},
	}
	for _, opt := range opts {
		opt(&api)
	}

	r := gin.New()
	Register(r, api)
	return &harness{t: t, router: r, store: st, mail: mail, api: api}
}

func token(t *testing.T, role models.Role) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(1, "staff@example.com", string(role), testJWTSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request. A non-empty bearer is sent as Authorization.
func (h *harness) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) admin(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(method, path, body, token(h.t, models.RoleAdmin))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type listBody[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func (h *harness) addVendor(email string, categories ...string) models.Vendor {
	h.t.Helper()
	w := h.admin(http.MethodPost, "/admin/vendors", gin.H{"name": "Vendor " + email, "email": email, "categories": categories})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Vendor](h.t, w)
}

func (h *harness) submitRequest(category string) services.BroadcastResult {
	h.t.Helper()
	w := h.do(http.MethodPost, "/product-requests", gin.H{
		"category":      category,
		"description":   "wireless headphones with a long battery life",
		"customerName":  "Ada",
		"customerEmail": "ada@example.com",
	}, "")
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[services.BroadcastResult](h.t, w)
}

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_.\-]+)`)

func (h *harness) responseToken(vendorEmail string) string {
	h.t.Helper()
	msgs := h.mail.to(vendorEmail)
	require.NotEmpty(h.t, msgs, "no email sent to %s", vendorEmail)
	m := tokenPattern.FindStringSubmatch(msgs[len(msgs)-1].HTMLBody)
	require.NotNil(h.t, m, "no response link in email")
	return m[1]
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
