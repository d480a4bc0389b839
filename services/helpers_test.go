package services

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/store/memstore"
	"github.com/princinho/sahoassist/utils"
)

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mailer.Message
	fail   map[string]error
	panics map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.panics[msg.To] {
		panic("smtp connection reset")
	}
	if err := m.fail[msg.To]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) to(addr string) []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mailer.Message
	for _, msg := range m.sent {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store  *memstore.Store
	mail   *fakeMailer
	clock  *clock
	deps   Deps
	tokens *utils.VendorTokenSigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		store: memstore.New().WithClock(c.Now),
		mail:  &fakeMailer{fail: map[string]error{}, panics: map[string]bool{}},
		clock: c,
	}
	f.deps = Deps{
		Store:  f.store,
		Mailer: f.mail,
		Hooks:  NewHooks(quietLogger()),
		Logger: quietLogger(),
		Site:   mailer.Site{SiteName: "Saho", SiteURL: "https://shop.example.com"},
		Now:    f.clock.Now,
	}
	f.tokens = utils.NewVendorTokenSigner("vendor-secret", 24*time.Hour).WithClock(f.clock.Now)
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) requests(cfg RequestConfig) *RequestService {
	return NewRequestService(f.deps, cfg)
}

func (f *fixture) notifier(cfg NotifierConfig) (*Notifier, *RequestService) {
	reqs := f.requests(RequestConfig{})
	if cfg.PublicAPIURL == "" {
		cfg.PublicAPIURL = "https://api.example.com"
	}
	return NewNotifier(f.deps, cfg, f.tokens, reqs), reqs
}

func (f *fixture) addVendor(t *testing.T, name, email string, categories ...string) models.Vendor {
	t.Helper()
	v, err := NewVendorService(f.deps).Create(context.Background(), VendorInput{Name: name, Email: email, Categories: categories})
	require.NoError(t, err)
	return *v
}

func (f *fixture) addRequest(t *testing.T, reqs *RequestService) *models.ProductRequest {
	t.Helper()
	r, err := reqs.Create(context.Background(), CreateRequestInput{
		Category:      "electronics",
		Description:   "wireless headphones",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
	})
	require.NoError(t, err)
	return r
}

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_.\-]+)`)

// responseToken pulls the response token out of the last request email sent to addr.
func (f *fixture) responseToken(t *testing.T, addr string) string {
	t.Helper()
	msgs := f.mail.to(addr)
	require.NotEmpty(t, msgs, "no email sent to %s", addr)
	m := tokenPattern.FindStringSubmatch(msgs[len(msgs)-1].HTMLBody)
	require.NotNil(t, m, "no response link in email")
	return m[1]
}

// contendedStore makes the next request writes lose their optimistic retries.
type contendedStore struct {
	*memstore.Store
	mu    sync.Mutex
	fails int
}

func (s *contendedStore) Requests() store.RequestStore {
	return contendedRequests{RequestStore: s.Store.Requests(), s: s}
}

type contendedRequests struct {
	store.RequestStore
	s *contendedStore
}

func (q contendedRequests) Apply(ctx context.Context, id int64, c store.RequestChange) (*models.ProductRequest, error) {
	q.s.mu.Lock()
	fail := q.s.fails > 0
	if fail {
		q.s.fails--
	}
	q.s.mu.Unlock()
	if fail {
		return nil, store.ErrContention
	}
	return q.RequestStore.Apply(ctx, id, c)
}

// contend routes the fixture's services through a store that fails the next n request writes.
func (f *fixture) contend(n int) *contendedStore {
	cs := &contendedStore{Store: f.store, fails: n}
	f.deps.Store = cs
	return cs
}
