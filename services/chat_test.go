package services

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/catalog"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

type scriptedModel struct {
	answer string
	calls  int
}

func (m *scriptedModel) Complete(context.Context, []ai.Message) (string, error) {
	m.calls++
	return m.answer, nil
}

func (m *scriptedModel) DescribeImage(context.Context, string, []byte, string) (string, error) {
	m.calls++
	return m.answer, nil
}

func (m *scriptedModel) SupportsVision() bool { return true }
func (m *scriptedModel) Name() string         { return "scripted" }

func (f *fixture) chat(model ai.Model, orders OrderLookup, uploads utils.ObjectStore) *ChatService {
	var gw *ai.Gateway
	if model != nil {
		gw = ai.NewGateway(model, ai.Options{Timeout: time.Second}, quietLogger(), nil)
	} else {
		gw = ai.NewGateway(nil, ai.Options{}, quietLogger(), nil)
	}
	matcher := catalog.NewMatcher([]catalog.Adapter{
		catalog.NewStaticAdapter("static", []models.Product{
			{ID: "p1", Title: "Wireless Headphones", Description: "Noise cancelling", InStock: true},
			{ID: "p2", Title: "Desk Lamp", Description: "Brass base"},
			{ID: "p3", Title: "Headphone Stand", Description: "Walnut"},
		}),
	}, catalog.Options{}, quietLogger())
	tickets := NewTicketService(f.deps, TicketConfig{}, orders)
	return NewChatService(f.deps, ChatConfig{RetentionDays: 30}, gw, matcher, tickets, uploads)
}

func TestPostMessageValidation(t *testing.T) {
	svc := newFixture(t).chat(nil, nil, nil)
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, ChatInput{Message: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.PostMessage(ctx, ChatInput{Message: strings.Repeat("a", maxMessageLength+1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.PostMessage(ctx, ChatInput{Message: strings.Repeat("é", maxMessageLength)})
	assert.NoError(t, err)
}

func TestPostMessageFallsBackWithoutModel(t *testing.T) {
	f := newFixture(t)
	svc := f.chat(nil, nil, nil)
	ctx := context.Background()

	reply, err := svc.PostMessage(ctx, ChatInput{Message: "do you sell lamps?", Context: "product-search", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Contains(t, ai.FallbackReplies(models.ContextProductSearch), reply.Reply)
	assert.Equal(t, models.ContextProductSearch, reply.Context)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, f.clock.Now(), reply.Timestamp)

	reply, err = svc.PostMessage(ctx, ChatInput{Message: "hi", Context: "weather", SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ContextGeneral, reply.Context)
	assert.Equal(t, "s-1", reply.SessionID)

	logged, total, err := svc.Conversations(ctx, store.ConversationFilter{}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, logged, 2)
}

func TestPostMessageRoutesSupportWithoutModel(t *testing.T) {
	svc := newFixture(t).chat(nil, nil, nil)
	ctx := context.Background()

	reply, err := svc.PostMessage(ctx, ChatInput{Message: "where is order 12345?", Context: "order-support"})
	require.NoError(t, err)
	assert.Equal(t, orderReferenceReply("12345"), reply.Reply)

	reply, err = svc.PostMessage(ctx, ChatInput{Message: "checkout fails with my card", Context: "site-problem"})
	require.NoError(t, err)
	assert.Equal(t, siteProblemReplies[models.TicketCategoryPayment], reply.Reply)
}

func TestPostMessageUsesModel(t *testing.T) {
	f := newFixture(t)
	model := &scriptedModel{answer: "We have three lamps in stock."}
	svc := f.chat(model, nil, nil)

	reply, err := svc.PostMessage(context.Background(), ChatInput{
		Message: "lamps?",
		Context: "product-search",
		History: []models.ChatTurn{{User: "hello", Assistant: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "We have three lamps in stock.", reply.Reply)
	assert.Equal(t, 1, model.calls)

	reply, err = svc.PostMessage(context.Background(), ChatInput{Message: "my password fails", Context: "site-problem"})
	require.NoError(t, err)
	assert.Equal(t, "We have three lamps in stock.", reply.Reply)
	assert.Equal(t, 2, model.calls)
}

func TestPostMessageOrderLookupBeatsModel(t *testing.T) {
	f := newFixture(t)
	model := &scriptedModel{answer: "model answer"}
	orders := &stubOrders{reply: "Order 777 was delivered.", found: true}
	svc := f.chat(model, orders, nil)
	ctx := context.Background()

	reply, err := svc.PostMessage(ctx, ChatInput{Message: "status of #777", Context: "order-support"})
	require.NoError(t, err)
	assert.Equal(t, "Order 777 was delivered.", reply.Reply)
	assert.Zero(t, model.calls)

	reply, err = svc.PostMessage(ctx, ChatInput{Message: "I have a question about my order", Context: "order-support"})
	require.NoError(t, err)
	assert.Equal(t, "model answer", reply.Reply)
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	model := &scriptedModel{answer: "A pair of over-ear headphones.\nCategories: Electronics, Audio"}
	svc := f.chat(model, nil, utils.NewLocalStore(dir, ""))

	_, err := svc.UploadImage(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.UploadImage(context.Background(), []byte("\x89PNG fake"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{Name: "Electronics", Slug: "electronics"}, {Name: "Audio", Slug: "audio"}}, got.Categories)
	require.NotEmpty(t, got.ImageURL)
	assert.True(t, strings.HasPrefix(got.ImageURL, dir))
	assert.True(t, strings.HasSuffix(got.ImageURL, ".png"))
	_, err = os.Stat(got.ImageURL)
	assert.NoError(t, err)
}

func TestUploadImageWithoutStorage(t *testing.T) {
	svc := newFixture(t).chat(nil, nil, nil)
	got, err := svc.UploadImage(context.Background(), []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
	assert.NotEmpty(t, got.Description)
}

func TestSearchProducts(t *testing.T) {
	svc := newFixture(t).chat(nil, nil, nil)
	ctx := context.Background()

	got, err := svc.SearchProducts(ctx, "wireless headphones", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "p1", got[0].ID)
	for _, p := range got {
		assert.NotEqual(t, "p2", p.ID)
	}

	got, err = svc.SearchProducts(ctx, "", "image", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.SearchProducts(ctx, " ", "text", 5)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.SearchProducts(ctx, "lamp", "audio", 5)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSuggestCategoriesFallback(t *testing.T) {
	svc := newFixture(t).chat(nil, nil, nil)
	got := svc.SuggestCategories(context.Background(), "new iphone case")
	assert.Equal(t, []models.Category{{Name: "Electronics", Slug: "electronics"}, {Name: "Mobile Phones", Slug: "mobile-phones"}}, got)
}

func TestConversationStatsAndPurge(t *testing.T) {
	f := newFixture(t)
	svc := f.chat(nil, nil, nil)
	ctx := context.Background()

	post := func(msg, c, session string, user int64) {
		t.Helper()
		_, err := svc.PostMessage(ctx, ChatInput{Message: msg, Context: c, SessionID: session, UserID: user})
		require.NoError(t, err)
	}
	post("old question", "general", "s-old", 0)
	f.clock.Advance(40 * 24 * time.Hour)
	post("lamp?", "product-search", "s-1", 7)
	post("another lamp?", "product-search", "s-1", 7)
	post("hello", "general", "s-2", 0)

	st, err := svc.ConversationStats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, st.Days)
	assert.EqualValues(t, 3, st.Total)
	assert.EqualValues(t, 1, st.UniqueUsers)
	assert.EqualValues(t, 2, st.UniqueSessions)
	assert.Equal(t, []models.ContextCount{
		{Context: models.ContextProductSearch, Count: 2},
		{Context: models.ContextGeneral, Count: 1},
	}, st.ByContext)

	n, err := svc.PurgeConversations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
