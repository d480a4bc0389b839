package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/catalog"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

const maxMessageLength = 2000

type ChatConfig struct {
	RetentionDays int
}

// ChatService answers visitor messages and serves product discovery.
type ChatService struct {
	deps       Deps
	cfg        ChatConfig
	gateway    *ai.Gateway
	classifier *ai.Classifier
	matcher    *catalog.Matcher
	tickets    *TicketService
	uploads    utils.ObjectStore
}

func NewChatService(deps Deps, cfg ChatConfig, gateway *ai.Gateway, matcher *catalog.Matcher, tickets *TicketService, uploads utils.ObjectStore) *ChatService {
	return &ChatService{
		deps:       deps.withDefaults(),
		cfg:        cfg,
		gateway:    gateway,
		classifier: ai.NewClassifier(gateway),
		matcher:    matcher,
		tickets:    tickets,
		uploads:    uploads,
	}
}

type ChatInput struct {
	Message   string
	Context   string
	History   []models.ChatTurn
	SessionID string
	UserID    int64
	IPAddress string
	UserAgent string
}

type ChatReply struct {
	Reply     string             `json:"response"`
	Context   models.ChatContext `json:"context"`
	SessionID string             `json:"sessionId"`
	Timestamp time.Time          `json:"timestamp"`
}

// PostMessage always produces a reply; only an empty or oversized message is rejected.
func (s *ChatService) PostMessage(ctx context.Context, in ChatInput) (*ChatReply, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(msg) > maxMessageLength {
		return nil, apperr.Validation("message exceeds %d characters", maxMessageLength)
	}
	c := models.ParseChatContext(in.Context)
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	reply := s.route(ctx, msg, c, in.History)

	conv := &models.Conversation{
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		UserMessage: msg,
		AIResponse:  reply,
		Context:     c,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		CreatedAt:   s.deps.Now(),
	}
	if err := s.deps.Store.Conversations().Log(ctx, conv); err != nil {
		s.deps.Logger.WarnContext(ctx, "conversation not logged", "session_id", in.SessionID, "error", err)
	}
	s.deps.Metrics.RecordChat(string(c))

	return &ChatReply{Reply: reply, Context: c, SessionID: in.SessionID, Timestamp: conv.CreatedAt}, nil
}

// route picks the deterministic support handlers when they can answer better than the model.
func (s *ChatService) route(ctx context.Context, msg string, c models.ChatContext, history []models.ChatTurn) string {
	if s.tickets != nil {
		switch c {
		case models.ContextOrderSupport:
			if !s.gateway.Configured() || (s.tickets.orders != nil && ExtractOrderNumber(msg) != "") {
				return s.tickets.HandleOrderSupport(ctx, msg)
			}
		case models.ContextSiteProblem:
			if !s.gateway.Configured() {
				return s.tickets.HandleSiteProblem(ctx, msg)
			}
		}
	}
	return s.gateway.Complete(ctx, msg, c, history)
}

// UploadImage stores the image when an object store is configured and describes it.
func (s *ChatService) UploadImage(ctx context.Context, data []byte, mimeType string) (models.ImageAnalysis, error) {
	if len(data) == 0 {
		return models.ImageAnalysis{}, apperr.Validation("image is required")
	}
	var imageURL string
	if s.uploads != nil {
		url, err := s.uploads.Put(ctx, utils.ObjectKey("chat-images", utils.ExtensionFor(mimeType)), mimeType, data)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "chat image not stored", "store", s.uploads.Name(), "error", err)
		} else {
			imageURL = url
		}
	}
	analysis := s.gateway.AnalyzeImage(ctx, data, mimeType)
	analysis.ImageURL = imageURL
	return analysis, nil
}

// SearchProducts runs the catalog matcher. Text searches need a query.
func (s *ChatService) SearchProducts(ctx context.Context, query, typ string, limit int) ([]models.Product, error) {
	t := catalog.SearchType(typ)
	if t == "" {
		t = catalog.SearchText
	}
	if t != catalog.SearchText && t != catalog.SearchImage {
		return nil, apperr.Validation("invalid search type %q", typ)
	}
	query = strings.TrimSpace(query)
	if t == catalog.SearchText && query == "" {
		return nil, apperr.Validation("query is required")
	}
	return s.matcher.Search(ctx, query, t, limit), nil
}

func (s *ChatService) SuggestCategories(ctx context.Context, query string) []models.Category {
	return s.classifier.Suggest(ctx, query)
}

func (s *ChatService) Conversations(ctx context.Context, f store.ConversationFilter, p store.Page) ([]models.Conversation, int64, error) {
	return s.deps.Store.Conversations().List(ctx, f, p)
}

// ConversationStats summarises conversations of the last days (default 30).
func (s *ChatService) ConversationStats(ctx context.Context, days int) (*models.ConversationStats, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := collect(func(f store.ConversationFilter, p store.Page) ([]models.Conversation, int64, error) {
		return s.deps.Store.Conversations().List(ctx, f, p)
	}, store.ConversationFilter{CreatedAfter: s.deps.Now().AddDate(0, 0, -days)})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	st := &models.ConversationStats{Days: days, ByContext: []models.ContextCount{}}
	users := map[int64]bool{}
	sessions := map[string]bool{}
	byContext := map[models.ChatContext]int64{}
	for _, c := range rows {
		st.Total++
		if c.UserID > 0 {
			users[c.UserID] = true
		}
		if c.SessionID != "" {
			sessions[c.SessionID] = true
		}
		byContext[c.Context]++
	}
	st.UniqueUsers = int64(len(users))
	st.UniqueSessions = int64(len(sessions))
	for c, n := range byContext {
		st.ByContext = append(st.ByContext, models.ContextCount{Context: c, Count: n})
	}
	slices.SortFunc(st.ByContext, func(a, b models.ContextCount) int {
		if a.Count != b.Count {
			return int(b.Count - a.Count)
		}
		return strings.Compare(string(a.Context), string(b.Context))
	})
	return st, nil
}

// PurgeConversations deletes conversations past the retention window.
func (s *ChatService) PurgeConversations(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	n, err := s.deps.Store.Conversations().DeleteOlderThan(ctx, s.deps.Now().AddDate(0, 0, -s.cfg.RetentionDays))
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	return n, nil
}
