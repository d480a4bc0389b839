package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/metrics"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/utils"
)

const maxSuggestedCategories = 5

type Options struct {
	Timeout         time.Duration
	MaxHistoryTurns int
}

// Gateway is safe for concurrent use. A nil model means no credential is configured.
type Gateway struct {
	model   Model
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	pick    func(n int) int
}

func NewGateway(model Model, opts Options, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{model: model, opts: opts, logger: logger, metrics: m, pick: rand.IntN}
}

func (g *Gateway) Configured() bool { return g.model != nil }

// ModelName is empty when no model is configured.
func (g *Gateway) ModelName() string {
	if g.model == nil {
		return ""
	}
	return g.model.Name()
}

// Complete answers message in context c. It never returns an empty string.
func (g *Gateway) Complete(ctx context.Context, message string, c models.ChatContext, history []models.ChatTurn) string {
	answer, err := g.call(ctx, "complete", func(ctx context.Context) (string, error) {
		return g.model.Complete(ctx, buildMessages(message, c, history, g.opts.MaxHistoryTurns))
	})
	if err != nil {
		g.fallback(ctx, "complete", err)
		return g.FallbackReply(c)
	}
	return answer
}

// FallbackReply picks one canned reply for c.
func (g *Gateway) FallbackReply(c models.ChatContext) string {
	pool := FallbackReplies(c)
	return pool[g.pick(len(pool))]
}

// AnalyzeImage describes an uploaded product image. Non-vision models are not contacted.
func (g *Gateway) AnalyzeImage(ctx context.Context, data []byte, mimeType string) models.ImageAnalysis {
	if g.model != nil && !g.model.SupportsVision() {
		g.metrics.RecordAIFallback("analyze_image", "no_vision")
		return fallbackImageAnalysis()
	}
	text, err := g.call(ctx, "analyze_image", func(ctx context.Context) (string, error) {
		return g.model.DescribeImage(ctx, mimeType, data, imagePrompt)
	})
	if err != nil {
		g.fallback(ctx, "analyze_image", err)
		return fallbackImageAnalysis()
	}
	return parseImageAnalysis(text)
}

// SuggestCategories returns at most five categories, falling back to the keyword table.
func (g *Gateway) SuggestCategories(ctx context.Context, query string) []models.Category {
	text, err := g.call(ctx, "suggest_categories", func(ctx context.Context) (string, error) {
		return g.model.Complete(ctx, []Message{
			{Role: RoleSystem, Content: categorySystemPrompt},
			{Role: RoleUser, Content: "Suggest product categories for: " + query},
		})
	})
	if err == nil {
		var cats []models.Category
		cats, err = parseCategories(text)
		if err == nil {
			return cats
		}
	}
	g.fallback(ctx, "suggest_categories", err)
	return FallbackCategories(query)
}

// Ping issues a minimal completion. It fails with a configuration error when no model is set.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.call(ctx, "ping", func(ctx context.Context) (string, error) {
		return g.model.Complete(ctx, []Message{{Role: RoleUser, Content: pingPrompt}})
	})
	return err
}

// Close releases the model client when it holds one.
func (g *Gateway) Close() error {
	if c, ok := g.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) (string, error)) (text string, err error) {
	if g.model == nil {
		return "", apperr.Configuration("no AI credential configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			text, err = "", apperr.Transient(op, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	text, err = fn(ctx)
	g.metrics.RecordAICall(op, time.Since(start))
	if err != nil {
		return "", apperr.Transient(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Transient(op, errors.New("empty answer"))
	}
	return text, nil
}

func (g *Gateway) fallback(ctx context.Context, op string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		reason = "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, errMalformed):
		reason = "malformed"
	}
	g.metrics.RecordAIFallback(op, reason)
	if reason != "not_configured" {
		g.logger.WarnContext(ctx, "ai call failed, using fallback", "op", op, "reason", reason, "error", err)
	}
}

var errMalformed = errors.New("malformed model answer")

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

func parseCategories(text string) ([]models.Category, error) {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if i, j := strings.Index(text, "["), strings.LastIndex(text, "]"); i >= 0 && j > i {
		text = text[i : j+1]
	}
	var raw []models.Category
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	out := make([]models.Category, 0, maxSuggestedCategories)
	seen := map[string]bool{}
	for _, c := range raw {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Slug == "" {
			c.Slug = utils.GenerateSlug(c.Name)
		}
		if seen[c.Slug] {
			continue
		}
		seen[c.Slug] = true
		out = append(out, c)
		if len(out) == maxSuggestedCategories {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no categories", errMalformed)
	}
	return out, nil
}

var categoriesLineRe = regexp.MustCompile(`(?im)categor(?:y|ies)\s*:\s*([^\n.]+)`)

func parseImageAnalysis(text string) models.ImageAnalysis {
	out := models.ImageAnalysis{Description: text, Categories: []models.Category{}, Confidence: 0.8}
	seen := map[string]bool{}
	for _, m := range categoriesLineRe.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.Trim(strings.TrimSpace(part), "*-_\"'")
			slug := utils.GenerateSlug(name)
			if name == "" || slug == "" || seen[slug] {
				continue
			}
			seen[slug] = true
			out.Categories = append(out.Categories, models.Category{Name: name, Slug: slug})
			if len(out.Categories) == maxSuggestedCategories {
				return out
			}
		}
	}
	return out
}
