package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/api/option"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/config"
)

// NewModel creates the configured provider. It returns a configuration error when
// the provider needs a key and none is set; callers then run the gateway without a model.
func NewModel(ctx context.Context, cfg config.Config) (Model, error) {
	if cfg.AIProvider != config.ProviderOllama && strings.TrimSpace(cfg.AIAPIKey) == "" {
		return nil, apperr.Configuration("AI_API_KEY is required for provider %s", cfg.AIProvider)
	}
	vision := VisionCapable(cfg.AIModel, cfg.AIVision)

	var (
		llm llms.Model
		err error
	)
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.AIAPIKey), openai.WithModel(cfg.AIModel)}
		if cfg.AIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.AIBaseURL))
		}
		llm, err = openai.New(opts...)
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(cfg.AIAPIKey), anthropic.WithModel(cfg.AIModel)}
		if cfg.AIBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.AIBaseURL))
		}
		llm, err = anthropic.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.AIModel)}
		if cfg.AIBaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.AIBaseURL))
		}
		llm, err = ollama.New(opts...)
	case config.ProviderGemini:
		return newGeminiModel(ctx, cfg.AIAPIKey, cfg.AIModel, cfg.AIMaxTokens, vision)
	default:
		return nil, apperr.Configuration("unsupported AI provider: %s", cfg.AIProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.AIProvider, err)
	}
	return &langchainModel{llm: llm, name: cfg.AIModel, maxTokens: cfg.AIMaxTokens, vision: vision}, nil
}

// langchainModel adapts any langchaingo chat model.
type langchainModel struct {
	llm       llms.Model
	name      string
	maxTokens int
	vision    bool
}

func (m *langchainModel) Name() string         { return m.name }
func (m *langchainModel) SupportsVision() bool { return m.vision }

func (m *langchainModel) Complete(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatType(msg.Role), msg.Content))
	}
	return m.generate(ctx, content, 0.7)
}

func (m *langchainModel) DescribeImage(ctx context.Context, mimeType string, data []byte, prompt string) (string, error) {
	content := []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt), llms.BinaryPart(mimeType, data)},
	}}
	return m.generate(ctx, content, 0.3)
}

func (m *langchainModel) generate(ctx context.Context, content []llms.MessageContent, temperature float64) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if m.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.maxTokens))
	}
	resp, err := m.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Content, nil
}

func chatType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// geminiModel talks to Gemini through the generative-ai-go client.
type geminiModel struct {
	client    *genai.Client
	name      string
	maxTokens int
	vision    bool
}

func newGeminiModel(ctx context.Context, apiKey, name string, maxTokens int, vision bool) (*geminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if name == "" {
		name = "gemini-2.0-flash-001"
	}
	return &geminiModel{client: client, name: name, maxTokens: maxTokens, vision: vision}, nil
}

func (m *geminiModel) Name() string         { return m.name }
func (m *geminiModel) SupportsVision() bool { return m.vision }
func (m *geminiModel) Close() error         { return m.client.Close() }

func (m *geminiModel) model(temperature float32) *genai.GenerativeModel {
	gm := m.client.GenerativeModel(m.name)
	gm.SetTemperature(temperature)
	if m.maxTokens > 0 {
		gm.SetMaxOutputTokens(int32(m.maxTokens))
	}
	return gm
}

func (m *geminiModel) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages")
	}
	gm := m.model(0.7)
	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case RoleSystem:
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	cs := gm.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", err
	}
	return geminiText(resp)
}

func (m *geminiModel) DescribeImage(ctx context.Context, mimeType string, data []byte, prompt string) (string, error) {
	resp, err := m.model(0.3).GenerateContent(ctx, genai.Text(prompt), genai.Blob{MIMEType: mimeType, Data: data})
	if err != nil {
		return "", err
	}
	return geminiText(resp)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
