package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"docrag/config"
	"docrag/internal/domain"
	"docrag/internal/logger"
)

const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"

	DefaultProvider = ProviderOpenAI
)

var defaultAPIKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// ResolveProvider normalizes a provider name. Empty or unknown names resolve
// to DefaultProvider and report ok=false.
func ResolveProvider(name string) (provider string, ok bool) {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic:
		return p, true
	default:
		return DefaultProvider, false
	}
}

// LangChainChat adapts a langchaingo model to port.ChatModel. Completions
// always run at temperature 0.
type LangChainChat struct {
	model llms.Model
	name  string
}

func NewLangChainChat(model llms.Model, name string) *LangChainChat {
	return &LangChainChat{model: model, name: name}
}

// NewChatModel builds the chat backend named by cfg.Provider.
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (*LangChainChat, error) {
	provider, ok := ResolveProvider(cfg.Provider)
	if !ok {
		logger.FromContext(ctx).Warn("Unknown LLM provider, using default",
			"requested", cfg.Provider, "provider", provider)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm model is required")
	}

	var (
		model llms.Model
		err   error
	)
	switch provider {
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case ProviderAnthropic:
		var key string
		if key, err = apiKey(cfg, provider); err == nil {
			opts := []anthropic.Option{anthropic.WithModel(cfg.Model), anthropic.WithToken(key)}
			if cfg.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
			}
			model, err = anthropic.New(opts...)
		}
	default:
		var key string
		if key, err = apiKey(cfg, provider); err == nil {
			opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(key)}
			if cfg.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
			}
			model, err = openai.New(opts...)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s chat model: %w", provider, err)
	}

	return NewLangChainChat(model, provider+"/"+cfg.Model), nil
}

func apiKey(cfg config.LLMConfig, provider string) (string, error) {
	env := cfg.APIKeyEnv
	if env == "" || (provider != ProviderOpenAI && env == defaultAPIKeyEnv[ProviderOpenAI]) {
		env = defaultAPIKeyEnv[provider]
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("API key not found in environment variable: %s", env)
	}
	return key, nil
}

// Complete sends messages in order and returns the first choice's content.
func (c *LangChainChat) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(mapRole(m.Role), m.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", c.name)
	}
	return resp.Choices[0].Content, nil
}

func (c *LangChainChat) ModelName() string {
	return c.name
}

func mapRole(role domain.Role) schema.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}
