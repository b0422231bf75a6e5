// Package llm wraps the completion service behind a text-in/text-out API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jasperlabs/jasper-go/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Tier selects the completion model quality/cost trade-off. Handlers pick a
// tier; the engine never depends on concrete model names.
type Tier int

const (
	// TierFast is the cheaper, lower-latency model.
	TierFast Tier = iota
	// TierQuality is the higher-quality model used for widget generation.
	TierQuality
)

// Chat roles on the completion transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of the conversation transcript sent to the
// completion service.
type ChatMessage struct {
	Role    string
	Content string
}

// Completion is the result of one completion call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// ErrFatalAPI marks completion-service errors that won't resolve by retrying:
// billing, quota and authentication failures.
var ErrFatalAPI = errors.New("fatal API error")

// Model wraps langchaingo LLMs for the two configured tiers.
type Model struct {
	fast        llms.Model
	quality     llms.Model
	fastName    string
	qualityName string
}

// NewModel creates the tiered completion models based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	fast, err := newProviderModel(ctx, cfg, cfg.FastModel)
	if err != nil {
		return nil, fmt.Errorf("create fast model: %w", err)
	}
	quality, err := newProviderModel(ctx, cfg, cfg.QualityModel)
	if err != nil {
		return nil, fmt.Errorf("create quality model: %w", err)
	}

	return &Model{
		fast:        fast,
		quality:     quality,
		fastName:    cfg.FastModel,
		qualityName: cfg.QualityModel,
	}, nil
}

func newProviderModel(ctx context.Context, cfg config.Config, modelName string) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err := bedrock.New(
			bedrock.WithModel(modelName),
			bedrock.WithClient(client),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// ModelName returns the configured model name for a tier.
func (m *Model) ModelName(tier Tier) string {
	if tier == TierQuality {
		return m.qualityName
	}
	return m.fastName
}

// Complete sends the transcript to the selected tier and returns the
// generated text with token usage where the provider reports it.
func (m *Model) Complete(ctx context.Context, tier Tier, messages []ChatMessage) (*Completion, error) {
	model := m.fast
	if tier == TierQuality {
		model = m.quality
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	response, err := model.GenerateContent(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	completion := &Completion{Text: choice.Content}
	if choice.GenerationInfo != nil {
		completion.InputTokens = intFromInfo(choice.GenerationInfo, "PromptTokens", "input_tokens")
		completion.OutputTokens = intFromInfo(choice.GenerationInfo, "CompletionTokens", "output_tokens")
	}
	return completion, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// intFromInfo reads the first matching key from provider generation info.
// Providers disagree on key names and numeric types.
func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

// fatalPatterns identify API errors that indicate account-level problems
// rather than transient failures.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err is an account-level API failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// wrapFatalError wraps account-level API failures with ErrFatalAPI so callers
// can distinguish them from transient errors with errors.Is.
func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %v", ErrFatalAPI, err)
	}
	return err
}
