package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/galleykit/galley/internal/types"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI extraction provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-4o" (default)
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIExtractor extracts recipe pages using the official OpenAI SDK.
// Structured output is enforced by prompt plus local validation with a
// bounded repair loop rather than native response formats, which keeps
// behavior uniform across models.
type OpenAIExtractor struct {
	apiKey string
	model  string
	client openai.Client
}

// NewOpenAIExtractor creates an OpenAI-backed extraction provider.
func NewOpenAIExtractor(cfg OpenAIConfig) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIExtractor{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (e *OpenAIExtractor) Name() string {
	return OpenAIName
}

// Model returns the configured model.
func (e *OpenAIExtractor) Model() string {
	return e.model
}

// Extract sends the page photograph to a vision-capable chat model and
// decodes the structured result.
func (e *OpenAIExtractor) Extract(ctx context.Context, image []byte, mimeType string) (types.ExtractedPage, error) {
	if len(image) == 0 {
		return types.ExtractedPage{}, fmt.Errorf("image is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(extractionPrompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}),
	}

	var lastErr error
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(e.model),
			Messages: messages,
		})
		if err != nil {
			return types.ExtractedPage{}, mapOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return types.ExtractedPage{}, fmt.Errorf("no response from openai")
		}

		content := resp.Choices[0].Message.Content
		page, decodeErr := decodePage(content)
		if decodeErr == nil {
			return page, nil
		}
		lastErr = decodeErr

		// Feed the failure back once so the model can repair its output.
		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage(repairPrompt(content, decodeErr)),
		)
	}

	return types.ExtractedPage{}, fmt.Errorf("openai extraction produced invalid output: %w", lastErr)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ Provider = (*OpenAIExtractor)(nil)
