package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/galleykit/galley/internal/types"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-2.5-pro"
)

// GeminiConfig holds configuration for the Gemini extraction provider.
type GeminiConfig struct {
	APIKey string
	Model  string // "gemini-2.5-pro" (default)
}

// GeminiExtractor extracts recipe pages using Google Gemini.
type GeminiExtractor struct {
	apiKey    string
	modelName string
	client    *genai.Client
	model     *genai.GenerativeModel
}

// NewGeminiExtractor creates a Gemini-backed extraction provider.
func NewGeminiExtractor(cfg GeminiConfig) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiExtractor{
		apiKey:    cfg.APIKey,
		modelName: cfg.Model,
		client:    client,
		model:     client.GenerativeModel(cfg.Model),
	}, nil
}

// Name returns the provider identifier.
func (e *GeminiExtractor) Name() string {
	return GeminiName
}

// Model returns the configured model.
func (e *GeminiExtractor) Model() string {
	return e.modelName
}

// Extract sends the page photograph to Gemini and decodes the
// structured result.
func (e *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (types.ExtractedPage, error) {
	if len(image) == 0 {
		return types.ExtractedPage{}, fmt.Errorf("image is required")
	}

	// genai.ImageData expects the format suffix ("jpeg"), not the full
	// MIME type ("image/jpeg").
	parts := []genai.Part{
		genai.ImageData(imageFormat(mimeType), image),
		genai.Text(extractionPrompt),
	}

	resp, err := e.model.GenerateContent(ctx, parts...)
	if err != nil {
		return types.ExtractedPage{}, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return types.ExtractedPage{}, fmt.Errorf("no response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}

	page, err := decodePage(out.String())
	if err != nil {
		return types.ExtractedPage{}, fmt.Errorf("gemini extraction produced invalid output: %w", err)
	}
	return page, nil
}

func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
	if format == "" {
		return "jpeg"
	}
	return format
}

// Close releases the underlying client connection.
func (e *GeminiExtractor) Close() error {
	return e.client.Close()
}

var _ Provider = (*GeminiExtractor)(nil)
