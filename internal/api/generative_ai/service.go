package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/config"
)

const defaultModel = "gemini-2.0-flash"

// ErrNotConfigured is returned when no Gemini API key is available.
var ErrNotConfigured = errors.New("gemini API key is not configured")

type AIClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewAIClient builds a Gemini client. The key comes from the config, falling back
// to GOOGLE_GEMINI_API_KEY.
func NewAIClient(ctx context.Context, cfg config.GenerationConfig) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	if apiKey == "" {
		span.SetStatus(codes.Error, "API key not set")
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// GenerateJSON asks the model for a JSON document and returns it with any
// markdown code fence removed.
func (ai *AIClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateJSON", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](ai.temperature),
		ResponseMIMEType: "application/json",
	}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := CleanJSON(result.Text())
	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return text, nil
}

// CleanJSON strips a ```json fence around a model response.
func CleanJSON(txt string) string {
	s := strings.TrimSpace(txt)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
