package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"stockstudio/internal/meta"
)

const geminiModel = "gemini-3-flash-preview"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50 // $0.50 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 3.00 // $3.00 per 1M output tokens (including thinking)
)

var geminiPrompt = strings.TrimSpace(dedent.Dedent(`
	Analyze this image for a microstock photography professional (Shutterstock, Adobe Stock).
	Generate a concise SEO-optimized title (max 80 chars), a detailed description (max 200 chars),
	and exactly 50 relevant keywords/tags.
	Ensure keywords are ordered by relevance.
`))

// metadataSchema is the structured response schema the model must satisfy.
var metadataSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {
			Type:        genai.TypeString,
			Description: "A professional SEO title for microstock.",
		},
		"description": {
			Type:        genai.TypeString,
			Description: "A descriptive sentence about the image content.",
		},
		"keywords": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "An array of exactly 50 keywords ordered by relevance.",
		},
	},
	Required: []string{"title", "description", "keywords"},
}

// GeminiGenerator generates stock metadata using Google's Gemini API.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a Gemini-backed generator. The API key is
// passed in explicitly; this package never reads ambient configuration.
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// Generate implements the Generator interface using Gemini. The image is
// sent inline with a fixed task prompt, and the response is constrained to
// the metadata JSON schema.
func (g *GeminiGenerator) Generate(ctx context.Context, imageData []byte, mimeType string) (*Result, error) {
	if len(imageData) == 0 {
		return nil, generationError("no image data provided", nil)
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
		genai.NewPartFromText(geminiPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   metadataSchema,
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, generationError("remote call failed", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, generationError("no response from model", nil)
	}

	record, err := parseRecord(result.Text())
	if err != nil {
		return nil, err
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens)
	}

	log.Info().
		Str("model", geminiModel).
		Str("mimeType", mimeType).
		Int("keywords", len(record.Keywords)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("metadata generation call")

	return &Result{Record: record, Usage: usage}, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * geminiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * geminiOutputPricePerMillion
	return inputCost + outputCost
}

// parseRecord parses the model's response text into a metadata record.
// Markdown code fences are stripped in case the model wraps the JSON
// despite the response schema.
func parseRecord(text string) (*meta.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, generationError("empty response text", nil)
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var record meta.Record
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, generationError("failed to parse response JSON", err)
	}
	if record.Title == "" || record.Description == "" || record.Keywords == nil {
		return nil, generationError("response missing required fields", nil)
	}

	return &record, nil
}
