package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hkim-dev/autopress/internal/batch"
)

// PostContent is the structured result every text model must produce.
// ImagePrompt is optional; Title and BodyHTML are not.
type PostContent struct {
	Title       string `json:"title"`
	BodyHTML    string `json:"content_html"`
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// Provider generates post content and images. Implementations make exactly
// one remote call per method and do not retry; the tick processor owns
// failure handling.
type Provider interface {
	GeneratePost(ctx context.Context, record batch.Record, instructions, model string) (*PostContent, error)
	GenerateImage(ctx context.Context, prompt, model string) ([]byte, error)
}

var errMalformedContent = errors.New("model response missing title or content_html")

// BuildPrompt assembles the single-turn generation prompt: operator
// instructions, the input record as JSON, and the required output shape.
func BuildPrompt(record batch.Record, instructions string) (string, error) {
	data, err := record.Encode()
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nInput Data:\n")
	b.WriteString(data)
	b.WriteString("\n\nOutput Format (JSON ONLY):\n")
	b.WriteString(`{"title": "...", "content_html": "...", "image_prompt": "..."}`)
	return b.String(), nil
}

// ParsePostContent decodes a model reply into PostContent. Models routinely
// wrap JSON in markdown fences despite instructions, so fences are stripped
// first. Anything that does not decode to a complete PostContent is an error.
func ParsePostContent(raw string) (*PostContent, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var content PostContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if strings.TrimSpace(content.Title) == "" || strings.TrimSpace(content.BodyHTML) == "" {
		return nil, errMalformedContent
	}
	return &content, nil
}
