package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/hkim-dev/autopress/internal/batch"
)

// KeySource resolves the Gemini API key at call time so a key saved through
// the settings API takes effect without a restart.
type KeySource interface {
	Get(ctx context.Context, key string) (string, error)
}

type GeminiProvider struct {
	keys        KeySource
	settingsKey string
	fallbackKey string
	logger      *slog.Logger
}

func NewGeminiProvider(keys KeySource, settingsKey, fallbackKey string, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		keys:        keys,
		settingsKey: settingsKey,
		fallbackKey: fallbackKey,
		logger:      logger,
	}
}

func (p *GeminiProvider) client(ctx context.Context) (*genai.Client, error) {
	apiKey := ""
	if p.keys != nil {
		k, err := p.keys.Get(ctx, p.settingsKey)
		if err != nil {
			return nil, fmt.Errorf("resolve api key: %w", err)
		}
		apiKey = k
	}
	if apiKey == "" {
		apiKey = p.fallbackKey
	}
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}

	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *GeminiProvider) GeneratePost(ctx context.Context, record batch.Record, instructions, model string) (*PostContent, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(record, instructions)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("gemini generate: empty response")
	}

	content, err := ParsePostContent(text.String())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("generated post content",
		"model", model,
		"title_len", len(content.Title),
		"body_len", len(content.BodyHTML),
	)
	return content, nil
}

func (p *GeminiProvider) GenerateImage(ctx context.Context, prompt, model string) ([]byte, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("gemini image: empty response")
	}

	img := resp.GeneratedImages[0].Image.ImageBytes
	if len(img) == 0 {
		return nil, errors.New("gemini image: no image bytes")
	}
	return img, nil
}
