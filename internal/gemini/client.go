package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/assistant"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Client calls Gemini through the Gen AI SDK.
type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini API client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewClient: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}

	return &Client{client: client}, nil
}

// GenerateContent sends parts as a single user turn and returns the text reply.
func (c *Client) GenerateContent(ctx context.Context, model string, parts []assistant.Part) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, toContents(parts), nil)
	if err != nil {
		return "", fmt.Errorf("GenerateContent: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GenerateContent: %w", ErrEmptyResponse)
	}
	return text, nil
}

// toContents maps assistant parts onto one user Content, preserving order.
func toContents(parts []assistant.Part) []*genai.Content {
	gparts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Blob != nil {
			gparts = append(gparts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: p.Blob.MIMEType,
					Data:     p.Blob.Data,
				},
			})
			continue
		}
		gparts = append(gparts, &genai.Part{Text: p.Text})
	}

	return []*genai.Content{
		{
			Role:  "user",
			Parts: gparts,
		},
	}
}

var _ assistant.Generator = (*Client)(nil)
