package service

import (
	"context"
	"fmt"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
	"google.golang.org/genai"
)

// GeminiExtractor calls the Gemini API directly through google.golang.org/genai.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model, now: time.Now}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, req ExtractionRequest) ([]domain.Transaction, error) {
	system, contents := geminiContents(req, e.now().Format("2006-01-02"))

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return decodeTransactions(resp.Text(), req)
}

// geminiContents maps the session log to Gemini turns. The photos travel
// inline with the final user turn.
func geminiContents(req ExtractionRequest, today string) (*genai.Content, []*genai.Content) {
	system := &genai.Content{
		Parts: []*genai.Part{{Text: buildPrompt(req, today)}},
	}

	var contents []*genai.Content
	for _, m := range req.History {
		text := historyText(m)
		if text == "" {
			continue
		}
		role := "user"
		switch m.Role {
		case domain.RoleAssistant:
			role = "model"
		case domain.RoleSystem:
			text = "[note] " + text
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}

	parts := []*genai.Part{{Text: closingInstruction(len(req.Images))}}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: imageMIMEType(img),
				Data:     img,
			},
		})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: parts})
	return system, contents
}
