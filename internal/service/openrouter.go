package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterExtractor asks a vision model behind OpenRouter's chat
// completions API to read receipts.
type OpenRouterExtractor struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	now        func() time.Time
}

func NewOpenRouterExtractor(apiKey, model string, timeout time.Duration) *OpenRouterExtractor {
	return &OpenRouterExtractor{
		apiKey:     apiKey,
		baseURL:    openRouterBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (e *OpenRouterExtractor) Extract(ctx context.Context, req ExtractionRequest) ([]domain.Transaction, error) {
	messages := e.buildMessages(req)

	resp, err := e.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	return decodeTransactions(resp.Choices[0].Message.Content, req)
}

func (e *OpenRouterExtractor) buildMessages(req ExtractionRequest) []ChatMessage {
	messages := []ChatMessage{{
		Role:    "system",
		Content: buildPrompt(req, e.now().Format("2006-01-02")),
	}}

	for _, m := range req.History {
		text := historyText(m)
		if text == "" {
			continue
		}
		role := string(m.Role)
		if m.Role == domain.RoleSystem {
			role = "user"
			text = "[note] " + text
		}
		messages = append(messages, ChatMessage{Role: role, Content: text})
	}

	parts := []ContentPart{{Type: "text", Text: closingInstruction(len(req.Images))}}
	for _, img := range req.Images {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: imageDataURL(img)},
		})
	}
	return append(messages, ChatMessage{Role: "user", Content: parts})
}

func (e *OpenRouterExtractor) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	chatReq := ChatRequest{
		Model:    e.model,
		Messages: messages,
	}
	// Gemini models reject temperature through OpenRouter
	if !strings.Contains(strings.ToLower(e.model), "gemini") {
		t := 0.0
		chatReq.Temperature = &t
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited by OpenRouter (429)")
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("OpenRouter service unavailable (503)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("OpenRouter error (%d): %s", resp.StatusCode, errorBodyText(resp.Header.Get("Content-Type"), body))
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("OpenRouter error (%d): %s", resp.StatusCode, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenRouter error (%d)", resp.StatusCode)
	}

	return &chatResp, nil
}

func imageDataURL(img []byte) string {
	return "data:" + imageMIMEType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}

// imageMIMEType sniffs the photo format; Telegram photos are JPEG.
func imageMIMEType(img []byte) string {
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}
