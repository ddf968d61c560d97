package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator talks to an OpenAI-compatible chat-completions endpoint.
type HTTPGenerator struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPGenerator(url, apiKey, model string) *HTTPGenerator {
	if strings.TrimSpace(url) == "" {
		url = "https://api.openai.com/v1/chat/completions"
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPGenerator{
		url:    strings.TrimSpace(url),
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *HTTPGenerator) Reply(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, len(req.History)*2+3)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	if len(req.ResearchContext) > 0 {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: "Here is some relevant research context:\n" + strings.Join(req.ResearchContext, "\n\n"),
		})
	}
	for _, ex := range req.History {
		messages = append(messages, chatMessage{Role: "user", Content: ex.User})
		messages = append(messages, chatMessage{Role: "assistant", Content: ex.Assistant})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserText})

	payload, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("brain http status %d: %s", res.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("brain returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
