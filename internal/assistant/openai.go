package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/domain"
)

const systemPrompt = "You are a helpful assistant participating in a group chat room. Answer briefly."

var ErrEmptyReply = errors.New("assistant returned an empty reply")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIGenerator calls an OpenAI compatible chat completions endpoint.
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIGenerator returns nil when no API key is configured.
func NewOpenAIGenerator(cfg config.AssistantConfig) *OpenAIGenerator {
	if cfg.APIKey == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGenerator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, history []domain.Message, query string) (string, error) {
	body, err := json.Marshal(chatRequest{Model: g.model, Messages: buildPrompt(history, query)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat completion: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode chat completion (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("chat completion status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func buildPrompt(history []domain.Message, query string) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		if m.User.Name == domain.AssistantName {
			msgs = append(msgs, chatMessage{Role: "assistant", Content: m.Content})
			continue
		}
		msgs = append(msgs, chatMessage{Role: "user", Content: m.User.Name + ": " + m.Content})
	}
	return append(msgs, chatMessage{Role: "user", Content: query})
}
