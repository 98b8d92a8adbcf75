// Package assistant produces replies for messages that mention the assistant.
package assistant

//go:generate mockgen -source=generator.go -destination=generator_mock.go -package=assistant

import (
	"context"
	"strings"

	"github.com/dkeye/roomchat/internal/domain"
)

// Generator produces a reply to query given the recent room history.
type Generator interface {
	Generate(ctx context.Context, history []domain.Message, query string) (string, error)
}

// Mentions reports whether content addresses the assistant.
func Mentions(content string) bool {
	return strings.Contains(strings.ToLower(content), strings.ToLower(domain.AssistantName))
}

// Query strips the mention so only the question reaches the model.
func Query(content string) string {
	lower := strings.ToLower(content)
	tag := strings.ToLower(domain.AssistantName)
	if i := strings.Index(lower, tag); i >= 0 {
		content = content[:i] + content[i+len(tag):]
	}
	return strings.TrimSpace(content)
}
