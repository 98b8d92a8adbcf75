// Package chat posts messages: persist first, then fan out, and let the
// assistant answer when mentioned.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/app/bus"
	"github.com/dkeye/roomchat/internal/assistant"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

const MaxMessageLen = 2000

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrRateLimited    = errors.New("too many messages")
)

type Store interface {
	CreateMessage(ctx context.Context, room domain.RoomID, author domain.UserID, content string) (domain.Message, error)
	RecentMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error)
}

type Options struct {
	// Generator may be nil, which disables assistant replies.
	Generator assistant.Generator
	Assistant domain.User
	History   int
	// Fallback is posted when generation fails. Empty posts nothing.
	Fallback string
	Limiter  *app.RateLimiter[domain.UserID]
}

type Service struct {
	store Store
	pub   bus.Publisher
	opts  Options
	wg    sync.WaitGroup
}

func NewService(store Store, pub bus.Publisher, opts Options) *Service {
	if opts.History <= 0 {
		opts.History = 20
	}
	return &Service{store: store, pub: pub, opts: opts}
}

// PostMessage stores content from author in room and publishes it. The
// message is published only once the store has accepted it.
func (s *Service) PostMessage(ctx context.Context, room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return domain.Message{}, ErrEmptyMessage
	case utf8.RuneCountInString(content) > MaxMessageLen:
		return domain.Message{}, ErrMessageTooLong
	}
	if !s.opts.Limiter.Allow(author) {
		return domain.Message{}, ErrRateLimited
	}

	msg, err := s.store.CreateMessage(ctx, room, author, content)
	if err != nil {
		return domain.Message{}, fmt.Errorf("post message: %w", err)
	}
	s.publish(ctx, msg)

	if s.opts.Generator != nil && author != s.opts.Assistant.ID && assistant.Mentions(content) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reply(context.WithoutCancel(ctx), msg)
		}()
	}
	return msg, nil
}

// Wait blocks until pending assistant replies finish.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) reply(ctx context.Context, trigger domain.Message) {
	logger := log.With().Str("module", "chat").Int64("room", int64(trigger.RoomID)).Int64("trigger", trigger.ID).Logger()

	history, err := s.store.RecentMessages(ctx, trigger.RoomID, s.opts.History+1)
	if err != nil {
		logger.Warn().Err(err).Msg("assistant history unavailable")
		history = nil
	}
	history = withoutMessage(history, trigger.ID)

	content, err := s.opts.Generator.Generate(ctx, history, assistant.Query(trigger.Content))
	if err != nil {
		logger.Error().Err(err).Msg("assistant generation failed")
		if s.opts.Fallback == "" {
			return
		}
		content = s.opts.Fallback
	}

	msg, err := s.store.CreateMessage(ctx, trigger.RoomID, s.opts.Assistant.ID, content)
	if err != nil {
		logger.Error().Err(err).Msg("failed to store assistant reply")
		return
	}
	s.publish(ctx, msg)
}

func (s *Service) publish(ctx context.Context, msg domain.Message) {
	if err := s.pub.PublishMessage(ctx, msg); err != nil {
		log.Warn().Str("module", "chat").Int64("message", msg.ID).Err(err).Msg("publish failed")
	}
}

func withoutMessage(msgs []domain.Message, id int64) []domain.Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
