package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/dkeye/roomchat/internal/domain"
)

// CreateMessage durably stores a message and returns it with its author.
func (s *Store) CreateMessage(ctx context.Context, room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {
	if _, err := s.GetRoom(ctx, room); err != nil {
		return domain.Message{}, err
	}
	m := Message{RoomID: uint(room), UserID: uint(author), Content: content}
	db := s.db.WithContext(ctx)
	if err := db.Create(&m).Error; err != nil {
		return domain.Message{}, fmt.Errorf("failed to create message: %w", err)
	}
	if err := db.Preload("User").First(&m, m.ID).Error; err != nil {
		return domain.Message{}, fmt.Errorf("failed to load message %d: %w", m.ID, err)
	}
	return m.toDomain(), nil
}

// ListMessages returns every message of room ascending by creation time.
func (s *Store) ListMessages(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", uint(room)).
		Order("created_at, id").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return toDomainMessages(msgs), nil
}

// RecentMessages returns up to limit latest messages of room, oldest first.
func (s *Store) RecentMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", uint(room)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	slices.Reverse(msgs)
	return toDomainMessages(msgs), nil
}

func toDomainMessages(msgs []Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toDomain())
	}
	return out
}
