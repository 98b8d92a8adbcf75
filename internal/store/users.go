package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/roomchat/internal/domain"
	"gorm.io/gorm"
)

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// UpsertUser creates the user for email or refreshes its profile fields.
func (s *Store) UpsertUser(ctx context.Context, email, name, photoURL string) (domain.User, error) {
	email = normEmail(email)
	if email == "" {
		return domain.User{}, fmt.Errorf("upsert user: %w: empty email", ErrInvalid)
	}

	var u User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			u = User{Email: email, Name: name, PhotoURL: photoURL}
			return tx.Create(&u).Error
		case err != nil:
			return err
		}
		u.Name = name
		u.PhotoURL = photoURL
		return tx.Model(&u).Select("Name", "PhotoURL").Updates(&u).Error
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, uint(id)).Error; err != nil {
		return domain.User{}, fmt.Errorf("failed to get user %d: %w", id, notFound(err))
	}
	return u.toDomain(), nil
}

// EnsureAssistant returns the reserved account that authors assistant
// replies, creating it on first use.
func (s *Store) EnsureAssistant(ctx context.Context) (domain.User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where(User{Email: domain.AssistantEmail}).
		Attrs(User{Name: domain.AssistantName}).
		FirstOrCreate(&u).Error
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to ensure assistant: %w", err)
	}
	return u.toDomain(), nil
}
