package store

import (
	"context"
	"fmt"

	"github.com/dkeye/roomchat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []Room
	if err := s.db.WithContext(ctx).Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var r Room
	if err := s.db.WithContext(ctx).First(&r, uint(id)).Error; err != nil {
		return domain.Room{}, fmt.Errorf("failed to get room %d: %w", id, notFound(err))
	}
	return r.toDomain(), nil
}

// ListUserRooms returns the rooms user is a member of, oldest membership first.
func (s *Store) ListUserRooms(ctx context.Context, user domain.UserID) ([]domain.Room, error) {
	var memberships []Membership
	err := s.db.WithContext(ctx).
		Preload("Room").
		Where("user_id = ?", uint(user)).
		Order("created_at, room_id").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms of user %d: %w", user, err)
	}
	out := make([]domain.Room, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, m.Room.toDomain())
	}
	return out, nil
}

// CreateRoom creates the room and makes creator its first member.
func (s *Store) CreateRoom(ctx context.Context, name string, creator domain.UserID) (domain.Room, error) {
	name, err := domain.NormalizeRoomName(name)
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w: %w", ErrInvalid, err)
	}
	var r Room
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r = Room{Name: name}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return tx.Create(&Membership{UserID: uint(creator), RoomID: r.ID}).Error
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to create room: %w", err)
	}
	return r.toDomain(), nil
}

// JoinRoom records membership of user in room. Joining twice is a no-op.
func (s *Store) JoinRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	if _, err := s.GetRoom(ctx, room); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Membership{UserID: uint(user), RoomID: uint(room)}).Error
	if err != nil {
		return fmt.Errorf("failed to join room %d: %w", room, err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, room domain.RoomID, user domain.UserID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Membership{}).
		Where("room_id = ? AND user_id = ?", uint(room), uint(user)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// RoomUsers returns the members of room in joining order.
func (s *Store) RoomUsers(ctx context.Context, room domain.RoomID) ([]domain.User, error) {
	if _, err := s.GetRoom(ctx, room); err != nil {
		return nil, err
	}
	var users []User
	err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.room_id = ?", uint(room)).
		Order("memberships.created_at, users.id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users of room %d: %w", room, err)
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.toDomain())
	}
	return out, nil
}
