package store

import (
	"time"

	"github.com/dkeye/roomchat/internal/domain"
)

type User struct {
	ID        uint   `gorm:"primarykey"`
	Email     string `gorm:"size:255;uniqueIndex;not null"`
	Name      string `gorm:"size:255"`
	PhotoURL  string `gorm:"size:1024"`
	CreatedAt time.Time
}

func (User) TableName() string { return "users" }

type Room struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:100;not null"`
	CreatedAt time.Time
}

func (Room) TableName() string { return "rooms" }

// Membership is the persistent user-room association. It is not presence.
type Membership struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	RoomID    uint `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	Room      Room `gorm:"foreignKey:RoomID"`
	User      User `gorm:"foreignKey:UserID"`
}

func (Membership) TableName() string { return "memberships" }

type Message struct {
	ID        uint      `gorm:"primarykey"`
	RoomID    uint      `gorm:"index;not null"`
	UserID    uint      `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
	User      User      `gorm:"foreignKey:UserID"`
}

func (Message) TableName() string { return "messages" }

func (u User) toDomain() domain.User {
	return domain.User{
		ID:        domain.UserID(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
	}
}

func (r Room) toDomain() domain.Room {
	return domain.Room{ID: domain.RoomID(r.ID), Name: r.Name, CreatedAt: r.CreatedAt}
}

func (m Message) toDomain() domain.Message {
	return domain.Message{
		ID:        int64(m.ID),
		RoomID:    domain.RoomID(m.RoomID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		User:      m.User.toDomain().Identity(),
	}
}
