// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MaxUsernameLen = 64
	AssistantEmail = "assistant@example.com"
	AssistantName  = "@assistant"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID int64

// User is the persisted account as the store sees it.
type User struct {
	ID        UserID    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photoUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the display projection of a user attached to presence and
// message payloads. It is supplied by the client on join and is not
// authoritative.
type Identity struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// Valid reports whether the identity carries a usable id.
func (i Identity) Valid() bool { return i.ID > 0 }

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, PhotoURL: u.PhotoURL}
}

// NormalizeName trims a display name and checks its bounds.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}
