package domain

import "time"

// Message is a persisted chat message. The presence core fans it out
// verbatim and never mutates it.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	User      Identity  `json:"user"`
}
