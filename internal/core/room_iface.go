package core

import (
	"github.com/dkeye/roomchat/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnectionID
}

// PresenceEntry is one (connection, identity) slot of a room.
type PresenceEntry struct {
	Conn     ConnectionID
	Identity domain.Identity
}

type RoomInfo struct {
	ID     domain.RoomID `json:"id"`
	Online int           `json:"online"`
}
