package orch

import (
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
)

// Event is an inbound transport or collaborator event. Events are applied one
// at a time by the coordinator loop.
type Event interface {
	apply(c *Coordinator)
}

// ConnectEvent registers a freshly opened transport connection.
type ConnectEvent struct {
	Conn   core.ConnectionID
	Sender core.SignalConnection
}

// JoinEvent moves (Conn, Room) to PRESENT with Identity.
type JoinEvent struct {
	Conn     core.ConnectionID
	Room     domain.RoomID
	Identity domain.Identity
}

// LeaveEvent moves (Conn, Room) to ABSENT.
type LeaveEvent struct {
	Conn core.ConnectionID
	Room domain.RoomID
}

// DisconnectEvent unwinds every room of Conn.
type DisconnectEvent struct {
	Conn core.ConnectionID
}

// PublishEvent fans a persisted message out to its room.
type PublishEvent struct {
	Room    domain.RoomID
	Message domain.Message
}

type queryEvent struct {
	fn   func(c *Coordinator)
	done chan struct{}
}

func (e ConnectEvent) apply(c *Coordinator)    { c.Connect(e.Conn, e.Sender) }
func (e JoinEvent) apply(c *Coordinator)       { c.Join(e.Conn, e.Room, e.Identity) }
func (e LeaveEvent) apply(c *Coordinator)      { c.Leave(e.Conn, e.Room) }
func (e DisconnectEvent) apply(c *Coordinator) { c.Disconnect(e.Conn) }
func (e PublishEvent) apply(c *Coordinator)    { c.Publish(e.Room, e.Message) }

func (e queryEvent) apply(c *Coordinator) {
	defer close(e.done)
	e.fn(c)
}
