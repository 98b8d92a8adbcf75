package orch

import (
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves (conn, room) to PRESENT. Identities without a usable id,
// invalid rooms and unknown connections are ignored. A repeated join replaces
// the stored identity in place.
func (c *Coordinator) Join(conn core.ConnectionID, room domain.RoomID, identity domain.Identity) {
	if !identity.Valid() || !room.Valid() {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Int64("room", int64(room)).Msg("ignoring malformed join")
		return
	}
	if !c.Registry.Known(conn) {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Msg("ignoring join from unknown connection")
		return
	}

	c.Registry.RecordJoin(conn, room)
	c.Registry.Bind(conn, identity)
	replaced := c.Presence.Put(room, conn, identity)

	log.Info().
		Str("module", "orch").
		Str("conn", string(conn)).
		Int64("room", int64(room)).
		Int64("user", int64(identity.ID)).
		Bool("rejoin", replaced).
		Msg("joined room")
	c.broadcastPresence(room)
}

// Leave moves (conn, room) to ABSENT. Leaving an absent pair does nothing.
func (c *Coordinator) Leave(conn core.ConnectionID, room domain.RoomID) {
	if !c.Presence.Remove(room, conn) {
		return
	}
	c.Registry.RecordLeave(conn, room)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Int64("room", int64(room)).Msg("left room")
	c.broadcastPresence(room)
}

// Disconnect removes conn from every room it joined and re-broadcasts each
// room's presence once.
func (c *Coordinator) Disconnect(conn core.ConnectionID) {
	rooms := c.Registry.Unregister(conn)
	for _, room := range rooms {
		if c.Presence.Remove(room, conn) {
			c.broadcastPresence(room)
		}
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Int("rooms", len(rooms)).Msg("disconnected")
}
