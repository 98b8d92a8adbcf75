package app

import (
	"slices"

	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Sender   core.SignalConnection
	Identity *domain.Identity
	Rooms    map[domain.RoomID]struct{}
}

// Registry is the bookkeeping of live connections and the rooms each one has
// joined. It is owned by the coordinator loop and is not safe for concurrent
// use on its own.
type Registry struct {
	conns map[core.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnectionID]*connEntry)}
}

// Register creates an empty record for id. A second call for the same id
// replaces the record with fresh state.
func (r *Registry) Register(id core.ConnectionID, sender core.SignalConnection) {
	if _, ok := r.conns[id]; ok {
		log.Warn().Str("module", "app.registry").Str("conn", string(id)).Msg("connection registered twice, resetting")
	}
	r.conns[id] = &connEntry{
		Sender: sender,
		Rooms:  make(map[domain.RoomID]struct{}),
	}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
}

func (r *Registry) Known(id core.ConnectionID) bool {
	_, ok := r.conns[id]
	return ok
}

// Bind attaches the identity presented on join to the connection.
func (r *Registry) Bind(id core.ConnectionID, identity domain.Identity) {
	if e, ok := r.conns[id]; ok {
		e.Identity = &identity
	}
}

func (r *Registry) Identity(id core.ConnectionID) (domain.Identity, bool) {
	e, ok := r.conns[id]
	if !ok || e.Identity == nil {
		return domain.Identity{}, false
	}
	return *e.Identity, true
}

func (r *Registry) RecordJoin(id core.ConnectionID, room domain.RoomID) {
	if e, ok := r.conns[id]; ok {
		e.Rooms[room] = struct{}{}
	}
}

func (r *Registry) RecordLeave(id core.ConnectionID, room domain.RoomID) {
	if e, ok := r.conns[id]; ok {
		delete(e.Rooms, room)
	}
}

// Rooms returns the rooms id has joined, in ascending order.
func (r *Registry) Rooms(id core.ConnectionID) []domain.RoomID {
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	return sortedRooms(e.Rooms)
}

// Unregister deletes the record and returns the rooms the connection was
// joined to. Unknown ids yield an empty result.
func (r *Registry) Unregister(id core.ConnectionID) []domain.RoomID {
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	rooms := sortedRooms(e.Rooms)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Int("rooms", len(rooms)).Msg("unregistered connection")
	return rooms
}

func (r *Registry) Sender(id core.ConnectionID) (core.SignalConnection, bool) {
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.Sender, true
}

func (r *Registry) Count() int { return len(r.conns) }

func sortedRooms(set map[domain.RoomID]struct{}) []domain.RoomID {
	out := make([]domain.RoomID, 0, len(set))
	for room := range set {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}
