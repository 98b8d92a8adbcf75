package app

import (
	"cmp"
	"slices"

	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
)

// PresenceTable maps each room to the ordered set of connections present in
// it. A connection appears at most once per room; the same user may appear
// several times through different connections. Rooms whose set becomes empty
// are dropped.
type PresenceTable struct {
	rooms map[domain.RoomID][]core.PresenceEntry
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{rooms: make(map[domain.RoomID][]core.PresenceEntry)}
}

// Put inserts conn into room or replaces the identity of its existing slot.
// A replaced slot keeps its position.
func (t *PresenceTable) Put(room domain.RoomID, conn core.ConnectionID, identity domain.Identity) (replaced bool) {
	entries := t.rooms[room]
	if i := indexOf(entries, conn); i >= 0 {
		entries[i].Identity = identity
		return true
	}
	t.rooms[room] = append(entries, core.PresenceEntry{Conn: conn, Identity: identity})
	return false
}

// Remove deletes conn from room and reports whether it was present.
func (t *PresenceTable) Remove(room domain.RoomID, conn core.ConnectionID) bool {
	entries, ok := t.rooms[room]
	if !ok {
		return false
	}
	i := indexOf(entries, conn)
	if i < 0 {
		return false
	}
	entries = slices.Delete(entries, i, i+1)
	if len(entries) == 0 {
		delete(t.rooms, room)
		return true
	}
	t.rooms[room] = entries
	return true
}

func (t *PresenceTable) Contains(room domain.RoomID, conn core.ConnectionID) bool {
	return indexOf(t.rooms[room], conn) >= 0
}

// Snapshot returns the identities present in room in join order. The result
// is never nil so it encodes as an empty JSON list.
func (t *PresenceTable) Snapshot(room domain.RoomID) []domain.Identity {
	entries := t.rooms[room]
	out := make([]domain.Identity, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Identity)
	}
	return out
}

func (t *PresenceTable) Entries(room domain.RoomID) []core.PresenceEntry {
	return slices.Clone(t.rooms[room])
}

// Connections returns the recipients of room's events.
func (t *PresenceTable) Connections(room domain.RoomID) []core.ConnectionID {
	entries := t.rooms[room]
	out := make([]core.ConnectionID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Conn)
	}
	return out
}

func (t *PresenceTable) Len(room domain.RoomID) int { return len(t.rooms[room]) }

// Rooms lists the non-empty rooms with their online count.
func (t *PresenceTable) Rooms() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(t.rooms))
	for id, entries := range t.rooms {
		out = append(out, core.RoomInfo{ID: id, Online: len(entries)})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Total counts presence entries across all rooms.
func (t *PresenceTable) Total() int {
	n := 0
	for _, entries := range t.rooms {
		n += len(entries)
	}
	return n
}

func indexOf(entries []core.PresenceEntry, conn core.ConnectionID) int {
	return slices.IndexFunc(entries, func(e core.PresenceEntry) bool { return e.Conn == conn })
}
