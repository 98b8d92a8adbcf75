package app

import (
	"encoding/json"

	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	TypeOnlineUsers = "online_users"
	TypeNewMessage  = "new_message"
)

// PresenceUpdate is the outbound presence-change event.
type PresenceUpdate struct {
	Type  string            `json:"type"`
	Room  domain.RoomID     `json:"room"`
	Users []domain.Identity `json:"users"`
}

// NewMessage is the outbound message event.
type NewMessage struct {
	Type    string         `json:"type"`
	Room    domain.RoomID  `json:"room"`
	Message domain.Message `json:"message"`
}

// Broadcaster delivers events to the connections present in a room. It only
// reads the presence table.
type Broadcaster struct {
	Presence *PresenceTable
	Registry *Registry
	Metrics  *Metrics
}

func (b *Broadcaster) BroadcastPresence(room domain.RoomID) core.PublishResult {
	ev := PresenceUpdate{
		Type:  TypeOnlineUsers,
		Room:  room,
		Users: b.Presence.Snapshot(room),
	}
	return b.publish(room, TypeOnlineUsers, ev)
}

// BroadcastMessage sends msg verbatim. Callers must only pass messages that
// are already persisted.
func (b *Broadcaster) BroadcastMessage(room domain.RoomID, msg domain.Message) core.PublishResult {
	ev := NewMessage{
		Type:    TypeNewMessage,
		Room:    room,
		Message: msg,
	}
	return b.publish(room, TypeNewMessage, ev)
}

func (b *Broadcaster) publish(room domain.RoomID, kind string, v any) core.PublishResult {
	res := core.PublishResult{}
	conns := b.Presence.Connections(room)
	if len(conns) == 0 {
		return res
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("marshal event")
		return res
	}
	for _, conn := range conns {
		sender, ok := b.Registry.Sender(conn)
		if !ok || sender == nil {
			continue
		}
		if err := sender.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, conn)
			continue
		}
		res.SendTo++
	}
	b.Metrics.observeBroadcast(kind, res)
	log.Debug().Str("module", "app.fanout").Str("kind", kind).Int64("room", int64(room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
