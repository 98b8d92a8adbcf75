package signal

import "github.com/dkeye/roomchat/internal/domain"

const (
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeError     = "error"
)

type JoinPayload struct {
	Type string          `json:"type"`
	Room domain.RoomID   `json:"room"`
	User domain.Identity `json:"user"`
}

type LeavePayload struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type ErrorEnvelope struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: TypePong,
	}
	ctl.sendJSON(conn, resp)
}
