package signal

import (
	"encoding/json"

	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	id core.ConnectionID,
	uid domain.UserID,
	conn *WsSignalConn,
	data []byte,
) error {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return nil
	}
	if p.User.ID > 0 && p.User.ID != uid {
		log.Warn().Str("module", "signal").Str("conn", string(id)).
			Int64("uid", int64(uid)).Int64("claimed", int64(p.User.ID)).Msg("join with foreign identity")
		ctl.sendError(conn, "identity_mismatch")
		return nil
	}
	if !ctl.Joins.Allow(id) {
		ctl.sendError(conn, "rate_limited")
		return nil
	}

	log.Debug().Str("module", "signal").Str("conn", string(id)).Int64("room", int64(p.Room)).Msg("join")
	return ctl.Coord.Dispatch(orch.JoinEvent{Conn: id, Room: p.Room, Identity: p.User})
}

func (ctl *SignalWSController) handleLeave(
	id core.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) error {
	var p LeavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad leave payload")
		ctl.sendError(conn, "bad_payload")
		return nil
	}
	log.Debug().Str("module", "signal").Str("conn", string(id)).Int64("room", int64(p.Room)).Msg("leave")
	return ctl.Coord.Dispatch(orch.LeaveEvent{Conn: id, Room: p.Room})
}
