package app

import (
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickConnection
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, conn core.ConnectionID) BackpressureAction
}

// SimplePolicy drops slow connections. Closing the transport makes the
// adapter report a disconnect, which unwinds the connection's presence.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, core.ConnectionID) BackpressureAction {
	return KickConnection
}

// TolerantPolicy keeps slow connections and only loses the dropped event.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(domain.RoomID, core.ConnectionID) BackpressureAction {
	return NoAction
}
