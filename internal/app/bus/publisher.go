// Package bus delivers persisted messages to the coordinators that fan them
// out, either in process or across instances through redis.
package bus

import (
	"context"

	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/domain"
)

// Publisher hands a stored message to the fanout path.
type Publisher interface {
	PublishMessage(ctx context.Context, msg domain.Message) error
}

// Dispatcher is the part of the coordinator the bus needs.
type Dispatcher interface {
	Dispatch(ev orch.Event) error
}

// LocalPublisher feeds messages straight into the local coordinator.
type LocalPublisher struct {
	D Dispatcher
}

func NewLocalPublisher(d Dispatcher) *LocalPublisher {
	return &LocalPublisher{D: d}
}

func (p *LocalPublisher) PublishMessage(_ context.Context, msg domain.Message) error {
	return p.D.Dispatch(orch.PublishEvent{Room: msg.RoomID, Message: msg})
}
