package orch

import (
	"context"
	"errors"

	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("coordinator stopped")

const defaultQueue = 1024

// Coordinator is the single writer of presence state. All transitions run on
// the goroutine executing Run, one event at a time, so the registry and the
// presence table need no locks.
type Coordinator struct {
	Registry    *app.Registry
	Presence    *app.PresenceTable
	Broadcaster *app.Broadcaster
	Policy      app.Policy
	Metrics     *app.Metrics

	events chan Event
	done   chan struct{}
}

func New(queue int, policy app.Policy, metrics *app.Metrics) *Coordinator {
	if queue <= 0 {
		queue = defaultQueue
	}
	reg := app.NewRegistry()
	presence := app.NewPresenceTable()
	return &Coordinator{
		Registry: reg,
		Presence: presence,
		Broadcaster: &app.Broadcaster{
			Presence: presence,
			Registry: reg,
			Metrics:  metrics,
		},
		Policy:  policy,
		Metrics: metrics,
		events:  make(chan Event, queue),
		done:    make(chan struct{}),
	}
}

// Run applies dispatched events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	log.Info().Str("module", "orch").Msg("coordinator loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("coordinator loop stopped")
			return nil
		case ev := <-c.events:
			c.Handle(ev)
		}
	}
}

// Dispatch queues ev for the loop. It blocks while the queue is full and
// fails with ErrStopped once the loop has exited.
func (c *Coordinator) Dispatch(ev Event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Handle applies ev synchronously. Only the loop, or a test driving the
// coordinator without a loop, may call it.
func (c *Coordinator) Handle(ev Event) {
	ev.apply(c)
	c.Metrics.SetState(c.Registry.Count(), c.Presence.Total())
}

// Query runs fn on the loop and waits for it. fn may read state but must not
// retain references to it.
func (c *Coordinator) Query(ctx context.Context, fn func(c *Coordinator)) error {
	q := queryEvent{fn: fn, done: make(chan struct{})}
	if err := c.Dispatch(q); err != nil {
		return err
	}
	select {
	case <-q.done:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Online returns the presence snapshot of room.
func (c *Coordinator) Online(ctx context.Context, room domain.RoomID) ([]domain.Identity, error) {
	var out []domain.Identity
	err := c.Query(ctx, func(c *Coordinator) {
		out = c.Presence.Snapshot(room)
	})
	return out, err
}

// Stats returns the rooms with at least one present connection.
func (c *Coordinator) Stats(ctx context.Context) ([]core.RoomInfo, error) {
	var out []core.RoomInfo
	err := c.Query(ctx, func(c *Coordinator) {
		out = c.Presence.Rooms()
	})
	return out, err
}

func (c *Coordinator) Connect(conn core.ConnectionID, sender core.SignalConnection) {
	c.Registry.Register(conn, sender)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Msg("connected")
}

// Publish fans a persisted message out to the connections present in room.
func (c *Coordinator) Publish(room domain.RoomID, msg domain.Message) {
	res := c.Broadcaster.BroadcastMessage(room, msg)
	c.applyPolicy(room, res)
}

func (c *Coordinator) broadcastPresence(room domain.RoomID) {
	res := c.Broadcaster.BroadcastPresence(room)
	c.applyPolicy(room, res)
}

func (c *Coordinator) applyPolicy(room domain.RoomID, res core.PublishResult) {
	if c.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch c.Policy.OnBackPressure(room, slow) {
		case app.KickConnection:
			if sender, ok := c.Registry.Sender(slow); ok && sender != nil {
				log.Warn().Str("module", "orch").Str("conn", string(slow)).Int64("room", int64(room)).Msg("kicking slow connection")
				sender.Close()
				c.Metrics.Kicked()
			}
		case app.NoAction:
		}
	}
}
