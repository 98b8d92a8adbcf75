package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dispatcher is the part of the coordinator the transport drives.
type Dispatcher interface {
	Dispatch(ev orch.Event) error
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendQueue  int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendQueue:  cfg.SendQueue,
	}
}

type SignalWSController struct {
	Coord Dispatcher
	Opts  Options
	// Joins limits join_room requests per connection.
	Joins *app.RateLimiter[core.ConnectionID]
}

func NewSignalWSController(coord Dispatcher, opts Options, joins *app.RateLimiter[core.ConnectionID]) *SignalWSController {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	return &SignalWSController{Coord: coord, Opts: opts, Joins: joins}
}

// WsSignalConn is the send side of one websocket. Frames are queued and
// written by the connection's write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request of an authenticated user and runs the
// connection until either side closes it.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, uid domain.UserID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id := core.ConnectionID(uuid.NewString())
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Opts.SendQueue),
	}
	if err := ctl.Coord.Dispatch(orch.ConnectEvent{Conn: id, Sender: conn}); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("coordinator unavailable")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Int64("uid", int64(uid)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, id, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, id, uid, conn)
	}()
}
