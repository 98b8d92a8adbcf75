package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "room:"

// RedisBus publishes messages on a per-room channel. Every instance runs a
// subscriber that dispatches what it receives into its own coordinator, the
// publishing instance included.
type RedisBus struct {
	rdb *redis.Client
	d   Dispatcher
}

// NewRedisBus connects to redis and verifies connectivity.
func NewRedisBus(ctx context.Context, cfg config.RedisConfig, d Dispatcher) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisBus{rdb: rdb, d: d}, nil
}

func (b *RedisBus) PublishMessage(ctx context.Context, msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(msg.RoomID), raw).Err()
}

// Run listens on every room channel until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()
	ch := pubsub.Channel()

	log.Info().Str("module", "bus").Msg("redis subscriber started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decode(msg.Channel, msg.Payload)
			if err != nil {
				log.Warn().Str("module", "bus").Str("channel", msg.Channel).Err(err).Msg("dropping bus message")
				continue
			}
			if err := b.d.Dispatch(ev); err != nil {
				return err
			}
		}
	}
}

func (b *RedisBus) Close() error { return b.rdb.Close() }

func channel(room domain.RoomID) string {
	return channelPrefix + strconv.FormatInt(int64(room), 10)
}

func decode(ch, payload string) (orch.PublishEvent, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(ch, channelPrefix), 10, 64)
	if err != nil || !domain.RoomID(id).Valid() {
		return orch.PublishEvent{}, fmt.Errorf("bad channel %q", ch)
	}
	var msg domain.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return orch.PublishEvent{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.RoomID != domain.RoomID(id) {
		return orch.PublishEvent{}, fmt.Errorf("message room %d on channel %q", msg.RoomID, ch)
	}
	return orch.PublishEvent{Room: msg.RoomID, Message: msg}, nil
}
