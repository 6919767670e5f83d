package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/observability"
)

const (
	liveSendBufferSize = 32
	livePingInterval   = 30 * time.Second
)

// BattleLive fans battle tally updates out to websocket subscribers on every node.
type BattleLive struct {
	redis   *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger

	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.BattleLiveEvent]struct{}
}

type battleLiveEnvelope struct {
	Source string              `json:"source"`
	Event  dto.BattleLiveEvent `json:"event"`
}

// NewBattleLive constructs the hub. A nil redis client keeps delivery local.
func NewBattleLive(redisClient *redis.Client, channelBase string, logger zerolog.Logger) *BattleLive {
	channel := ""
	if channelBase != "" {
		channel = channelBase + ":battles:live"
	}
	return &BattleLive{
		redis:       redisClient,
		channel:     channel,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "battle_live").Logger(),
		subscribers: make(map[uint]map[chan dto.BattleLiveEvent]struct{}),
	}
}

// Start subscribes to the shared channel and returns once the subscription is active.
func (l *BattleLive) Start(ctx context.Context) {
	if l.redis == nil || l.channel == "" {
		return
	}
	ready := make(chan struct{})
	go l.consume(ctx, ready)
	<-ready
}

// Publish delivers the event locally and to other nodes.
func (l *BattleLive) Publish(ctx context.Context, event dto.BattleLiveEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}
	l.broadcast(event)

	if l.redis == nil || l.channel == "" {
		return
	}
	payload, err := json.Marshal(battleLiveEnvelope{Source: l.nodeID, Event: event})
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to marshal live event")
		return
	}
	if err := l.redis.Publish(ctx, l.channel, payload).Err(); err != nil {
		l.logger.Warn().Err(err).Uint("battle_id", event.BattleID).Msg("failed to publish live event")
	}
}

// Subscribe registers a listener for one battle. The returned cleanup is safe to call twice.
func (l *BattleLive) Subscribe(battleID uint) (<-chan dto.BattleLiveEvent, func()) {
	ch := make(chan dto.BattleLiveEvent, liveSendBufferSize)

	l.mu.Lock()
	if _, ok := l.subscribers[battleID]; !ok {
		l.subscribers[battleID] = make(map[chan dto.BattleLiveEvent]struct{})
	}
	l.subscribers[battleID][ch] = struct{}{}
	l.mu.Unlock()
	observability.RealtimeConnections().WithLabelValues("websocket").Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			if subs, ok := l.subscribers[battleID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(l.subscribers, battleID)
				}
			}
			close(ch)
			l.mu.Unlock()
			observability.RealtimeConnections().WithLabelValues("websocket").Dec()
		})
	}
}

// ServeConnection streams events of one battle to the websocket until either side closes.
func (l *BattleLive) ServeConnection(conn *websocket.Conn, battleID uint) {
	events, cleanup := l.Subscribe(battleID)
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				l.logger.Debug().Err(err).Msg("live write loop terminated")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (l *BattleLive) broadcast(event dto.BattleLiveEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subscribers[event.BattleID] {
		select {
		case ch <- event:
		default:
			l.logger.Warn().Uint("battle_id", event.BattleID).Msg("dropping live event for slow client")
		}
	}
}

func (l *BattleLive) consume(ctx context.Context, ready chan<- struct{}) {
	pubsub := l.redis.Subscribe(ctx, l.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		l.logger.Error().Err(err).Msg("live redis subscription failed")
		close(ready)
		return
	}
	close(ready)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			l.logger.Error().Err(err).Msg("live redis subscription closed")
			return
		}

		var envelope battleLiveEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			l.logger.Warn().Err(err).Msg("invalid live event payload")
			continue
		}
		if envelope.Source == l.nodeID {
			continue
		}
		l.broadcast(envelope.Event)
	}
}
