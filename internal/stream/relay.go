package stream

import (
	"context"
	"time"

	"github.com/GoPolymarket/arena/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
)

// RedisRelay feeds the hub from the Redis live channel, so observers connected to any instance see
// trades recorded on every instance.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the subscription loop in a background goroutine
func (r *RedisRelay) Start() {
	go r.runLoop()
}

func (r *RedisRelay) Stop() {
	r.cancel()
	<-r.done
}

func (r *RedisRelay) runLoop() {
	defer close(r.done)
	delay := ReconnBaseDelay

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		sub := r.client.Subscribe(r.ctx, r.channel)
		if _, err := sub.Receive(r.ctx); err != nil {
			sub.Close()
			if r.ctx.Err() != nil {
				return
			}
			logger.Error("trade relay subscribe failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-r.ctx.Done():
				return
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		// Connected successfully
		delay = ReconnBaseDelay
		logger.Info("trade relay subscribed", "channel", r.channel)
		r.readLoop(sub)
		sub.Close()
	}
}

func (r *RedisRelay) readLoop(sub *redis.PubSub) {
	ch := sub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := r.hub.PublishRaw([]byte(msg.Payload)); err != nil {
				logger.Warn("dropping malformed trade notification", "error", err)
			}
		}
	}
}
