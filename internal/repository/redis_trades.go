package repository

import (
	"context"
	"encoding/json"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
)

// RedisTradeNotifier mirrors every TradeRecorded into a capped Redis list and publishes it on a
// channel for live consumers.
type RedisTradeNotifier struct {
	client  *RedisClient
	listKey string
	listMax int
	channel string
}

func NewRedisTradeNotifier(client *RedisClient, listKey string, listMax int, channel string) *RedisTradeNotifier {
	if listKey == "" {
		listKey = "arena:trades"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	if channel == "" {
		channel = "arena:trades:live"
	}
	return &RedisTradeNotifier{
		client:  client,
		listKey: listKey,
		listMax: listMax,
		channel: channel,
	}
}

func (r *RedisTradeNotifier) Publish(ctx context.Context, ev *model.TradeRecorded) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	pipe.Publish(ctx, r.channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent reads back the newest notifications, optionally for one agent.
func (r *RedisTradeNotifier) Recent(ctx context.Context, agent *address.Address, limit int) ([]*model.TradeRecorded, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.TradeRecorded, 0, limit)
	for _, raw := range items {
		var ev model.TradeRecorded
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		if agent != nil && ev.Agent != *agent {
			continue
		}
		results = append(results, &ev)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (r *RedisTradeNotifier) Channel() string {
	return r.channel
}
