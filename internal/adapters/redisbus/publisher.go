package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"fxcalc/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Egress publishes every outcome as JSON on the result channel.
type Egress struct {
	client  *redis.Client
	channel string
}

func (e *Egress) Deliver(ctx context.Context, outcome domain.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome %s: %w", outcome.RequestID, err)
	}
	if err = e.client.Publish(ctx, e.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish outcome %s: %w", outcome.RequestID, err)
	}
	return nil
}

func NewEgress(client *redis.Client, channel string) *Egress {
	return &Egress{client: client, channel: channel}
}

// RateChangePublisher announces pivot rate movements, one message per changed pair.
type RateChangePublisher struct {
	client  *redis.Client
	channel string
}

func (p *RateChangePublisher) PublishRateChanges(ctx context.Context, changes []domain.RateChange) error {
	if len(changes) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, c := range changes {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal rate change %s/%s: %w", c.Base, c.Quote, err)
		}
		pipe.Publish(ctx, p.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %d rate changes: %w", len(changes), err)
	}
	return nil
}

func NewRateChangePublisher(client *redis.Client, channel string) *RateChangePublisher {
	return &RateChangePublisher{client: client, channel: channel}
}
