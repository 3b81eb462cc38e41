package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SettlementsChannel = "tripsplit:settlements"

	EventSettledBetween = "settlement.settled_between"
	EventCreated        = "settlement.created"
	EventUpdated        = "settlement.updated"
)

// SettlementEvent tells downstream caches that a team's ledger changed.
type SettlementEvent struct {
	Type    string     `json:"type"`
	TeamID  uuid.UUID  `json:"team_id"`
	From    *uuid.UUID `json:"from,omitempty"`
	To      *uuid.UUID `json:"to,omitempty"`
	Entries int64      `json:"entries"`
	At      time.Time  `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event SettlementEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, SettlementEvent) error { return nil }

// RedisPublisher publishes events as JSON on SettlementsChannel.
type RedisPublisher struct {
	client *redis.Client
}

// NewEventPublisher falls back to a no-op publisher when client is nil.
func NewEventPublisher(client *redis.Client) EventPublisher {
	if client == nil {
		return nopPublisher{}
	}
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event SettlementEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, SettlementsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing %s event: %w", event.Type, err)
	}
	return nil
}
