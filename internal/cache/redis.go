// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list contact events are pushed onto.
const DefaultQueueName = "mychat_contact_events"

// ContactEventType names a contact lifecycle transition.
type ContactEventType string

const (
	ContactRequested     ContactEventType = "contact.requested"
	ContactStatusChanged ContactEventType = "contact.status_changed"
	ContactDeleted       ContactEventType = "contact.deleted"
)

// ContactEvent is the record downstream consumers (notifications) read.
type ContactEvent struct {
	Type        ContactEventType     `json:"type"`
	ContactID   int64                `json:"contact_id"`
	RequesterID string               `json:"requester_id"`
	ReceiverID  string               `json:"receiver_id"`
	Status      models.ContactStatus `json:"status"`
	ActorID     string               `json:"actor_id"`
	Timestamp   int64                `json:"timestamp"`
}

// NewContactEvent builds the event for c performed by actor.
func NewContactEvent(typ ContactEventType, c *models.Contact, actor string) ContactEvent {
	return ContactEvent{
		Type:        typ,
		ContactID:   c.ID,
		RequesterID: c.RequesterID,
		ReceiverID:  c.ReceiverID,
		Status:      c.Status,
		ActorID:     actor,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// ConnectRedis returns a client for addr after checking it answers a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes contact events onto a Redis list.
type Publisher struct {
	rdb   redis.Cmdable
	queue string
}

func NewPublisher(rdb redis.Cmdable, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// PublishContactEvent serializes ev to JSON and RPUSHes it onto the queue.
func (p *Publisher) PublishContactEvent(ctx context.Context, ev ContactEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal ContactEvent: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
