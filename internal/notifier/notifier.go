// Package notifier drains the contact event queue and records a notification
// for every user affected by an event they did not cause.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists notifications.
type Sink interface {
	InsertNotifications(ctx context.Context, batch []models.Notification) error
}

// Queue is the part of the Redis client the consumer needs.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each blocking pop so shutdown is noticed promptly.
	PopTimeout time.Duration
}

// Consumer pops contact events off a Redis list, accumulates the resulting
// notifications in a batch, and flushes them to the sink when the batch is
// full or the flush delay elapses.
type Consumer struct {
	queue  Queue
	sink   Sink
	opts   Options
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.Notification
}

func NewConsumer(q Queue, sink Sink, opts Options, logger *logrus.Logger) *Consumer {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = time.Second
	}
	return &Consumer{
		queue:  q,
		sink:   sink,
		opts:   opts,
		logger: logger,
		batch:  make([]models.Notification, 0, opts.BatchSize),
	}
}

// Run consumes until ctx is done, then flushes whatever is pending.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.FlushDelay)
	defer ticker.Stop()

	c.logger.WithField("queue", c.opts.Queue).Info("notifier started")
	defer func() {
		// ctx is already done; give the final flush its own deadline
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.flush(flushCtx)
		c.logger.Info("notifier stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		default:
			res, err := c.queue.BLPop(ctx, c.opts.PopTimeout, c.opts.Queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					c.logger.WithError(err).Error("BLPop failed")
					time.Sleep(c.opts.PopTimeout)
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload
			if len(res) < 2 {
				continue
			}
			c.handle(ctx, res[1])
		}
	}
}

// handle decodes one queue payload and adds its notifications to the batch.
func (c *Consumer) handle(ctx context.Context, payload string) {
	var ev cache.ContactEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		c.logger.WithError(err).Warn("invalid contact event")
		return
	}
	notes := Notifications(ev)
	if len(notes) == 0 {
		return
	}

	c.batchMu.Lock()
	c.batch = append(c.batch, notes...)
	full := len(c.batch) >= c.opts.BatchSize
	c.batchMu.Unlock()

	if full {
		c.flush(ctx)
	}
}

func (c *Consumer) flush(ctx context.Context) {
	c.batchMu.Lock()
	if len(c.batch) == 0 {
		c.batchMu.Unlock()
		return
	}
	pending := make([]models.Notification, len(c.batch))
	copy(pending, c.batch)
	c.batch = c.batch[:0]
	c.batchMu.Unlock()

	if err := c.sink.InsertNotifications(ctx, pending); err != nil {
		c.logger.WithError(err).WithField("count", len(pending)).Error("failed to flush notifications")
		return
	}
	c.logger.WithField("count", len(pending)).Debug("flushed notifications")
}

// Notifications returns one notification per party to the contact other than
// the actor.
func Notifications(ev cache.ContactEvent) []models.Notification {
	at := time.UnixMilli(ev.Timestamp).UTC()
	var out []models.Notification
	for _, userID := range []string{ev.RequesterID, ev.ReceiverID} {
		if userID == "" || userID == ev.ActorID {
			continue
		}
		out = append(out, models.Notification{
			UserID:    userID,
			Type:      string(ev.Type),
			ContactID: ev.ContactID,
			ActorID:   ev.ActorID,
			Status:    ev.Status,
			CreatedAt: at,
		})
	}
	return out
}
