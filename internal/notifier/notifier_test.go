package notifier

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanQueue chan string

func (q chanQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	select {
	case p := <-q:
		return redis.NewStringSliceResult([]string{keys[0], p}, nil)
	case <-time.After(timeout):
		return redis.NewStringSliceResult(nil, redis.Nil)
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	}
}

type memSink struct {
	mu      sync.Mutex
	batches [][]models.Notification
}

func (s *memSink) InsertNotifications(_ context.Context, batch []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memSink) all() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func event(t *testing.T, typ cache.ContactEventType, actor string) string {
	t.Helper()
	c := &models.Contact{ID: 3, RequesterID: "alice", ReceiverID: "bob", Status: models.ContactPending}
	data, err := json.Marshal(cache.NewContactEvent(typ, c, actor))
	require.NoError(t, err)
	return string(data)
}

func TestNotificationsSkipActor(t *testing.T) {
	c := &models.Contact{ID: 3, RequesterID: "alice", ReceiverID: "bob", Status: models.ContactAccepted}

	notes := Notifications(cache.NewContactEvent(cache.ContactStatusChanged, c, "bob"))
	require.Len(t, notes, 1)
	assert.Equal(t, "alice", notes[0].UserID)
	assert.Equal(t, "contact.status_changed", notes[0].Type)
	assert.Equal(t, models.ContactAccepted, notes[0].Status)
	assert.EqualValues(t, 3, notes[0].ContactID)
	assert.False(t, notes[0].CreatedAt.IsZero())

	assert.Len(t, Notifications(cache.NewContactEvent(cache.ContactDeleted, c, "someone-else")), 2)
}

func TestConsumerFlushesFullBatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &memSink{}
	c := NewConsumer(chanQueue(nil), sink, Options{BatchSize: 2, FlushDelay: time.Hour}, logger)
	ctx := context.Background()

	c.handle(ctx, event(t, cache.ContactRequested, "alice"))
	assert.Empty(t, sink.all())

	c.handle(ctx, event(t, cache.ContactStatusChanged, "bob"))
	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].UserID)
	assert.Equal(t, "alice", got[1].UserID)
}

func TestConsumerIgnoresBadPayload(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &memSink{}
	c := NewConsumer(chanQueue(nil), sink, Options{BatchSize: 1}, logger)

	c.handle(context.Background(), "{not json")
	c.flush(context.Background())
	assert.Empty(t, sink.all())
	assert.Equal(t, "invalid contact event", hook.LastEntry().Message)
}

func TestConsumerRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &memSink{}
	q := make(chanQueue, 4)
	c := NewConsumer(q, sink, Options{
		BatchSize:  100,
		FlushDelay: 20 * time.Millisecond,
		PopTimeout: 10 * time.Millisecond,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	q <- event(t, cache.ContactRequested, "alice")
	q <- event(t, cache.ContactDeleted, "bob")

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

// TestConsumerAgainstRedis pushes through a real queue. It needs
// TEST_REDIS_ADDR pointing at a disposable Redis.
func TestConsumerAgainstRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rdb, err := cache.ConnectRedis(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	queue := "mychat_notifier_test_" + time.Now().Format("150405.000000")
	defer rdb.Del(context.Background(), queue)
	pub := cache.NewPublisher(rdb, queue)
	c := &models.Contact{ID: 9, RequesterID: "alice", ReceiverID: "bob", Status: models.ContactPending}
	require.NoError(t, pub.PublishContactEvent(ctx, cache.NewContactEvent(cache.ContactRequested, c, "alice")))

	logger, _ := test.NewNullLogger()
	sink := &memSink{}
	consumer := NewConsumer(rdb, sink, Options{Queue: queue, FlushDelay: 20 * time.Millisecond, PopTimeout: 50 * time.Millisecond}, logger)
	runCtx, stop := context.WithCancel(ctx)
	go consumer.Run(runCtx)
	defer stop()

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "bob", sink.all()[0].UserID)
}
