// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// ConnectRedis initializes the global Redis client and pings it.
func ConnectRedis(addr string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// ListPusher is the slice of the Redis client the action log needs.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

const (
	actionQueueSize = 1024
	pushTimeout     = 2 * time.Second
)

// RedisActionLog ships engine action records to a Redis list for the
// historian. Records are pushed in order by a single worker, so LogAction
// never waits on the network.
type RedisActionLog struct {
	client ListPusher
	queue  string
	logger *logrus.Logger

	mu     sync.Mutex
	closed bool
	ch     chan game.ActionRecord
	done   chan struct{}
}

var _ game.ActionLogger = (*RedisActionLog)(nil)

// NewRedisActionLog starts the push worker. Call Close to flush and stop it.
func NewRedisActionLog(client ListPusher, queue string, logger *logrus.Logger) *RedisActionLog {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &RedisActionLog{
		client: client,
		queue:  queue,
		logger: logger,
		ch:     make(chan game.ActionRecord, actionQueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// LogAction queues rec. When the queue is full the record is dropped.
func (l *RedisActionLog) LogAction(rec game.ActionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- rec:
	default:
		l.logger.WithFields(logrus.Fields{
			"game":   rec.GameID,
			"action": rec.ActionType,
		}).Warn("action log queue full, dropping record")
	}
}

// Publish serializes one record and pushes it onto the queue.
func (l *RedisActionLog) Publish(ctx context.Context, rec game.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	if err := l.client.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

func (l *RedisActionLog) run() {
	defer close(l.done)
	for rec := range l.ch {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := l.Publish(ctx, rec); err != nil {
			l.logger.WithError(err).WithField("game", rec.GameID).Error("failed to publish action")
		}
		cancel()
	}
}

// Close stops accepting records and waits for queued ones to be pushed.
func (l *RedisActionLog) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()
	<-l.done
}
