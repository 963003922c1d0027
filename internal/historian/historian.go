// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue is the blocking-pop half of the Redis client.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Sink persists batches of action records.
type Sink interface {
	InsertActions(ctx context.Context, recs []game.ActionRecord) error
	MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// Config tunes batching and abandonment.
type Config struct {
	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	Inactivity time.Duration
}

// Service pops action records off the Redis queue and writes them to the
// sink in batches. Games that stop sending actions before game_over are
// marked abandoned.
type Service struct {
	queue  Queue
	sink   Sink
	cfg    Config
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []game.ActionRecord

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time

	now func() time.Time
}

// New builds a Service. Zero config fields take the usual defaults.
func New(queue Queue, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = 10 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		queue:        queue,
		sink:         sink,
		cfg:          cfg,
		logger:       logger,
		batch:        make([]game.ActionRecord, 0, cfg.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
		now:          time.Now,
	}
}

// Run consumes until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.WithField("queue", s.cfg.QueueName).Info("historian started")
	for ctx.Err() == nil {
		s.popOnce(ctx)
	}
	wg.Wait()
	s.flush(context.Background())
	s.logger.Info("historian stopped")
}

// popOnce waits for at most one record.
func (s *Service) popOnce(ctx context.Context) {
	res, err := s.queue.BLPop(ctx, s.cfg.PopTimeout, s.cfg.QueueName).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WithError(err).Error("BLPop failed")
			time.Sleep(s.cfg.FlushDelay)
		}
		return
	}
	// res[0] is the queue name and res[1] the payload
	if len(res) < 2 {
		return
	}
	rec, err := decodeRecord(res[1])
	if err != nil {
		s.logger.WithError(err).Warn("invalid action record")
		return
	}
	s.add(ctx, rec)
}

func decodeRecord(payload string) (game.ActionRecord, error) {
	var rec game.ActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, err
	}
	if rec.GameID == uuid.Nil || rec.ActionType == "" {
		return rec, errors.New("record missing game_id or action_type")
	}
	return rec, nil
}

// add tracks activity and queues rec, flushing when the batch is full.
func (s *Service) add(ctx context.Context, rec game.ActionRecord) {
	s.activityMu.Lock()
	if rec.ActionType == game.ActionGameOver {
		delete(s.lastActivity, rec.GameID)
	} else {
		s.lastActivity[rec.GameID] = s.now()
	}
	s.activityMu.Unlock()

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]game.ActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertActions(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("failed to flush actions")
		return
	}
	s.logger.WithField("count", len(pending)).Debug("flushed actions")
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepInactive(ctx)
		}
	}
}

// sweepInactive marks every game idle for longer than the inactivity window
// as abandoned.
func (s *Service) sweepInactive(ctx context.Context) {
	now := s.now()
	var stale []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	if len(stale) == 0 {
		return
	}
	// pending actions for these games must land before the status update
	s.flush(ctx)
	for _, id := range stale {
		if err := s.sink.MarkGameAbandoned(ctx, id); err != nil {
			s.logger.WithError(err).WithField("game", id).Error("failed to mark game abandoned")
			continue
		}
		s.logger.WithField("game", id).Info("marked game abandoned after inactivity")
	}
}
