// internal/historian/historian.go is an asynchronous historian that pops round events from a queue and persists them in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Furiten/riichi-api/internal/cache"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Source yields queued round events. Next returns (nil, nil) when nothing
// arrived within its poll window.
type Source interface {
	Next(ctx context.Context) (*models.RoundEvent, error)
}

// Sink persists a batch of round events.
type Sink interface {
	InsertRoundEvents(ctx context.Context, events []models.RoundEvent) error
}

// RedisSource pops events from the list filled by cache.RedisPublisher.
type RedisSource struct {
	Client *redis.Client
	Queue  string
	Poll   time.Duration
}

func (s RedisSource) Next(ctx context.Context) (*models.RoundEvent, error) {
	poll := s.Poll
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return cache.Pop(ctx, s.Client, s.Queue, poll)
}

// Historian batches events from a Source into a Sink and reports sessions
// that saw no event for longer than Inactivity.
type Historian struct {
	src    Source
	sink   Sink
	logger *logrus.Logger

	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []models.RoundEvent
}

func New(src Source, sink Sink, logger *logrus.Logger) *Historian {
	return &Historian{
		src:        src,
		sink:       sink,
		logger:     logger,
		BatchSize:  20,
		FlushDelay: 500 * time.Millisecond,
		Inactivity: 10 * time.Minute,
	}
}

// Run consumes events until ctx is done, then flushes what is left.
func (h *Historian) Run(ctx context.Context) {
	go h.inactivityLoop(ctx)

	ticker := time.NewTicker(h.FlushDelay)
	defer ticker.Stop()

	h.logger.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			// the run context is gone; the last flush gets a fresh one
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			h.flush(flushCtx)
			cancel()
			h.logger.Info("historian stopped")
			return
		case <-ticker.C:
			h.flush(ctx)
		default:
			ev, err := h.src.Next(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.WithError(err).Error("failed to pop round event")
				}
				continue
			}
			if ev == nil {
				continue
			}
			h.lastActivity.Store(ev.SessionID, time.Now())
			if ev.Action == models.ActionGameFinished {
				h.lastActivity.Delete(ev.SessionID)
			}
			if h.append(*ev) {
				h.flush(ctx)
			}
		}
	}
}

// append adds an event and reports whether the batch is full.
func (h *Historian) append(ev models.RoundEvent) bool {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	h.batch = append(h.batch, ev)
	return len(h.batch) >= h.BatchSize
}

// flush writes the pending batch. A failed batch is kept for the next attempt.
func (h *Historian) flush(ctx context.Context) {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	if len(h.batch) == 0 {
		return
	}
	if err := h.sink.InsertRoundEvents(ctx, h.batch); err != nil {
		h.logger.WithError(err).WithField("pending", len(h.batch)).Error("failed to flush round events")
		return
	}
	h.logger.WithField("count", len(h.batch)).Debug("flushed round events")
	h.batch = h.batch[:0]
}

// Pending is the number of events waiting for a flush.
func (h *Historian) Pending() int {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	return len(h.batch)
}

func (h *Historian) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range h.Idle(now) {
				h.logger.WithField("session", id).Warn("session inactive, no round events received")
			}
		}
	}
}

// Idle returns and forgets the unfinished sessions whose last event is older
// than Inactivity at now.
func (h *Historian) Idle(now time.Time) []uuid.UUID {
	var idle []uuid.UUID
	h.lastActivity.Range(func(key, val interface{}) bool {
		id, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if ok1 && ok2 && now.Sub(last) > h.Inactivity {
			idle = append(idle, id)
			h.lastActivity.Delete(id)
		}
		return true
	})
	return idle
}
