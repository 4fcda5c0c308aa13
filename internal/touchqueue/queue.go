// Package touchqueue asynchronously records token last-used timestamps.
// touch_token must never slow down or fail a caller's query (spec.md §7:
// "touch_token failures are never user-visible"), so the Executor only
// enqueues; a single background goroutine drains the queue against the
// Metadata Store.
//
// Grounded on the teacher's bounded background-maintenance goroutines
// (internal/service/gc.go, internal/middleware/board_access.StartBackgroundUpdate):
// a ticker-or-channel loop selecting against ctx.Done() for shutdown.
package touchqueue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postgate/postgate/internal/logger"
)

// Toucher is the subset of the Metadata Store the queue needs.
type Toucher interface {
	TouchToken(ctx context.Context, id uuid.UUID, when time.Time) error
}

type entry struct {
	id   uuid.UUID
	when time.Time
}

// Queue is a bounded, drop-oldest buffer of pending touches.
type Queue struct {
	store Toucher
	ch    chan entry
}

// New creates a queue with the given buffer size. A size of a few hundred
// comfortably absorbs a burst of requests while the draining goroutine
// catches up, without applying backpressure to the request path.
func New(store Toucher, size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		store: store,
		ch:    make(chan entry, size),
	}
}

// Enqueue records that token id was used at when. If the queue is full, the
// oldest pending touch is dropped to make room — last_used_at is best-effort
// telemetry, and the most recent use is the more useful value to keep.
func (q *Queue) Enqueue(id uuid.UUID, when time.Time) {
	e := entry{id: id, when: when}
	select {
	case q.ch <- e:
		return
	default:
	}

	select {
	case old := <-q.ch:
		logger.Log.Warn("touch queue full, dropping oldest touch", "token_id", old.id)
	default:
	}

	select {
	case q.ch <- e:
	default:
		logger.Log.Warn("touch queue full, dropping touch", "token_id", id)
	}
}

// Run drains the queue until ctx is cancelled. It is meant to run in its own
// goroutine for the lifetime of the process.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ch:
			touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := q.store.TouchToken(touchCtx, e.id, e.when); err != nil {
				logger.Log.Warn("touch_token failed", "token_id", e.id, "error", err)
			}
			cancel()
		}
	}
}
