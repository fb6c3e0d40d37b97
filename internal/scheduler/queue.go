// Package scheduler provides the serialized action queue, the cooperative
// abort signal and the command rate pacer shared by all effects.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClosed is delivered to pending actions when the queue shuts down.
var ErrClosed = errors.New("action queue closed")

// Action is one unit of serialized work.
type Action func(ctx context.Context) error

type queued struct {
	name string
	run  Action
	done chan error
}

// Queue is a strict-FIFO action queue with a single consumer. Submission is
// non-blocking; actions run one at a time in submission order, and a failing
// action never blocks the ones behind it.
type Queue struct {
	mu      sync.Mutex
	pending []queued
	closed  bool
	wake    chan struct{}

	stopped chan struct{}
}

// NewQueue creates a queue. Run must be called for actions to execute.
func NewQueue() *Queue {
	return &Queue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Enqueue appends an action and returns a channel that receives the action's
// result exactly once. A closed queue answers ErrClosed immediately.
func (q *Queue) Enqueue(name string, action Action) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- ErrClosed
		return done
	}
	q.pending = append(q.pending, queued{name: name, run: action, done: done})
	depth := len(q.pending)
	q.mu.Unlock()

	log.Debug().Str("action", name).Int("depth", depth).Msg("Action enqueued")

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return done
}

// Run consumes the queue until ctx is cancelled. It then rejects the remaining
// pending actions with ErrClosed and returns.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.stopped)

	for {
		item, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				q.shutdown()
				return
			case <-q.wake:
				continue
			}
		}

		item.done <- q.runOne(ctx, item)
	}
}

// Stopped is closed once Run has returned.
func (q *Queue) Stopped() <-chan struct{} {
	return q.stopped
}

func (q *Queue) pop() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return queued{}, false
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	return item, true
}

// runOne executes a single action. A panic inside an action is treated like
// any other failure so the chain keeps moving.
func (q *Queue) runOne(ctx context.Context, item queued) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", item.name).Msg("Action panicked")
			err = errors.New("action panicked")
		}
	}()
	return item.run(ctx)
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	q.closed = true
	rest := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range rest {
		item.done <- ErrClosed
	}
	if len(rest) > 0 {
		log.Warn().Int("dropped", len(rest)).Msg("Action queue stopped with pending actions")
	}
}
