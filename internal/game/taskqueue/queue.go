// Package taskqueue provides an explicit deferred-work queue. Tasks run in
// FIFO order when the owner drains the queue at a well-defined point of a
// transaction; a task that is not ready yet yields and is re-queued behind
// the remaining work until its retry budget is spent.
package taskqueue

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrYield is returned (or wrapped) by a task that cannot complete yet and
// wants to run again after the rest of the queue.
var ErrYield = errors.New("task yielded")

// ErrRetryBudgetExceeded is returned by Drain when a task yields more times
// than the queue's retry budget allows.
var ErrRetryBudgetExceeded = errors.New("retry budget exceeded")

// DefaultRetryBudget is the number of re-runs allowed per task when none is configured.
const DefaultRetryBudget = 3

type task struct {
	name    string
	run     func() error
	retries int
}

// Queue is a single-owner FIFO of deferred tasks. It is not safe for
// concurrent use; the owner serializes access.
type Queue struct {
	tasks  []*task
	budget int
	logger *zap.Logger
}

// New creates an empty Queue.
//
// Precondition: logger must be non-nil. budget <= 0 uses DefaultRetryBudget.
func New(budget int, logger *zap.Logger) *Queue {
	if budget <= 0 {
		budget = DefaultRetryBudget
	}
	return &Queue{budget: budget, logger: logger}
}

// Defer appends a task to the back of the queue.
//
// Precondition: run must not be nil.
func (q *Queue) Defer(name string, run func() error) {
	q.tasks = append(q.tasks, &task{name: name, run: run})
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Drain runs tasks until the queue is empty. A task returning an error
// wrapping ErrYield is moved to the back of the queue; once it has yielded
// more than the retry budget, Drain discards the remaining tasks and returns
// an error wrapping both ErrRetryBudgetExceeded and the task's error. Any
// other task error also discards the remaining tasks and is returned wrapped.
//
// Postcondition: The queue is empty when Drain returns.
func (q *Queue) Drain() error {
	for len(q.tasks) > 0 {
		t := q.tasks[0]
		q.tasks = q.tasks[1:]

		err := t.run()
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrYield):
			t.retries++
			if t.retries > q.budget {
				q.tasks = nil
				q.logger.Warn("deferred task exhausted retry budget",
					zap.String("task", t.name),
					zap.Int("retries", t.retries-1),
					zap.Error(err),
				)
				return fmt.Errorf("task %q: %w: %w", t.name, ErrRetryBudgetExceeded, err)
			}
			q.logger.Debug("deferred task yielded",
				zap.String("task", t.name),
				zap.Int("attempt", t.retries),
			)
			q.tasks = append(q.tasks, t)
		default:
			q.tasks = nil
			return fmt.Errorf("task %q: %w", t.name, err)
		}
	}
	return nil
}
