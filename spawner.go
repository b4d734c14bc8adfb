package escalate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Spawner allows spawning concurrent tasks into a scope.
type Spawner interface {
	// Spawn starts a new concurrent task with the given name. The task
	// function receives a child Spawner allowing it to create sub-tasks.
	Spawn(name string, fn TaskFunc)

	// Go starts a new concurrent task that spawns no sub-tasks of its own.
	Go(name string, fn func(ctx context.Context) error)
}

// spawner implements the Spawner interface and manages the lifecycle of tasks.
type spawner struct {
	s    *scope
	open atomic.Bool
}

func (sp *spawner) Go(name string, fn func(ctx context.Context) error) {
	sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		return fn(ctx)
	})
}

func (sp *spawner) Spawn(name string, fn TaskFunc) {
	// Check open BEFORE wg.Add to avoid TOCTOU race with finalize()'s wg.Wait().
	if !sp.open.Load() {
		panic("escalate: Spawn called after scope shutdown")
	}

	sp.s.wg.Add(1)
	sp.s.totalSpawned.Add(1)

	info := TaskInfo{
		ID:   uuid.NewString(),
		Name: name,
	}

	go func() {
		defer sp.s.wg.Done()

		if sp.s.sem != nil {
			select {
			case sp.s.sem <- struct{}{}:
				defer func() { <-sp.s.sem }()
			case <-sp.s.ctx.Done():
				// Context cancelled while waiting for a slot. Not a task
				// failure — the real cause is already recorded.
				return
			}
		}

		if sp.s.ctx.Err() != nil {
			// Context already cancelled, skip execution silently.
			return
		}

		// The child spawner is valid only for the lifetime of the task;
		// spawning after the task function returns will panic.
		child := &spawner{s: sp.s}
		child.open.Store(true)

		sp.s.activeTasks.Add(1)
		start := time.Now()
		// The onStart hook runs inside exec so panics are caught by recovery.
		err := sp.s.exec(func(ctx context.Context) error {
			if sp.s.cfg.onStart != nil {
				sp.s.cfg.onStart(info)
			}
			return fn(ctx, child)
		})
		elapsed := time.Since(start)
		sp.s.activeTasks.Add(-1)

		child.close()

		if sp.s.cfg.onDone != nil {
			// onDone runs outside exec — a panic here is intentionally
			// unrecovered (observability hook must not panic).
			sp.s.cfg.onDone(info, err, elapsed)
		}

		// The task has settled: record the failure for Wait, then route
		// it through the escalation chain exactly once. Cancellations are
		// expected termination and never count against the scope.
		if err != nil {
			te := &TaskError{Task: info, Err: err}
			if !IsCancellation(err) {
				sp.s.recordError(te)
			}
			sp.s.escalateFailure(te)
		}
	}()
}

// close marks the spawner as closed, preventing further Spawn calls.
func (sp *spawner) close() {
	sp.open.Store(false)
}
