// Scope is the structured-concurrency runtime that feeds the escalation
// chain. It manages a group of goroutines with a coordinated lifecycle:
// child tasks share a context that is cancelled when the scope ends, and
// every task failure is attributed, aggregated, and escalated exactly
// once after the task settles.
//
// A Scope is created via New() and finalized by calling Wait(), or driven
// end to end by Run(). The Spawner interface is used to spawn new tasks
// within the scope.
//
// Failure semantics are configurable:
//   - default (fail-fast): the first failure cancels remaining tasks.
//   - WithSupervisor: failures are independent; siblings keep running.
//
// Panics in tasks are captured as *PanicError and treated as uncaught
// failures: they escalate and surface from Wait() as regular errors.
package escalate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// TaskFunc is the signature for a task function running within a scope.
// It receives a context (cancelled when the scope ends) and a Spawner
// to spawn sub-tasks.
type TaskFunc func(ctx context.Context, sp Spawner) error

// scope maintains the state of a structured concurrency scope.
type scope struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	cfg     scopeConfig
	taskCtx *TaskContext

	wg sync.WaitGroup

	firstErr atomic.Pointer[TaskError] // for concurrent access in Spawn and Wait
	errOnce  sync.Once

	errMu         sync.Mutex
	errs          []*TaskError
	droppedErrors int // failures exceeding maxErrors cap

	sem chan struct{}

	finOnce sync.Once
	finErr  error

	// Observability counters.
	totalSpawned atomic.Int64
	activeTasks  atomic.Int64
}

// Run creates a [Scope], invokes fn with its root [Spawner], then waits
// for every spawned task to complete. It returns the aggregated error:
// the first failure by default, or all failures joined under
// [WithSupervisor].
//
// Run is the primary entry point. The scope is automatically finalized
// when fn returns, so no explicit cleanup is needed.
func Run(parent context.Context, fn func(sp Spawner), opts ...ScopeOption) (err error) {
	sc, sp := New(parent, opts...)

	defer func() {
		// Capture any panic from fn itself before cleanup.
		runPanic := recover()

		// Close the root spawner so no new tasks can be submitted, then
		// wait for all in-flight tasks and aggregate their errors.
		sc.root.close()
		waitErr := sc.s.finalize()

		// A panic in fn is the caller's own bug, not a task failure.
		if runPanic != nil {
			panic(runPanic)
		}

		err = waitErr
	}()

	fn(sp)
	return nil
}

// finalize waits for all tasks to complete and returns the aggregated error.
func (s *scope) finalize() error {
	s.finOnce.Do(func() {
		s.wg.Wait()

		// Check if context was cancelled externally (before cleanup).
		ctxWasCancelled := s.ctx.Err() != nil

		select {
		case <-s.ctx.Done():
		default:
			s.cancel(nil)
		}

		if s.cfg.supervisor {
			s.errMu.Lock()
			if len(s.errs) > 0 {
				errs := make([]error, 0, len(s.errs))
				for _, te := range s.errs {
					errs = append(errs, te)
				}
				s.finErr = errors.Join(errs...)
			}
			s.errMu.Unlock()
		} else if te := s.firstErr.Load(); te != nil {
			s.finErr = te
		}

		// If no task errors were recorded but the context was cancelled
		// externally (before scope cleanup), surface the context error.
		if s.finErr == nil && ctxWasCancelled {
			s.finErr = s.ctx.Err()
		}
	})

	return s.finErr
}

// exec runs a function with panic recovery; a panic becomes a
// *PanicError uncaught failure.
func (s *scope) exec(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn(s.ctx)
}

// recordError stores a settled task failure for Wait according to the
// failure semantics, and cancels siblings when failing fast.
func (s *scope) recordError(te *TaskError) {
	if s.cfg.supervisor {
		s.errMu.Lock()
		if s.cfg.maxErrors > 0 && len(s.errs) >= s.cfg.maxErrors {
			s.droppedErrors++
		} else {
			s.errs = append(s.errs, te)
		}
		s.errMu.Unlock()
		return
	}

	s.errOnce.Do(func() {
		s.firstErr.Store(te)
		s.cancel(te)
	})
}

// escalateFailure routes a settled task failure into the escalation
// chain, exactly once per failure.
func (s *scope) escalateFailure(te *TaskError) {
	// A task returning the scope's own cancellation is a cooperative
	// shutdown already represented by the failure that caused it.
	if s.ctx.Err() != nil && IsCancellation(te.Err) {
		return
	}

	ctx := s.taskCtx
	if te.Task.Name != "" {
		ctx = ctx.WithName(te.Task.Name)
	}
	s.escalator().Escalate(ctx, te)
}

func (s *scope) escalator() *Escalator {
	if s.cfg.escalator != nil {
		return s.cfg.escalator
	}
	return processEscalator
}

// Scope wraps the internal scope state and exposes lifecycle and
// observability methods. Create one via [New]; finalize with [Scope.Wait].
//
// A fail-fast Scope is also its tasks' [Job]: escalation of an uncaught
// failure cancels it cooperatively before global handlers run.
type Scope struct {
	s      *scope
	root   *spawner
	once   sync.Once
	result error
}

// New creates a [Scope] and root [Spawner] for manual lifecycle control.
// The caller must call [Scope.Wait] to finalize the scope and collect
// errors.
//
// Prefer [Run] for most use cases; use New when you need to pass the
// [Spawner] across function boundaries or integrate with existing
// lifecycle management.
func New(parent context.Context, opts ...ScopeOption) (*Scope, Spawner) {
	var cfg scopeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &scope{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}

	if cfg.limit > 0 {
		s.sem = make(chan struct{}, cfg.limit)
	}

	root := &spawner{
		s: s,
	}
	root.open.Store(true)

	sc := &Scope{
		s:    s,
		root: root,
	}

	// Build the context every task escalates under. A supervisor scope
	// does not bind itself as the job: cancelling it on one task's
	// failure would defeat supervision.
	taskCtx := Background()
	if cfg.name != "" {
		taskCtx = taskCtx.WithName(cfg.name)
	}
	if cfg.handler != nil {
		taskCtx = taskCtx.WithHandler(cfg.handler)
	}
	if !cfg.supervisor {
		taskCtx = taskCtx.WithJob(sc)
	}
	s.taskCtx = taskCtx

	return sc, root
}

// Wait closes the root [Spawner], waits for all spawned tasks to
// complete, and returns the aggregated error.
//
// Wait is idempotent; subsequent calls return the same result.
func (sc *Scope) Wait() error {
	sc.once.Do(func() {
		sc.root.close()
		sc.result = sc.s.finalize()
	})

	return sc.result
}

// Cancel cancels the scope's context with the given cause, signaling all
// tasks to stop. Subsequent calls have no additional effect on the
// context. Cancel implements [Job], so a fail-fast scope receives the
// cooperative cancellation signal during escalation of its own failures.
func (sc *Scope) Cancel(cause error) {
	sc.s.cancel(cause)
}

// Context returns the scope's context, which is cancelled when the scope
// finalizes or is explicitly cancelled via [Scope.Cancel].
func (sc *Scope) Context() context.Context {
	return sc.s.ctx
}

// TaskContext returns the immutable context the scope's tasks escalate
// under.
func (sc *Scope) TaskContext() *TaskContext {
	return sc.s.taskCtx
}

// ActiveTasks returns the number of tasks currently executing within the
// scope.
func (sc *Scope) ActiveTasks() int64 {
	return sc.s.activeTasks.Load()
}

// TotalSpawned returns the total number of tasks that have been spawned
// within the scope, including those that have already completed.
func (sc *Scope) TotalSpawned() int64 {
	return sc.s.totalSpawned.Load()
}

// DroppedErrors returns the number of failures that were not stored
// because the [WithMaxErrors] limit was reached. Only meaningful for
// supervisor scopes.
func (sc *Scope) DroppedErrors() int {
	sc.s.errMu.Lock()
	defer sc.s.errMu.Unlock()

	return sc.s.droppedErrors
}
