package escalate

import "time"

// TaskInfo identifies a task spawned into a [Scope]. ID is unique per
// spawn; Name is the caller-supplied label bound under [KeyName] in the
// task's context.
type TaskInfo struct {
	ID   string
	Name string
}

type scopeConfig struct {
	supervisor bool
	limit      int
	maxErrors  int
	handler    Handler
	name       string
	escalator  *Escalator
	onStart    func(TaskInfo)
	onDone     func(TaskInfo, error, time.Duration)
}

// ScopeOption configures a [Scope].
type ScopeOption func(*scopeConfig)

// WithSupervisor makes task failures independent: a failing task does not
// cancel its siblings, its failure escalates on its own, and [Scope.Wait]
// returns all failures joined.
//
// Without it a scope fails fast: the first failure cancels every sibling
// and Wait returns that first failure.
func WithSupervisor() ScopeOption {
	return func(c *scopeConfig) {
		c.supervisor = true
	}
}

// WithLimit bounds the number of tasks executing concurrently within the
// scope. Tasks beyond the limit wait for a slot, respecting cancellation
// while waiting. Zero (the default) means unlimited. Panics if n is
// negative.
func WithLimit(n int) ScopeOption {
	return func(c *scopeConfig) {
		if n < 0 {
			panic("escalate: limit must be non-negative")
		}
		c.limit = n
	}
}

// WithMaxErrors caps how many task failures a supervisor scope stores for
// [Scope.Wait]; failures beyond the cap still escalate but are dropped
// from the aggregate (see [Scope.DroppedErrors]). Zero means no cap.
// Panics if n is negative.
func WithMaxErrors(n int) ScopeOption {
	return func(c *scopeConfig) {
		if n < 0 {
			panic("escalate: max errors must be non-negative")
		}
		c.maxErrors = n
	}
}

// WithHandler binds h under [KeyHandler] in the context of every task the
// scope spawns, giving the scope per-task failure handling that overrides
// global handlers and the worker fallback.
func WithHandler(h Handler) ScopeOption {
	return func(c *scopeConfig) {
		c.handler = h
	}
}

// WithName sets the scope's name, used for attribution when a task has no
// name of its own.
func WithName(name string) ScopeOption {
	return func(c *scopeConfig) {
		c.name = name
	}
}

// WithEscalator routes the scope's uncaught failures through e instead of
// the process default escalator.
func WithEscalator(e *Escalator) ScopeOption {
	return func(c *scopeConfig) {
		if e == nil {
			panic("escalate: nil escalator")
		}
		c.escalator = e
	}
}

// WithOnStart registers a hook invoked when each task begins executing.
// The hook runs inside the task's goroutine before the task function.
func WithOnStart(fn func(TaskInfo)) ScopeOption {
	return func(c *scopeConfig) {
		c.onStart = fn
	}
}

// WithOnDone registers a hook invoked when each task finishes, with the
// task's error (nil on success) and wall-clock duration. The hook runs
// inside the task's goroutine after the task function returns.
func WithOnDone(fn func(TaskInfo, error, time.Duration)) ScopeOption {
	return func(c *scopeConfig) {
		c.onDone = fn
	}
}
