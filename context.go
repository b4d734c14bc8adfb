package escalate

// Key identifies a well-known element of a [TaskContext]. The key space is
// closed: escalation only ever reads these three elements, so the context
// is a small fixed record rather than an open map.
type Key int

const (
	// KeyHandler addresses the context-bound [Handler]. A context holds at
	// most one.
	KeyHandler Key = iota

	// KeyJob addresses the task's [Job] (its cancellation handle).
	KeyJob

	// KeyName addresses the human-readable task name used for attribution.
	KeyName
)

func (k Key) String() string {
	switch k {
	case KeyHandler:
		return "handler"
	case KeyJob:
		return "job"
	case KeyName:
		return "name"
	default:
		return "unknown"
	}
}

// TaskContext is the immutable bag of capabilities a task runs under.
// It is created once when the task is spawned and read-only afterwards;
// the With* methods return derived copies, sharing the rest of the record.
//
// The zero value and nil are both valid empty contexts.
type TaskContext struct {
	handler Handler
	job     Job
	name    string
	hasName bool
}

var background = &TaskContext{}

// Background returns the empty [TaskContext].
func Background() *TaskContext { return background }

// WithHandler returns a copy of c with h bound under [KeyHandler],
// replacing any previous handler. Binding nil clears the element.
func (c *TaskContext) WithHandler(h Handler) *TaskContext {
	d := c.clone()
	d.handler = h
	return d
}

// WithJob returns a copy of c with j bound under [KeyJob], replacing any
// previous job. Binding nil clears the element.
func (c *TaskContext) WithJob(j Job) *TaskContext {
	d := c.clone()
	d.job = j
	return d
}

// WithName returns a copy of c with the task name bound under [KeyName].
func (c *TaskContext) WithName(name string) *TaskContext {
	d := c.clone()
	d.name = name
	d.hasName = true
	return d
}

// Handler returns the context-bound handler, if any.
func (c *TaskContext) Handler() (Handler, bool) {
	if c == nil || c.handler == nil {
		return nil, false
	}
	return c.handler, true
}

// Job returns the task's cancellation handle, if any.
func (c *TaskContext) Job() (Job, bool) {
	if c == nil || c.job == nil {
		return nil, false
	}
	return c.job, true
}

// Name returns the task name, if one was bound.
func (c *TaskContext) Name() (string, bool) {
	if c == nil || !c.hasName {
		return "", false
	}
	return c.name, true
}

// Lookup returns the element bound under key, or false if the key is
// absent. Elements are returned as their concrete capability types:
// [Handler] for [KeyHandler], [Job] for [KeyJob], string for [KeyName].
func (c *TaskContext) Lookup(key Key) (any, bool) {
	switch key {
	case KeyHandler:
		if h, ok := c.Handler(); ok {
			return h, true
		}
	case KeyJob:
		if j, ok := c.Job(); ok {
			return j, true
		}
	case KeyName:
		if n, ok := c.Name(); ok {
			return n, true
		}
	}
	return nil, false
}

func (c *TaskContext) clone() *TaskContext {
	if c == nil {
		return &TaskContext{}
	}
	d := *c
	return &d
}
