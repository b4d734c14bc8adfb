package escalate

// Handler observes uncaught task failures. A handler bound into a task's
// [TaskContext] (via [TaskContext.WithHandler] or the scope option
// [WithHandler]) takes precedence over every other escalation step;
// handlers discovered through a [Registry] run as process-wide policy.
//
// Handle is invoked synchronously on the goroutine that observed the
// failure. It must not assume anything about the failure beyond it being
// non-nil; a context-bound handler also sees cancellation failures.
type Handler interface {
	Handle(ctx *TaskContext, err error)
}

// HandlerFunc adapts an ordinary function to the [Handler] interface, so
// call sites can register a handler without declaring a dedicated type:
//
//	ctx := escalate.Background().WithHandler(
//	    escalate.HandlerFunc(func(ctx *escalate.TaskContext, err error) {
//	        log.Printf("task failed: %v", err)
//	    }),
//	)
type HandlerFunc func(ctx *TaskContext, err error)

// Handle implements [Handler] by calling f.
func (f HandlerFunc) Handle(ctx *TaskContext, err error) { f(ctx, err) }
