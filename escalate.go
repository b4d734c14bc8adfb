package escalate

// Outcome records which step of the escalation chain claimed a failure.
// It is reported once per escalation through the [WithOnOutcome] hook.
type Outcome int

const (
	// OutcomeHandled: the context-bound handler claimed the failure.
	OutcomeHandled Outcome = iota

	// OutcomeCancellation: the failure was a cooperative cancellation and
	// was silenced.
	OutcomeCancellation

	// OutcomeFallback: the failure ran the full chain and terminated in
	// the worker fallback (after any global handlers).
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeCancellation:
		return "cancellation"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Escalator routes uncaught task failures to their responsible observers.
// The registry and fallback are injected so embedders and tests can
// substitute their own; the zero configuration (see [NewEscalator]) uses
// the process default registry and fallback.
//
// An Escalator is stateless apart from its configuration and safe for
// concurrent use.
type Escalator struct {
	cfg escConfig
}

type escConfig struct {
	registry        *Registry
	resolveFallback func() Fallback
	onOutcome       func(Outcome)
	onHandlerPanic  func(recovered any)
}

// Option configures an [Escalator].
type Option func(*escConfig)

// WithRegistry sets the registry consulted for globally discovered
// handlers, instead of [DefaultRegistry].
func WithRegistry(r *Registry) Option {
	return func(c *escConfig) {
		if r == nil {
			panic("escalate: nil registry")
		}
		c.registry = r
	}
}

// WithFallbackResolver sets how the calling worker's fallback sink is
// found. The resolver runs at escalation time, on the escalating
// goroutine, so a worker pool can hand each worker its own sink. The
// default resolver returns [DefaultFallback].
func WithFallbackResolver(resolve func() Fallback) Option {
	return func(c *escConfig) {
		if resolve == nil {
			panic("escalate: nil fallback resolver")
		}
		c.resolveFallback = resolve
	}
}

// WithOnOutcome registers a hook invoked once per escalation with the
// [Outcome] that ended the chain. Useful for metrics; see the promhook
// subpackage.
func WithOnOutcome(fn func(Outcome)) Option {
	return func(c *escConfig) {
		c.onOutcome = fn
	}
}

// WithOnHandlerPanic registers a hook for panics recovered from handler
// and job invocations during escalation. The default logs them to stderr.
func WithOnHandlerPanic(fn func(recovered any)) Option {
	return func(c *escConfig) {
		c.onHandlerPanic = fn
	}
}

// NewEscalator builds an [Escalator] with the given options.
func NewEscalator(opts ...Option) *Escalator {
	cfg := escConfig{
		registry:        defaultRegistry,
		resolveFallback: DefaultFallback,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Escalator{cfg: cfg}
}

var processEscalator = NewEscalator()

// Escalate routes err through the process default [Escalator]. External
// failure sites call it exactly once per unhandled task failure, after
// the task has fully settled.
func Escalate(ctx *TaskContext, err error) {
	processEscalator.Escalate(ctx, err)
}

// Escalate decides, deterministically and exactly once, who observes the
// failure. The chain is ordered and first-claim-wins:
//
//  1. A handler bound in ctx claims the failure — even a cancellation —
//     and nothing else runs.
//  2. A cancellation failure is silenced: cancellation is the designed
//     mechanism for early termination, not a defect to report.
//  3. A [Job] bound in ctx is cancelled with the failure as cause, so the
//     owning task tree shuts down. Side effect only; the chain continues.
//  4. Every globally discovered handler runs, in discovery order.
//  5. The calling worker's fallback sink receives the failure.
//
// Escalate never returns an error and never raises for a normal uncaught
// failure: steps 1, 3, and 4 run under panic recovery (a panicking
// handler is reported and does not claim the failure), so step 5 is
// always reached when steps 1–2 did not short-circuit.
func (e *Escalator) Escalate(ctx *TaskContext, err error) {
	if h, ok := ctx.Handler(); ok {
		if e.invoke(h, ctx, err) {
			e.outcome(OutcomeHandled)
			return
		}
		// The handler panicked: it has not claimed the failure, so the
		// chain continues and the failure still reaches a sink.
	}

	if IsCancellation(err) {
		e.outcome(OutcomeCancellation)
		return
	}

	if job, ok := ctx.Job(); ok {
		e.protect(func() { job.Cancel(err) })
	}

	handlers, lerr := e.cfg.registry.Load()
	if lerr != nil {
		// Misconfigured discovery must not cost us the terminal sink.
		reporter().Error("escalate: global handler discovery failed", "err", lerr)
	}
	for _, h := range handlers {
		e.invoke(h, ctx, err)
	}

	e.outcome(OutcomeFallback)
	e.cfg.resolveFallback()(err)
}

// invoke runs a handler under panic recovery and reports whether it
// completed normally.
func (e *Escalator) invoke(h Handler, ctx *TaskContext, err error) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.handlerPanic(r)
		}
	}()
	h.Handle(ctx, err)
	return true
}

// protect runs fn under panic recovery.
func (e *Escalator) protect(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.handlerPanic(r)
		}
	}()
	fn()
}

func (e *Escalator) handlerPanic(recovered any) {
	if e.cfg.onHandlerPanic != nil {
		e.cfg.onHandlerPanic(recovered)
		return
	}
	reporter().Warn("escalate: handler panicked during escalation", "value", recovered)
}

func (e *Escalator) outcome(o Outcome) {
	if e.cfg.onOutcome != nil {
		e.cfg.onOutcome(o)
	}
}
