// Package escalate routes uncaught task failures in structured
// concurrency to the observer responsible for them.
//
// When a task terminates with a failure nobody consumed, someone must
// still see it: a handler bound to that task, a process-wide handler, or
// a last-resort sink. The escalation chain decides which, deterministically
// and exactly once per failure:
//
//  1. A [Handler] bound in the task's [TaskContext] claims the failure —
//     per-task policy always overrides global policy, even for
//     cancellations.
//  2. A cancellation failure (see [IsCancellation]) is silenced:
//     cancellation is how tasks are meant to stop, not a defect.
//  3. The task's [Job], if bound, is cancelled with the failure as cause,
//     so the owning task tree shuts down cooperatively.
//  4. Every handler discovered through the [Registry] runs, in discovery
//     order.
//  5. The calling worker's [Fallback] sink receives the failure, so
//     observability is never silently lost.
//
// [Escalate] runs the chain with process defaults; build an [Escalator]
// with [WithRegistry], [WithFallbackResolver], [WithOnOutcome], or
// [WithOnHandlerPanic] to inject your own collaborators.
//
// # Contexts and Handlers
//
// [TaskContext] is the immutable bag a task runs under. It holds at most
// one handler, one job, and one name, addressed by the fixed [Key] set;
// the With* methods derive extended copies. [HandlerFunc] adapts a plain
// function to the [Handler] capability.
//
// # Global Discovery
//
// Process-wide handlers are supplied by [Provider] functions, registered
// via [RegisterProvider] (typically from init functions). The first
// escalation that needs them loads all providers once and freezes the
// result; a provider error surfaces to the caller that triggered the
// load and discovery is retried on the next.
//
// # Scopes
//
// The package includes a scope runtime that feeds the chain: [Run] and
// [New] manage a group of tasks whose settled failures escalate exactly
// once, wrapped in [*TaskError] for attribution. A fail-fast scope
// cancels siblings on the first failure and serves as its tasks' [Job];
// [WithSupervisor] keeps siblings independent. Panics in tasks become
// [*PanicError] uncaught failures.
//
// # Observability
//
// The default fallback reports failures to stderr through log/slog.
// [WithOnOutcome] exposes which step claimed each failure; the promhook
// subpackage turns that into Prometheus counters.
package escalate
