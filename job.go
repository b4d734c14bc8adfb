package escalate

// Job is a task's cancellation handle: the control object through which
// the task tree owning the failure can be asked to shut down.
//
// During escalation of an uncaught failure, a [Job] bound under [KeyJob]
// receives Cancel with the failure as cause before any global handlers or
// the worker fallback run. The call is fire-and-forget: escalation does
// not wait on, or observe the effect of, the cancellation.
//
// [*Scope] implements Job.
type Job interface {
	Cancel(cause error)
}
