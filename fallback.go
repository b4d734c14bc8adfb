package escalate

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/lmittmann/tint"
)

// Fallback is the terminal sink of the escalation chain: it receives every
// uncaught, unhandled failure so that observability is never silently
// lost. It is the structured-concurrency analogue of an unhandled-panic
// report.
type Fallback func(err error)

var reporterOnce = sync.OnceValue(func() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, nil))
})

// reporter is the logger for the built-in fallback and for internal
// faults (handler panics, discovery errors) that must not be swallowed.
func reporter() *slog.Logger { return reporterOnce() }

func reportUncaught(err error) {
	log := reporter()
	if info, ok := TaskOf(err); ok {
		log.Error("uncaught task failure", "task", info.Name, "id", info.ID, "err", CauseOf(err))
		return
	}
	log.Error("uncaught task failure", "err", err)
}

var defaultFallback atomic.Value // of Fallback

func init() {
	defaultFallback.Store(Fallback(reportUncaught))
}

// DefaultFallback returns the current process-level fallback sink.
// The default [Escalator] resolves it freshly on every escalation, so a
// swap via [SetDefaultFallback] takes effect for failures already in
// flight.
func DefaultFallback() Fallback {
	return defaultFallback.Load().(Fallback)
}

// SetDefaultFallback replaces the process-level fallback sink. Passing
// nil restores the built-in reporter, which logs the failure to stderr.
//
// Worker pools that want a sink per worker should instead give their
// escalator a resolver via [WithFallbackResolver].
func SetDefaultFallback(f Fallback) {
	if f == nil {
		f = reportUncaught
	}
	defaultFallback.Store(f)
}
