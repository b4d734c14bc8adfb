package escalate

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records escalation side effects in order, across goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recordedCall struct {
	ctx *TaskContext
	err error
}

type recordingHandler struct {
	mu    sync.Mutex
	name  string
	log   *eventLog
	calls []recordedCall
}

func (h *recordingHandler) Handle(ctx *TaskContext, err error) {
	h.mu.Lock()
	h.calls = append(h.calls, recordedCall{ctx, err})
	h.mu.Unlock()
	if h.log != nil {
		h.log.add("handler:" + h.name)
	}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type recordingJob struct {
	mu     sync.Mutex
	log    *eventLog
	causes []error
}

func (j *recordingJob) Cancel(cause error) {
	j.mu.Lock()
	j.causes = append(j.causes, cause)
	j.mu.Unlock()
	if j.log != nil {
		j.log.add("cancel")
	}
}

// sinkFallback returns a Fallback recording into log and calls.
func sinkFallback(log *eventLog, calls *[]error, mu *sync.Mutex) Fallback {
	return func(err error) {
		mu.Lock()
		*calls = append(*calls, err)
		mu.Unlock()
		if log != nil {
			log.add("fallback")
		}
	}
}

func TestHandlerPrecedence(t *testing.T) {
	for _, tc := range []struct {
		name    string
		failure error
	}{
		{"uncaught", errors.New("boom")},
		{"cancellation", Cancelled(nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			log := &eventLog{}
			h := &recordingHandler{name: "ctx", log: log}
			job := &recordingJob{log: log}
			global := &recordingHandler{name: "global", log: log}

			reg := NewRegistry()
			reg.Register(func() ([]Handler, error) {
				return []Handler{global}, nil
			})

			var mu sync.Mutex
			var fb []error
			esc := NewEscalator(
				WithRegistry(reg),
				WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
			)

			ctx := Background().WithHandler(h).WithJob(job)
			esc.Escalate(ctx, tc.failure)

			require.Equal(t, 1, h.count(), "context handler must be invoked exactly once")
			assert.Same(t, ctx, h.calls[0].ctx)
			assert.Equal(t, tc.failure, h.calls[0].err)

			// No other step runs once the context handler claims the failure.
			assert.Equal(t, []string{"handler:ctx"}, log.all())
			assert.Empty(t, job.causes)
			assert.Equal(t, 0, global.count())
			assert.Empty(t, fb)
		})
	}
}

func TestCancellationSilence(t *testing.T) {
	log := &eventLog{}
	job := &recordingJob{log: log}
	global := &recordingHandler{name: "global", log: log}

	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		return []Handler{global}, nil
	})

	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
	)

	for _, failure := range []error{
		Cancelled(nil),
		Cancelledf("shutting down %s", "worker"),
	} {
		esc.Escalate(Background().WithJob(job), failure)
	}

	// Cancellation is silenced before any side effect: the short-circuit
	// precedes the job step, so nothing at all is invoked.
	assert.Empty(t, log.all())
	assert.Equal(t, 0, global.count())
	assert.Empty(t, fb)
}

func TestCooperativeCancelPrecedesGlobalAndFallback(t *testing.T) {
	log := &eventLog{}
	job := &recordingJob{log: log}
	global := &recordingHandler{name: "g", log: log}

	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		return []Handler{global}, nil
	})

	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
	)

	failure := errors.New("boom")
	esc.Escalate(Background().WithJob(job), failure)

	assert.Equal(t, []string{"cancel", "handler:g", "fallback"}, log.all())
	require.Len(t, job.causes, 1)
	assert.Equal(t, failure, job.causes[0])
}

func TestGlobalFanOutOrder(t *testing.T) {
	log := &eventLog{}
	a := &recordingHandler{name: "a", log: log}
	b := &recordingHandler{name: "b", log: log}
	c := &recordingHandler{name: "c", log: log}

	reg := NewRegistry()
	// Two providers; handlers load in registration order.
	reg.Register(func() ([]Handler, error) {
		return []Handler{a, b}, nil
	})
	reg.Register(func() ([]Handler, error) {
		return []Handler{c}, nil
	})

	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
	)

	failure := errors.New("boom")
	esc.Escalate(Background(), failure)

	// All handlers run, in discovery order, then the terminal sink.
	assert.Equal(t, []string{"handler:a", "handler:b", "handler:c", "fallback"}, log.all())
	for _, h := range []*recordingHandler{a, b, c} {
		require.Equal(t, 1, h.count())
		assert.Equal(t, failure, h.calls[0].err)
	}
	require.Len(t, fb, 1)
	assert.Equal(t, failure, fb[0])
}

func TestTerminalSink(t *testing.T) {
	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(NewRegistry()),
		WithFallbackResolver(func() Fallback { return sinkFallback(nil, &fb, &mu) }),
	)

	failure := errors.New("boom")
	esc.Escalate(Background(), failure)

	require.Len(t, fb, 1, "fallback must be invoked exactly once")
	assert.Equal(t, failure, fb[0])
}

func TestDiscoveryIdempotence(t *testing.T) {
	var loads int
	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		loads++
		return nil, nil
	})

	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(nil, &fb, &mu) }),
	)

	esc.Escalate(Background(), errors.New("first"))
	esc.Escalate(Background(), errors.New("second"))

	assert.Equal(t, 1, loads, "discovery must run at most once across escalations")
	assert.Len(t, fb, 2)
}

func TestDiscoveryErrorDoesNotCostTheSink(t *testing.T) {
	broken := true
	var loads int
	h := &recordingHandler{name: "late"}

	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		loads++
		if broken {
			return nil, errors.New("provider misconfigured")
		}
		return []Handler{h}, nil
	})

	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(nil, &fb, &mu) }),
	)

	// Discovery fails: the failure still reaches the terminal sink.
	esc.Escalate(Background(), errors.New("boom"))
	require.Len(t, fb, 1)
	assert.Equal(t, 0, h.count())

	// The failed load is not cached; the next escalation retries.
	broken = false
	esc.Escalate(Background(), errors.New("boom again"))
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1, h.count())
	assert.Len(t, fb, 2)
}

func TestHandlerPanicDoesNotClaimFailure(t *testing.T) {
	log := &eventLog{}
	panicking := HandlerFunc(func(ctx *TaskContext, err error) {
		log.add("handler:panicking")
		panic("handler bug")
	})
	global := &recordingHandler{name: "g", log: log}
	job := &recordingJob{log: log}

	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		return []Handler{global}, nil
	})

	var recovered []any
	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
		WithOnHandlerPanic(func(v any) {
			recovered = append(recovered, v)
		}),
	)

	failure := errors.New("boom")
	esc.Escalate(Background().WithHandler(panicking).WithJob(job), failure)

	// The panicking handler has not claimed the failure: the rest of the
	// chain runs and the failure still reaches the sink.
	assert.Equal(t,
		[]string{"handler:panicking", "cancel", "handler:g", "fallback"},
		log.all())
	require.Len(t, recovered, 1)
	assert.Equal(t, "handler bug", recovered[0])
	require.Len(t, fb, 1)
	assert.Equal(t, failure, fb[0])
}

func TestGlobalHandlerPanicContinuesFanOut(t *testing.T) {
	log := &eventLog{}
	bad := HandlerFunc(func(ctx *TaskContext, err error) {
		log.add("handler:bad")
		panic("global handler bug")
	})
	good := &recordingHandler{name: "good", log: log}

	reg := NewRegistry()
	reg.Register(func() ([]Handler, error) {
		return []Handler{bad, good}, nil
	})

	var recovered int
	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return sinkFallback(log, &fb, &mu) }),
		WithOnHandlerPanic(func(any) { recovered++ }),
	)

	esc.Escalate(Background(), errors.New("boom"))

	assert.Equal(t, []string{"handler:bad", "handler:good", "fallback"}, log.all())
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 1, good.count())
}

func TestJobCancelPanicIsRecovered(t *testing.T) {
	var mu sync.Mutex
	var fb []error
	var recovered int
	esc := NewEscalator(
		WithRegistry(NewRegistry()),
		WithFallbackResolver(func() Fallback { return sinkFallback(nil, &fb, &mu) }),
		WithOnHandlerPanic(func(any) { recovered++ }),
	)

	job := jobFunc(func(cause error) { panic("cancel bug") })
	esc.Escalate(Background().WithJob(job), errors.New("boom"))

	assert.Equal(t, 1, recovered)
	assert.Len(t, fb, 1)
}

type jobFunc func(cause error)

func (f jobFunc) Cancel(cause error) { f(cause) }

func TestOutcomeHook(t *testing.T) {
	reg := NewRegistry()

	var outcomes []Outcome
	esc := NewEscalator(
		WithRegistry(reg),
		WithFallbackResolver(func() Fallback { return func(error) {} }),
		WithOnOutcome(func(o Outcome) {
			outcomes = append(outcomes, o)
		}),
	)

	h := &recordingHandler{name: "h"}
	esc.Escalate(Background().WithHandler(h), errors.New("boom"))
	esc.Escalate(Background(), Cancelled(nil))
	esc.Escalate(Background(), errors.New("boom"))

	assert.Equal(t,
		[]Outcome{OutcomeHandled, OutcomeCancellation, OutcomeFallback},
		outcomes)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "handled", OutcomeHandled.String())
	assert.Equal(t, "cancellation", OutcomeCancellation.String())
	assert.Equal(t, "fallback", OutcomeFallback.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}

func TestEscalatorOptionValidation(t *testing.T) {
	assert.Panics(t, func() { NewEscalator(WithRegistry(nil)) })
	assert.Panics(t, func() { NewEscalator(WithFallbackResolver(nil)) })
}

// The unconfigured case from the escalation contract: empty context,
// uncaught failure, no global handlers — the fallback sees it, once.
func TestUnconfiguredUncaughtFailureReachesFallback(t *testing.T) {
	var mu sync.Mutex
	var fb []error
	esc := NewEscalator(
		WithRegistry(NewRegistry()),
		WithFallbackResolver(func() Fallback { return sinkFallback(nil, &fb, &mu) }),
	)

	boom := errors.New("boom")
	esc.Escalate(Background(), boom)

	require.Len(t, fb, 1)
	assert.Equal(t, boom, fb[0])
}
