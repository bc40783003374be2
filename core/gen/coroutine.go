// Package gen adapts an ordinary Go function into core.StateMachine by
// parking it on a goroutine and rendezvousing over unbuffered channels:
// one "resume" step per channel handshake. Nothing in the reference
// corpus ships a coroutine/generator primitive (the closest hits —
// stackless CPS coroutines and simulation executors — use a
// continuation-passing style that doesn't fit an opaque "advance one
// step" contract), so this package is the idiomatic Go answer: a
// goroutine blocked on a channel receive is itself a suspended
// computation, and unblocking it one step at a time is exactly
// core.StateMachine.Advance.
package gen

import (
	"fmt"

	"fibre/core"
)

// Yielder is the handle a fibre body uses to suspend itself. Every method
// blocks the calling goroutine until the owning Frame resumes it again.
type Yielder struct {
	toBody   chan struct{}
	fromBody chan core.Suspension
	done     chan struct{}
	kill     chan struct{}
	onExit   []func()
}

// OnExit registers fn to run when the fibre's frame is destroyed, whether
// that happens through normal completion, cancellation, an exception, or
// a panic. Exit actions run in last-registered-first order, the way a
// defer stack unwinds. Not meant to be called concurrently with itself.
func (y *Yielder) OnExit(fn func()) {
	y.onExit = append(y.onExit, fn)
}

func (y *Yielder) runExitActions() {
	for i := len(y.onExit) - 1; i >= 0; i-- {
		y.onExit[i]()
	}
}

// killSignal is the panic value Close uses to unwind a body goroutine
// that is parked waiting for its next resume, so it exits cleanly
// instead of leaking forever.
type killSignal struct{}

// Yield suspends until the next run cycle (a plain yield).
func (y *Yielder) Yield() { y.suspend(core.SuspendYield()) }

// Sleep suspends until at least seconds have elapsed.
func (y *Yielder) Sleep(seconds float64) { y.suspend(core.SuspendSleep(seconds)) }

// Wait suspends until predicate() returns true.
func (y *Yielder) Wait(predicate func() bool) { y.suspend(core.SuspendWait(predicate)) }

// WaitTimeout suspends until predicate() is true or timeoutSeconds elapse.
func (y *Yielder) WaitTimeout(predicate func() bool, timeoutSeconds float64) {
	y.suspend(core.SuspendWaitTimeout(predicate, timeoutSeconds))
}

// WaitFibre suspends until id is no longer running.
func (y *Yielder) WaitFibre(id core.ID) { y.suspend(core.SuspendWaitFibre(id)) }

// Reschedule requests a priority/position change on the next dispatch.
func (y *Yielder) Reschedule(priority int32, pos core.Position) {
	y.suspend(core.SuspendReschedule(priority, pos))
}

// Migrate requests ownership transfer to target, optionally under a new
// priority. The underlying goroutine is resumed on the target scheduler
// from this same point, transparently to the body function.
func (y *Yielder) Migrate(target core.MoveTarget, priority *int32) {
	y.suspend(core.SuspendMigrate(target, priority))
}

// suspend hands a Suspension back to the owning Frame and blocks until
// the next Advance call, or exits the goroutine if Close killed it.
func (y *Yielder) suspend(s core.Suspension) {
	y.fromBody <- s
	select {
	case <-y.toBody:
	case <-y.kill:
		panic(killSignal{})
	}
}

// Body is the fibre's entry point: ordinary, straight-line Go code that
// calls methods on y at whatever points it needs to suspend.
type Body func(y *Yielder)

type machine struct {
	yielder *Yielder
	bodyFn  Body
	started bool
	done    bool
	err     error
}

// Spawn builds a core.StateMachine that runs body on its own goroutine,
// advancing one suspension point per Advance call.
func Spawn(body Body) core.StateMachine {
	y := &Yielder{
		toBody:   make(chan struct{}),
		fromBody: make(chan core.Suspension),
		done:     make(chan struct{}),
		kill:     make(chan struct{}),
	}
	return &machine{yielder: y, bodyFn: body}
}

func (m *machine) Advance() core.Suspension {
	if !m.started {
		m.started = true
		go m.run()
	} else {
		m.yielder.toBody <- struct{}{}
	}
	select {
	case s, ok := <-m.yielder.fromBody:
		if !ok {
			return core.SuspendYield()
		}
		return s
	case <-m.yielder.done:
		return core.SuspendYield()
	}
}

func (m *machine) run() {
	defer func() {
		if r := recover(); r != nil {
			if _, killed := r.(killSignal); !killed {
				m.err = fmt.Errorf("fibre panic: %v", r)
			}
		}
		m.yielder.runExitActions()
		m.done = true
		close(m.yielder.fromBody)
		close(m.yielder.done)
	}()
	m.bodyFn(m.yielder)
}

func (m *machine) Done() bool { return m.done }
func (m *machine) Err() error { return m.err }

func (m *machine) Close() {
	if m.done || !m.started {
		m.done = true
		return
	}
	close(m.yielder.kill)
	<-m.yielder.done
}
