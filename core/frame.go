package core

// StateMachine is the opaque, resumable computation a Frame owns. Any
// mechanism satisfying "advance one step, observe completion, observe the
// stored exception, destroy exactly once" qualifies — the corpus has no
// off-the-shelf coroutine primitive, so core/gen supplies a
// goroutine-plus-channel-handshake implementation (see core/gen/coroutine.go).
type StateMachine interface {
	// Advance runs the fibre body until its next suspension point or
	// completion, and returns the suspension value it yielded.
	Advance() Suspension
	// Done reports whether the state machine has completed, normally or
	// with a stored exception.
	Done() bool
	// Err returns the stored exception, if the state machine aborted.
	Err() error
	// Close destroys the state machine. Must be safe to call exactly once.
	Close()
}

type pendingMigration struct {
	target   MoveTarget
	priority *int32
}

// Frame owns a suspended state machine plus its bookkeeping: identifier,
// priority, debug name, current Resumption Descriptor, a pending
// reschedule request, a pending migration request, and a stored
// exception. Frames are move-only by convention: a live
// *Frame is never aliased across two schedulers, and once its state
// machine is released (migration) or closed (termination) the Frame must
// not be resumed again.
type Frame struct {
	sm         StateMachine
	id         ID
	priority   int32
	name       string
	descriptor Descriptor
	reschedule *Reschedule
	migration  *pendingMigration
	err        error
	terminated bool
}

// NewFrame wraps sm under a freshly allocated identifier. The frame starts
// with a "yield" descriptor, so its first Resume always advances the
// state machine immediately regardless of the caller's now_s.
func NewFrame(name string, sm StateMachine) *Frame {
	return &Frame{sm: sm, id: newID(), name: name}
}

func (f *Frame) ID() ID          { return f.id }
func (f *Frame) Name() string    { return f.name }
func (f *Frame) Priority() int32 { return f.priority }
func (f *Frame) Err() error      { return f.err }

// SetPriority is mutated only by the owning scheduler, during reschedule
// or migration handling.
func (f *Frame) SetPriority(p int32) { f.priority = p }

// Resume runs one resumption attempt: check termination, check for a
// migration still pending from a prior failed attempt, check the pending
// descriptor against nowS, advance the state machine if due, translate
// whatever it yields into the next descriptor/reschedule/migration
// state, and report the outcome.
func (f *Frame) Resume(nowS float64) Outcome {
	if f.terminated || (f.sm != nil && f.sm.Done()) {
		f.destroy()
		return Outcome{Kind: OutcomeExpired}
	}

	// A migration that lost the race for the target's ingress queue is
	// retried here directly: the state machine must not be advanced again
	// until the pending move actually completes, or the fibre body would
	// run straight past its y.Migrate(...) call.
	if f.migration != nil {
		return Outcome{Kind: OutcomeMoved}
	}

	d := f.descriptor
	if d.Predicate != nil {
		if !d.Predicate() && (d.DeadlineS == 0 || nowS < d.DeadlineS) {
			return Outcome{Kind: OutcomeSleep}
		}
	} else if nowS < d.DeadlineS {
		return Outcome{Kind: OutcomeSleep}
	}

	f.descriptor = Descriptor{}
	susp := f.sm.Advance()
	if err := f.sm.Err(); err != nil {
		f.err = err
		f.destroy()
		return Outcome{Kind: OutcomeException, Err: err}
	}
	if f.sm.Done() {
		f.destroy()
		return Outcome{Kind: OutcomeExpired}
	}

	f.applySuspension(susp)
	if f.migration != nil {
		return Outcome{Kind: OutcomeMoved}
	}

	if f.descriptor.DeadlineS > 0 {
		f.descriptor.DeadlineS += nowS
	}
	resched := f.reschedule
	f.reschedule = nil
	return Outcome{Kind: OutcomeContinue, Reschedule: resched}
}

// applySuspension translates the value a fibre yielded into the pending
// Resumption Descriptor / reschedule / migration state.
func (f *Frame) applySuspension(s Suspension) {
	switch s.kind {
	case suspendYield:
		f.descriptor = Descriptor{}
	case suspendSleep:
		f.descriptor = Descriptor{DeadlineS: s.seconds}
	case suspendWait:
		f.descriptor = Descriptor{Predicate: s.predicate}
	case suspendWaitTimeout:
		f.descriptor = Descriptor{DeadlineS: s.timeout, Predicate: s.predicate}
	case suspendWaitFibre:
		if s.waitID.Equal(f.id) {
			f.descriptor = Descriptor{}
			return
		}
		target := s.waitID
		f.descriptor = Descriptor{Predicate: func() bool { return !target.Running() }}
	case suspendReschedule:
		r := s.reschedule
		f.reschedule = &r
		f.descriptor = Descriptor{}
	case suspendMigrate:
		f.migration = &pendingMigration{target: s.target, priority: s.priority}
		f.descriptor = Descriptor{}
	default:
		f.descriptor = Descriptor{}
	}
}

// takeMigration consumes the pending migration callable exactly once per
// run attempt.
func (f *Frame) takeMigration() *pendingMigration {
	m := f.migration
	f.migration = nil
	return m
}

// destroy runs the terminal path: close the state machine exactly once
// and clear the identifier's running bit. Used for normal completion,
// cancellation, and exceptions — never for a successful migration, whose
// ownership transfer goes through release instead.
func (f *Frame) destroy() {
	if f.terminated {
		return
	}
	f.terminated = true
	if f.sm != nil {
		f.sm.Close()
		f.sm = nil
	}
	f.id.clearRunning()
}

// release extracts this frame's state machine for a successful migration.
// The source Frame becomes permanently inert (terminated, sm nil) without
// running its destructor path, so the identifier's running bit is left
// untouched — the fibre is still alive, just housed in a new Frame on the
// target scheduler.
func (f *Frame) release() (StateMachine, ID, int32, string) {
	sm := f.sm
	f.sm = nil
	f.terminated = true
	return sm, f.id, f.priority, f.name
}

// adoptFrame builds a new Frame around a released state machine, applying
// an optional priority override. Used by Scheduler.completeMigration /
// ThreadPool.completeMigration before handing the new Frame to MoveIn.
func adoptFrame(sm StateMachine, id ID, priority int32, name string, override *int32) *Frame {
	if override != nil {
		priority = *override
	}
	return &Frame{sm: sm, id: id, priority: priority, name: name}
}

// cancel destroys the frame's state machine and clears its identifier's
// running bit, as if it had completed. Used by deque.Cancel,
// deque.CancelAll and the CancelAll methods of Scheduler and ThreadPool.
func (f *Frame) cancel() {
	f.destroy()
}
