package core

// Descriptor is the value a Frame holds between resumptions, declaring
// when/how the fibre wishes to resume. DeadlineS == 0 means "no deadline";
// a nil Predicate means "no predicate". The four combinations: neither set
// resumes on the next cycle (yield); DeadlineS alone resumes once now_s
// reaches it (sleep); Predicate alone resumes once it returns true (wait);
// both resume on whichever comes first (wait with timeout).
type Descriptor struct {
	DeadlineS float64
	Predicate func() bool
}

// Position selects which end of a Deque a reschedule or requeue targets.
type Position int

const (
	PositionBack Position = iota
	PositionFront
)

// Reschedule is a fibre's request to be requeued at a given priority band
// and deque position instead of simply going to the back of its own band.
type Reschedule struct {
	Priority int32
	Position Position
}

// MoveTarget is satisfied by anything a fibre can migrate to: both
// Scheduler and ThreadPool implement it.
type MoveTarget interface {
	// MoveIn attempts to enqueue f into this target's ingress queue,
	// optionally under a new priority. On success it takes ownership of f
	// itself (the target resumes f; the caller must not touch it again) and
	// returns true. On failure f is left completely untouched.
	MoveIn(f *Frame, priority *int32) bool
}

type suspensionKind int

const (
	suspendYield suspensionKind = iota
	suspendSleep
	suspendWait
	suspendWaitTimeout
	suspendWaitFibre
	suspendReschedule
	suspendMigrate
)

// Suspension is what a fibre's state machine yields at a suspension
// point; Frame.Resume translates it into a Descriptor (or a pending
// reschedule / migration request).
type Suspension struct {
	kind       suspensionKind
	seconds    float64
	predicate  func() bool
	timeout    float64
	waitID     ID
	reschedule Reschedule
	target     MoveTarget
	priority   *int32
}

// SuspendYield resumes on the very next run cycle.
func SuspendYield() Suspension { return Suspension{kind: suspendYield} }

// SuspendSleep resumes once the scheduler's time reaches now+seconds. A
// non-positive value is treated as a yield.
func SuspendSleep(seconds float64) Suspension {
	if seconds <= 0 {
		return SuspendYield()
	}
	return Suspension{kind: suspendSleep, seconds: seconds}
}

// SuspendWait resumes once predicate() returns true.
func SuspendWait(predicate func() bool) Suspension {
	return Suspension{kind: suspendWait, predicate: predicate}
}

// SuspendWaitTimeout resumes once predicate() is true or timeoutSeconds
// have elapsed, whichever comes first.
func SuspendWaitTimeout(predicate func() bool, timeoutSeconds float64) Suspension {
	return Suspension{kind: suspendWaitTimeout, predicate: predicate, timeout: timeoutSeconds}
}

// SuspendWaitFibre resumes once the named fibre is no longer running. If
// id names the fibre that yields it, it is treated as a plain yield
// (self-await never deadlocks).
func SuspendWaitFibre(id ID) Suspension {
	return Suspension{kind: suspendWaitFibre, waitID: id}
}

// SuspendReschedule requests a priority/position change effective on the
// next dispatch, without entering a wait.
func SuspendReschedule(priority int32, pos Position) Suspension {
	return Suspension{kind: suspendReschedule, reschedule: Reschedule{Priority: priority, Position: pos}}
}

// SuspendMigrate requests ownership transfer to target, optionally under a
// new priority (nil keeps the current one).
func SuspendMigrate(target MoveTarget, priority *int32) Suspension {
	return Suspension{kind: suspendMigrate, target: target, priority: priority}
}

// OutcomeKind classifies what happened to a Frame during one Resume call.
type OutcomeKind int

const (
	OutcomeContinue OutcomeKind = iota
	OutcomeSleep
	OutcomeMoved
	OutcomeExpired
	OutcomeException
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "Continue"
	case OutcomeSleep:
		return "Sleep"
	case OutcomeMoved:
		return "Moved"
	case OutcomeExpired:
		return "Expired"
	case OutcomeException:
		return "Exception"
	default:
		return "Unknown"
	}
}

// Outcome is the result of Frame.Resume.
type Outcome struct {
	Kind       OutcomeKind
	Reschedule *Reschedule
	Err        error
}
