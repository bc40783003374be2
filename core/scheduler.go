package core

import (
	"errors"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// ExceptionPolicy selects what a Scheduler does when a fibre's state
// machine aborts with an exception during update.
type ExceptionPolicy int

const (
	// ExceptionRethrow surfaces the exception to update's caller; the
	// default, matching go-task-runner's fail-loud posture for unhandled
	// panics in synchronous call paths.
	ExceptionRethrow ExceptionPolicy = iota
	// ExceptionLog logs the exception at Error and drops the fibre.
	ExceptionLog
)

// Time is the pair a Scheduler publishes after each update: the last
// observed epoch time and the delta since the previous observation.
type Time struct {
	EpochTimeS float64
	Dt         float64
}

func priorityCmp(a, b any) int {
	x, y := a.(int32), b.(int32)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Scheduler is the single-threaded, cooperative priority run loop.
// Grounded on go-task-runner's core/task_scheduler.go
// (TaskScheduler: construct-with-config, one queue per concern, an
// update/drain loop) and on KnightChaser-vrunq's Scheduler.loop
// (internal/sched/scheduler.go: band-ordered pop-resume-requeue), merged
// with an exact multi-band, migration-aware run cycle.
// Priority-band lookup uses github.com/emirpasic/gods' red-black tree for
// O(log n) lower-bound matching instead of a linear scan, the same
// structure vrunq uses to order its run queue.
type Scheduler struct {
	bands     *redblacktree.Tree // priority (int32) -> *deque, iterated in ascending key order
	moveQueue *mpmcQueue
	clock     *Clock
	time      Time
	policy    ExceptionPolicy
	panicFn   func(id ID, name string, recovered any)
	running   int
}

// NewScheduler builds a Scheduler from params, defaulting anything unset.
func NewScheduler(params *SchedulerParams, clock *Clock) *Scheduler {
	if params == nil {
		params = DefaultSchedulerParams()
	}
	bands := params.Bands
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	if clock == nil {
		clock = NewClock()
	}
	panicFn := params.PanicHandler
	if panicFn == nil {
		panicFn = defaultPanicHandler
	}

	s := &Scheduler{
		bands:   redblacktree.NewWith(priorityCmp),
		clock:   clock,
		policy:  ExceptionRethrow,
		panicFn: panicFn,
	}
	for _, b := range bands {
		s.bands.Put(b.Priority, newDeque())
	}

	moveCap := params.MoveQueueCapacity
	if moveCap <= 0 {
		moveCap = 256
	}
	s.moveQueue = newMPMCQueue(moveCap)
	return s
}

// SetExceptionPolicy switches between Rethrow (default) and Log modes.
func (s *Scheduler) SetExceptionPolicy(p ExceptionPolicy) { s.policy = p }

// floorBand returns the deque for the highest declared priority <= p,
// logging an error if p itself isn't a declared band.
func (s *Scheduler) floorBand(p int32) *deque {
	node, _ := s.bands.Floor(p)
	if node == nil {
		// p is below every declared band: fall back to the lowest one.
		logAt(LevelError, "priority %d below lowest declared band; using lowest band", p)
		left := s.bands.Left()
		if left == nil {
			return nil
		}
		return left.Value.(*deque)
	}
	// gods' Floor reports "found" for both an exact match and a lower,
	// non-exact one, so the exact-match check has to compare keys
	// directly rather than trust that second return value.
	if node.Key.(int32) != p {
		logAt(LevelError, "priority %d does not match a declared band; using band %d", p, node.Key.(int32))
	}
	return node.Value.(*deque)
}

// Start stamps frame's priority/name, places it at the back of the
// lower-bound matching band, and returns its identifier.
func (s *Scheduler) Start(frame *Frame, priority int32, name string) ID {
	frame.name = name
	frame.priority = priority
	q := s.floorBand(priority)
	q.PushBack(frame)
	s.running++
	return frame.ID()
}

// Cancel searches every band in turn for id, destroying the first match.
// The move queue is not searched: a fibre mid-migration is not yet owned
// by any band and is left to complete its transfer.
func (s *Scheduler) Cancel(id ID) bool {
	found := false
	s.forEachDeque(func(d *deque) bool {
		if d.Cancel(map[uint64]struct{}{id.idValue: {}}) > 0 {
			found = true
			s.running--
			return false
		}
		return true
	})
	return found
}

// CancelMany cancels every id in ids, returning the count cancelled.
func (s *Scheduler) CancelMany(ids []ID) int {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id.idValue] = struct{}{}
	}
	total := 0
	s.forEachDeque(func(d *deque) bool {
		total += d.Cancel(set)
		return true
	})
	s.running -= total
	return total
}

// CancelAll clears every band and the move queue, destroying every frame.
func (s *Scheduler) CancelAll() {
	s.forEachDeque(func(d *deque) bool {
		d.CancelAll()
		return true
	})
	for {
		f, ok := s.moveQueue.TryPop()
		if !ok {
			break
		}
		f.cancel()
	}
	s.running = 0
}

func (s *Scheduler) forEachDeque(fn func(*deque) bool) {
	it := s.bands.Iterator()
	for it.Next() {
		if !fn(it.Value().(*deque)) {
			return
		}
	}
}

// drainMoveQueue pulls every frame currently sitting in the ingress queue
// into its matching band, by lower-bound priority.
func (s *Scheduler) drainMoveQueue() {
	for {
		f, ok := s.moveQueue.TryPop()
		if !ok {
			return
		}
		q := s.floorBand(f.Priority())
		q.PushBack(f)
		s.running++
	}
}

// MoveIn implements the migration-target contract: a non-blocking push
// onto the ingress queue, optionally overriding priority first.
func (s *Scheduler) MoveIn(f *Frame, priority *int32) bool {
	old := f.Priority()
	if priority != nil {
		f.SetPriority(*priority)
	}
	if s.moveQueue.TryPush(f) {
		return true
	}
	f.SetPriority(old)
	return false
}

// Time returns the last update's observed {epoch_time_s, dt}.
func (s *Scheduler) Time() Time { return s.time }

// Empty reports whether every band and the move queue are empty.
func (s *Scheduler) Empty() bool {
	empty := true
	s.forEachDeque(func(d *deque) bool {
		if d.Len() > 0 {
			empty = false
			return false
		}
		return true
	})
	return empty && s.moveQueue.Len() == 0
}

// RunningCount returns the number of fibres currently owned by this
// scheduler (queued in a band or the move queue).
func (s *Scheduler) RunningCount() int { return s.running + s.moveQueue.Len() }

// Update runs one full scheduling cycle: refresh time, then sweep every
// band lowest-priority-value first.
func (s *Scheduler) Update() error {
	return s.updateAt(s.clock.Update())
}

// UpdateAt runs one cycle using an explicit epoch time instead of
// sampling the clock, for deterministic tests and replay.
func (s *Scheduler) UpdateAt(epochS float64) error {
	return s.updateAt(epochS)
}

func (s *Scheduler) updateAt(newEpoch float64) error {
	prev := s.time.EpochTimeS
	s.time = Time{EpochTimeS: newEpoch, Dt: newEpoch - prev}

	it := s.bands.Iterator()
	for it.Next() {
		priority := it.Key().(int32)
		queue := it.Value().(*deque)
		s.drainMoveQueue()

		// queue.Len() is re-read live on every iteration, exactly mirroring
		// original_source/morai/Scheduler.cpp's `i < queue.size() +
		// expired_count`: the live size shrinks by one each time a frame
		// departs the band, offsetting the expired_count increment so every
		// frame present at loop entry gets exactly one resume attempt. A
		// cached entry-size bound would over-count by the number of
		// departures and double-resume a sibling still in the band.
		expired := 0
		for attempt := 0; attempt < queue.Len()+expired; attempt++ {
			s.drainMoveQueue()
			f, ok := queue.PopFront()
			if !ok {
				break
			}
			outcome := s.resumeFrame(f)
			switch outcome.Kind {
			case OutcomeSleep:
				queue.PushBack(f)
			case OutcomeContinue:
				if outcome.Reschedule == nil {
					queue.PushBack(f)
					continue
				}
				r := outcome.Reschedule
				if r.Priority == priority {
					pushWithPosition(queue, f, r.Position)
					continue
				}
				f.SetPriority(r.Priority)
				target := s.floorBand(r.Priority)
				pushWithPosition(target, f, r.Position)
				if target != queue {
					expired++
				}
			case OutcomeMoved:
				if s.completeMigration(f) != queue {
					expired++
				}
				s.running--
			case OutcomeExpired:
				expired++
				s.running--
			case OutcomeException:
				expired++
				s.running--
				if s.policy == ExceptionRethrow {
					return outcome.Err
				}
				logAt(LevelError, "fibre %s (%s) raised: %v", f.ID(), f.Name(), outcome.Err)
			}
		}
	}
	return nil
}

func pushWithPosition(q *deque, f *Frame, pos Position) {
	if pos == PositionFront {
		q.PushFront(f)
		return
	}
	q.PushBack(f)
}

// resumeFrame calls Frame.Resume, converting a state-machine panic into
// an OutcomeException via the configured panic handler, since Go
// coroutine adapters surface aborts as panics rather than stored errors
// in some configurations (core/gen.Spawn recovers and stores instead, but
// third-party StateMachine implementations may not).
func (s *Scheduler) resumeFrame(f *Frame) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.panicFn(f.ID(), f.Name(), r)
			f.err = errors.New("fibre panicked")
			f.destroy()
			outcome = Outcome{Kind: OutcomeException, Err: f.err}
		}
	}()
	return f.Resume(s.time.EpochTimeS)
}

// completeMigration executes the pending migration callable a Moved
// outcome left on the frame: on success the state machine is released to
// a freshly adopted Frame on the target and this one discarded without
// running its destructor; on failure the adopted frame keeps the pending
// migration and is requeued here for another attempt next cycle, so its
// next Resume retries the move instead of advancing the state machine.
// Returns the band the frame was requeued on, or nil if it left this
// scheduler.
func (s *Scheduler) completeMigration(f *Frame) *deque {
	m := f.takeMigration()
	if m == nil {
		return nil
	}
	sm, id, priority, name := f.release()
	nf := adoptFrame(sm, id, priority, name, m.priority)
	if m.target.MoveIn(nf, nil) {
		return nil
	}
	// Target rejected the transfer: the original Frame is already inert, so
	// the freshly adopted one becomes the fibre's new home on this
	// scheduler, still carrying the migration it failed to complete.
	nf.migration = m
	q := s.floorBand(nf.Priority())
	q.PushBack(nf)
	s.running++
	return q
}
