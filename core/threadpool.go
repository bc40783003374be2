package core

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ThreadPool is the multi-threaded worker-pool scheduler. Grounded on
// go-task-runner's GoroutineThreadPool (pool.go / goroutine_thread_pool.go
// in go-task-runner: worker goroutines draining a shared queue, pause/quit
// flags, WaitGroup-joined shutdown), adapted to fibre-scheduling's per-band
// MPMC queues, weighted band selection, and migration-aware resume loop.
type ThreadPool struct {
	bands      []int32
	queues     map[int32]*mpmcQueue
	weights    []int32 // flattened weighted-selection table of band priorities
	idleSleep  time.Duration
	clock      *Clock
	policy     ExceptionPolicy
	panicFn    func(id ID, name string, recovered any)

	paused atomic.Bool
	quit   atomic.Bool
	wg     sync.WaitGroup

	running         atomic.Int64
	workerCountHint int
}

const defaultIdleSleep = 500 * time.Microsecond

// NewThreadPool builds a ThreadPool from params and starts its workers
// (workers == 0 means manual mode: no goroutines, the caller drives
// Update itself).
func NewThreadPool(params *ThreadPoolParams, clock *Clock) *ThreadPool {
	if params == nil {
		params = DefaultThreadPoolParams()
	}
	bandDefs := params.Bands
	if len(bandDefs) == 0 {
		bandDefs = DefaultBands()
	}
	// A missing or mismatched Weights slice is filled with zeros, not
	// ones: zero defers to the w<=0 branch below, which builds the
	// n-i biased table spec §4.5 names. An explicit all-1s fill would
	// silently flatten the default pool to unbiased round-robin.
	weights := params.Weights
	if len(weights) != len(bandDefs) {
		weights = make([]int, len(bandDefs))
	}
	if clock == nil {
		clock = NewClock()
	}
	panicFn := params.PanicHandler
	if panicFn == nil {
		panicFn = defaultPanicHandler
	}
	qCap := params.QueueCapacity
	if qCap <= 0 {
		qCap = 256
	}

	p := &ThreadPool{
		queues:    make(map[int32]*mpmcQueue, len(bandDefs)),
		idleSleep: defaultIdleSleep,
		clock:     clock,
		policy:    ExceptionLog,
		panicFn:   panicFn,
	}
	for _, b := range bandDefs {
		p.bands = append(p.bands, b.Priority)
		p.queues[b.Priority] = newMPMCQueue(qCap)
	}

	// Build the weighted selection table: band i (0-indexed, highest
	// priority first since bands are declared ascending-preference)
	// appears (Q-i) times, so higher-priority bands are visited more
	// often by each worker's cursor.
	sortBandsAscending(p.bands)
	n := len(p.bands)
	for i, pr := range p.bands {
		w := weights[i]
		if w <= 0 {
			w = n - i
			if w <= 0 {
				w = 1
			}
		}
		for k := 0; k < w; k++ {
			p.weights = append(p.weights, pr)
		}
	}

	workers := resolveWorkerCount(params.Workers)
	p.workerCountHint = workers
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// errPanic is the stored error a recovered fibre panic is reported as.
var errPanic = &panicError{}

type panicError struct{}

func (*panicError) Error() string { return "fibre panicked" }

// resolveWorkerCount applies ThreadPoolParams.Workers' three-way contract.
func resolveWorkerCount(workers *int) int {
	if workers == nil {
		return runtime.GOMAXPROCS(0)
	}
	n := *workers
	if n >= 0 {
		return n
	}
	n = runtime.GOMAXPROCS(0) + n
	if n < 1 {
		n = 1
	}
	return n
}

func sortBandsAscending(bands []int32) {
	for i := 1; i < len(bands); i++ {
		for j := i; j > 0 && bands[j-1] > bands[j]; j-- {
			bands[j-1], bands[j] = bands[j], bands[j-1]
		}
	}
}

func (p *ThreadPool) floorPriority(pr int32) int32 {
	best := p.bands[0]
	matched := false
	for _, b := range p.bands {
		if b == pr {
			return b
		}
		if b < pr {
			best = b
		}
		if b <= pr {
			matched = true
		}
	}
	if !matched {
		logAt(LevelError, "priority %d below lowest declared band; using lowest band", pr)
	} else {
		logAt(LevelError, "priority %d does not match a declared band; using band %d", pr, best)
	}
	return best
}

// Start places frame onto the lower-bound matching band's queue,
// spin-pushing with try_push until it succeeds — the caller feels
// back-pressure as a block rather than a rejection. May block
// indefinitely if the target queue stays full.
func (p *ThreadPool) Start(frame *Frame, priority int32, name string) ID {
	frame.name = name
	frame.priority = priority
	band := p.floorPriority(priority)
	q := p.queues[band]
	for !q.TryPush(frame) {
		time.Sleep(p.idleSleep)
	}
	p.running.Add(1)
	return frame.ID()
}

// CancelAll pauses the pool, clears every band's queue (destroying every
// queued frame), then unpauses.
func (p *ThreadPool) CancelAll() {
	p.paused.Store(true)
	defer p.paused.Store(false)
	for _, q := range p.queues {
		for {
			f, ok := q.TryPop()
			if !ok {
				break
			}
			f.cancel()
			p.running.Add(-1)
		}
	}
}

// MoveIn is the migration-target contract: a single non-blocking push
// attempt onto the matching band's queue.
func (p *ThreadPool) MoveIn(f *Frame, priority *int32) bool {
	old := f.Priority()
	if priority != nil {
		f.SetPriority(*priority)
	}
	band := p.floorPriority(f.Priority())
	if p.queues[band].TryPush(f) {
		p.running.Add(1)
		return true
	}
	f.SetPriority(old)
	return false
}

// Empty reports whether every band's queue is currently empty.
func (p *ThreadPool) Empty() bool {
	for _, q := range p.queues {
		if q.Len() > 0 {
			return false
		}
	}
	return true
}

// RunningCount returns the number of fibres currently owned by this pool.
func (p *ThreadPool) RunningCount() int { return int(p.running.Load()) }

// WorkerCount returns the number of active worker goroutines (0 in
// manual mode).
func (p *ThreadPool) WorkerCount() int {
	// wg has no direct counter accessor; callers needing this in manual
	// mode already know it's zero since NewThreadPool never spawns.
	return p.workerCountHint
}

// Update synchronously drains ready fibres on the calling goroutine until
// predicate returns false or no fibre is ready — the manual-mode driving
// primitive for pools started with Workers pointing at 0.
func (p *ThreadPool) Update(predicate func() bool) {
	for predicate == nil || predicate() {
		if !p.stepOnce() {
			return
		}
	}
}

// UpdateTimeSlice synchronously drains for up to d before returning.
func (p *ThreadPool) UpdateTimeSlice(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if !p.stepOnce() {
			return
		}
	}
}

// Wait blocks the calling goroutine while any queue is non-empty, up to
// timeout (0 means no timeout), returning the observed emptiness. Not
// fully reliable: a fibre may be mid-flight between pop and try_push.
func (p *ThreadPool) Wait(timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if p.Empty() {
			return true
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(p.idleSleep)
	}
}

// workerLoop is the body every pool worker goroutine runs: pause-aware
// weighted pop, resume, reinsert-or-drop.
func (p *ThreadPool) workerLoop() {
	defer p.wg.Done()
	cursor := 0
	for !p.quit.Load() {
		if p.paused.Load() {
			time.Sleep(p.idleSleep)
			continue
		}
		f, band, ok := p.popWeighted(&cursor)
		if !ok {
			time.Sleep(p.idleSleep)
			continue
		}
		p.resumeAndRoute(f, band)
	}
}

func (p *ThreadPool) popWeighted(cursor *int) (*Frame, int32, bool) {
	n := len(p.weights)
	for i := 0; i < n; i++ {
		band := p.weights[*cursor]
		*cursor = (*cursor + 1) % n
		if f, ok := p.queues[band].TryPop(); ok {
			return f, band, true
		}
	}
	return nil, 0, false
}

// stepOnce resumes exactly one ready fibre, used by the manual-mode
// Update/UpdateTimeSlice drivers. Unlike workerLoop it does a single pass
// over bands rather than consulting a worker's private cursor.
func (p *ThreadPool) stepOnce() bool {
	for _, band := range p.bands {
		if f, ok := p.queues[band].TryPop(); ok {
			p.resumeAndRoute(f, band)
			return true
		}
	}
	return false
}

func (p *ThreadPool) resumeAndRoute(f *Frame, band int32) {
	outcome := p.resumeFrame(f)
	switch outcome.Kind {
	case OutcomeSleep:
		p.requeue(f, band)
	case OutcomeContinue:
		target := band
		pos := PositionBack
		if outcome.Reschedule != nil {
			target = p.floorPriority(outcome.Reschedule.Priority)
			pos = outcome.Reschedule.Position
			f.SetPriority(outcome.Reschedule.Priority)
		}
		p.requeueAt(f, target, pos)
	case OutcomeMoved:
		p.completeMigration(f)
		p.running.Add(-1)
	case OutcomeExpired:
		p.running.Add(-1)
	case OutcomeException:
		p.running.Add(-1)
		logAt(LevelError, "fibre %s (%s) raised: %v", f.ID(), f.Name(), outcome.Err)
	}
}

// requeue reinserts f onto band's queue via try_push, re-resuming
// immediately on this worker if the queue is momentarily full. This
// trades starvation risk for deadlock avoidance rather than ever
// dropping a live fibre.
func (p *ThreadPool) requeue(f *Frame, band int32) {
	p.requeueAt(f, band, PositionBack)
}

// requeueAt ignores its Position argument: each band's queue is an MPMC
// ring buffer reached only through try_push (§4.5), which has no
// front-insertion operation, so a reschedule-to-front request degrades to
// an ordinary back-insert on the pool. The single-threaded Scheduler's
// deque is where PositionFront actually takes effect.
func (p *ThreadPool) requeueAt(f *Frame, band int32, _ Position) {
	q := p.queues[band]
	for !q.TryPush(f) {
		outcome := p.resumeFrame(f)
		switch outcome.Kind {
		case OutcomeSleep, OutcomeContinue:
			continue
		case OutcomeMoved:
			p.completeMigration(f)
			p.running.Add(-1)
			return
		case OutcomeExpired:
			p.running.Add(-1)
			return
		case OutcomeException:
			p.running.Add(-1)
			logAt(LevelError, "fibre %s (%s) raised: %v", f.ID(), f.Name(), outcome.Err)
			return
		}
	}
}

func (p *ThreadPool) resumeFrame(f *Frame) (outcome Outcome) {
	now := p.clock.Update()
	defer func() {
		if r := recover(); r != nil {
			p.panicFn(f.ID(), f.Name(), r)
			f.err = errPanic
			f.destroy()
			outcome = Outcome{Kind: OutcomeException, Err: f.err}
		}
	}()
	return f.Resume(now)
}

func (p *ThreadPool) completeMigration(f *Frame) {
	m := f.takeMigration()
	if m == nil {
		return
	}
	sm, id, priority, name := f.release()
	nf := adoptFrame(sm, id, priority, name, m.priority)
	if m.target.MoveIn(nf, nil) {
		return
	}
	// Target rejected the transfer: retry locally with the adopted frame,
	// since the original f is already inert after release. The frame
	// keeps its pending migration, so its next Resume retries the move
	// directly instead of advancing the state machine past it.
	nf.migration = m
	band := p.floorPriority(nf.Priority())
	for !p.queues[band].TryPush(nf) {
		time.Sleep(p.idleSleep)
	}
	p.running.Add(1)
}

// Close stops every worker goroutine, cancels every queued fibre, and
// joins. Mirrors go-task-runner's pool shutdown: set quit, wait for the
// workers, then drain.
func (p *ThreadPool) Close() {
	p.quit.Store(true)
	p.wg.Wait()
	p.CancelAll()
}
