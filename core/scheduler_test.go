package core

import (
	"errors"
	"testing"
)

func newSchedulerForTest() *Scheduler {
	params := &SchedulerParams{
		Bands: []Band{
			{Priority: -10, Capacity: 64},
			{Priority: 0, Capacity: 64},
			{Priority: 10, Capacity: 64},
		},
		MoveQueueCapacity: 32,
	}
	clock := NewClock()
	clock.SetTimeFunc(func() float64 { return 0 })
	return NewScheduler(params, clock)
}

// A ticker fibre that yields three times; the scenario verifies it
// survives three updates and is still running after them.
func TestScheduler_TickerSurvivesManyCycles(t *testing.T) {
	s := newSchedulerForTest()
	sm := &scriptedMachine{steps: []Suspension{SuspendYield(), SuspendYield(), SuspendYield()}}
	f := NewFrame("ticker", sm)
	id := s.Start(f, 0, "ticker")

	for i := 0; i < 3; i++ {
		if err := s.UpdateAt(float64(i)); err != nil {
			t.Fatalf("UpdateAt(%d): %v", i, err)
		}
	}
	if !id.Running() {
		t.Fatal("ticker fibre should still be running after 3 yields")
	}
	if s.RunningCount() != 1 {
		t.Fatalf("RunningCount() = %d, want 1", s.RunningCount())
	}
}

func TestScheduler_CancelClearsRunningAndClosesStateMachine(t *testing.T) {
	s := newSchedulerForTest()
	sm := &scriptedMachine{steps: []Suspension{SuspendYield()}}
	f := NewFrame("t", sm)
	id := s.Start(f, 0, "t")

	if !s.Cancel(id) {
		t.Fatal("Cancel should find and remove the fibre")
	}
	if id.Running() {
		t.Fatal("id should no longer be running after Cancel")
	}
	if !sm.closed {
		t.Fatal("state machine should be Closed by Cancel")
	}
	if s.RunningCount() != 0 {
		t.Fatalf("RunningCount() = %d, want 0", s.RunningCount())
	}
}

// A producer/consumer pair: the consumer waits on a predicate that the
// test flips true after the first cycle.
func TestScheduler_WaitSignal(t *testing.T) {
	s := newSchedulerForTest()
	signaled := false

	producer := &scriptedMachine{steps: []Suspension{SuspendYield()}}
	pf := NewFrame("producer", producer)
	s.Start(pf, 0, "producer")

	consumer := &scriptedMachine{steps: []Suspension{SuspendWait(func() bool { return signaled }), SuspendYield()}}
	cf := NewFrame("consumer", consumer)
	consID := s.Start(cf, 0, "consumer")

	s.UpdateAt(0) // producer yields once (advances to completion next cycle); consumer advances to its wait
	if !consID.Running() {
		t.Fatal("consumer should still be waiting")
	}

	signaled = true
	s.UpdateAt(1)
	if consumer.i < 2 {
		t.Fatal("consumer should have advanced past its wait once the predicate flipped true")
	}
}

// A mixed depart+stay band: one fibre expires while a sibling in the same
// band merely yields. The per-band attempt bound must track the queue's
// live size, not a size cached at loop entry, or the departure's
// expired-count bump lets the sibling get popped and resumed a second
// time within the same cycle.
func TestScheduler_ExpiredSiblingDoesNotDoubleResumeBandmate(t *testing.T) {
	s := newSchedulerForTest()

	stays := &scriptedMachine{steps: []Suspension{SuspendYield(), SuspendYield()}}
	leaves := &scriptedMachine{} // Done() on its very first Advance

	sf := NewFrame("stays", stays)
	lf := NewFrame("leaves", leaves)

	s.Start(sf, 0, "stays")
	s.Start(lf, 0, "leaves")

	if err := s.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}

	if stays.i != 1 {
		t.Fatalf("stays.i = %d, want 1 (resumed exactly once this cycle)", stays.i)
	}
	if !leaves.closed {
		t.Fatal("leaves should have expired and been closed")
	}
	if s.RunningCount() != 1 {
		t.Fatalf("RunningCount() = %d, want 1 (only stays remains)", s.RunningCount())
	}
}

// Priority ordering: a band with lower numeric priority value is swept
// before a band with a higher one within a single Update cycle.
func TestScheduler_PriorityOrdering(t *testing.T) {
	s := newSchedulerForTest()
	var order []string

	// Each fibre first suspends on a wait whose predicate records its name;
	// on the second cycle the predicates run in band-sweep order.
	mkOrdered := func(name string) *scriptedMachine {
		return &scriptedMachine{steps: []Suspension{SuspendWait(func() bool {
			order = append(order, name)
			return true
		})}}
	}

	high := mkOrdered("high")
	low := mkOrdered("low")
	hf := NewFrame("high", high)
	lf := NewFrame("low", low)

	// Start low-priority-number band (-10) second, high-numbered band (10) first,
	// to confirm ordering is governed by priority, not insertion order.
	s.Start(lf, 10, "low")
	s.Start(hf, -10, "high")

	s.UpdateAt(0)
	// Both fibres suspend on their first resume; assert both ran (i
	// advanced) this cycle, which only holds if the scheduler visited both
	// bands.
	if high.i == 0 || low.i == 0 {
		t.Fatal("both bands should be swept within a single Update cycle")
	}

	s.UpdateAt(1)
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("predicate order = %v, want [high low] (band -10 before band 10)", order)
	}
}

func TestScheduler_PriorityBelowLowestBandUsesLowestBand(t *testing.T) {
	s := newSchedulerForTest()
	sm := &scriptedMachine{steps: []Suspension{SuspendYield()}}
	f := NewFrame("t", sm)
	s.Start(f, -999, "t") // below every declared band

	if err := s.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if sm.i != 1 {
		t.Fatal("fibre placed below the lowest band should still run in the lowest band")
	}
}

// Migration ping-pong: fibre on scheduler A migrates to scheduler B, which
// accepts it through MoveIn/drainMoveQueue.
func TestScheduler_MigrationPingPong(t *testing.T) {
	a := newSchedulerForTest()
	b := newSchedulerForTest()

	sm := &scriptedMachine{steps: []Suspension{SuspendMigrate(b, nil), SuspendYield()}}
	f := NewFrame("traveler", sm)
	id := a.Start(f, 0, "traveler")

	if err := a.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt on a: %v", err)
	}
	if a.RunningCount() != 0 {
		t.Fatalf("a.RunningCount() = %d, want 0 after migration", a.RunningCount())
	}
	if !id.Running() {
		t.Fatal("id must remain running throughout migration")
	}

	if err := b.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt on b: %v", err)
	}
	if b.RunningCount() != 1 {
		t.Fatalf("b.RunningCount() = %d, want 1 after drain", b.RunningCount())
	}
}

func TestScheduler_SelfAwaitNeverDeadlocks(t *testing.T) {
	s := newSchedulerForTest()
	var selfID ID
	sm := &scriptedMachine{}
	f := NewFrame("loner", sm)
	selfID = s.Start(f, 0, "loner")
	sm.steps = []Suspension{SuspendWaitFibre(selfID), SuspendYield()}

	if err := s.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if sm.i != 1 {
		t.Fatal("first cycle should advance the fibre to its self-await")
	}

	if err := s.UpdateAt(1); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if sm.i != 2 {
		t.Fatal("self-await should resolve as a yield on the very next cycle")
	}
}

func TestScheduler_ExceptionRethrowPropagatesToCaller(t *testing.T) {
	s := newSchedulerForTest()
	boom := errors.New("boom")
	sm := &scriptedMachine{steps: []Suspension{}, failErr: boom}
	f := NewFrame("bad", sm)
	s.Start(f, 0, "bad")

	err := s.UpdateAt(0)
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateAt() = %v, want %v", err, boom)
	}
}

func TestScheduler_ExceptionLogDropsFibreWithoutError(t *testing.T) {
	s := newSchedulerForTest()
	s.SetExceptionPolicy(ExceptionLog)
	boom := errors.New("boom")
	sm := &scriptedMachine{steps: []Suspension{}, failErr: boom}
	f := NewFrame("bad", sm)
	s.Start(f, 0, "bad")

	if err := s.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt() = %v, want nil under ExceptionLog", err)
	}
	if s.RunningCount() != 0 {
		t.Fatalf("RunningCount() = %d, want 0 after dropping the failed fibre", s.RunningCount())
	}
}

func TestScheduler_RescheduleMovesBetweenBands(t *testing.T) {
	s := newSchedulerForTest()
	sm := &scriptedMachine{steps: []Suspension{SuspendReschedule(10, PositionBack), SuspendYield()}}
	f := NewFrame("mover", sm)
	s.Start(f, 0, "mover")

	if err := s.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if f.Priority() != 10 {
		t.Fatalf("Priority() = %d, want 10 after reschedule", f.Priority())
	}
}

func TestScheduler_SleepDeadlineDoesNotAdvanceEarly(t *testing.T) {
	s := newSchedulerForTest()
	sm := &scriptedMachine{steps: []Suspension{SuspendSleep(10), SuspendYield()}}
	f := NewFrame("sleeper", sm)
	s.Start(f, 0, "sleeper")

	s.UpdateAt(0)
	s.UpdateAt(5) // still short of the 10s deadline
	if sm.i != 1 {
		t.Fatal("sleeping fibre must not advance before its deadline")
	}
	s.UpdateAt(10)
	if sm.i != 2 {
		t.Fatal("sleeping fibre should advance once its deadline is reached")
	}
}

func TestScheduler_CancelAllDestroysEveryFibre(t *testing.T) {
	s := newSchedulerForTest()
	var sms []*scriptedMachine
	for i := 0; i < 5; i++ {
		sm := &scriptedMachine{steps: []Suspension{SuspendYield()}}
		sms = append(sms, sm)
		s.Start(NewFrame("f", sm), 0, "f")
	}
	s.CancelAll()
	if s.RunningCount() != 0 {
		t.Fatalf("RunningCount() = %d, want 0", s.RunningCount())
	}
	for _, sm := range sms {
		if !sm.closed {
			t.Fatal("CancelAll must close every fibre's state machine")
		}
	}
}

// gods' redblacktree.Floor reports "found" for both an exact key match
// and a lower, non-exact one; floorBand must not treat that as "exact".
func TestScheduler_PriorityMismatchLogsOnNonExactFloor(t *testing.T) {
	s := newSchedulerForTest() // bands -10, 0, 10

	var logged []string
	SetLogHook(func(level Level, msg string) {
		if level == LevelError {
			logged = append(logged, msg)
		}
	})
	defer ClearLogHook()

	sm := &scriptedMachine{steps: []Suspension{SuspendYield()}}
	s.Start(NewFrame("t", sm), 5, "t") // floor is band 0, not an exact match

	if len(logged) != 1 {
		t.Fatalf("expected exactly one priority-mismatch log from Start, got %d: %v", len(logged), logged)
	}
}

// A migration that loses the race for the target's move queue must be
// retried as-is on the next cycle, never by re-entering the fibre body.
func TestScheduler_MigrationRetryOnFullQueueDoesNotAdvanceFibre(t *testing.T) {
	a := newSchedulerForTest()
	b := newSchedulerForTest()

	for i := 0; i < b.moveQueue.Cap(); i++ {
		filler := NewFrame("filler", &scriptedMachine{steps: []Suspension{SuspendYield()}})
		if !b.moveQueue.TryPush(filler) {
			t.Fatal("failed to saturate b's move queue")
		}
	}

	sm := &scriptedMachine{steps: []Suspension{SuspendMigrate(b, nil), SuspendYield()}}
	f := NewFrame("traveler", sm)
	a.Start(f, 0, "traveler")

	if err := a.UpdateAt(0); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if sm.i != 1 {
		t.Fatalf("sm.i = %d after first migrate attempt, want 1", sm.i)
	}
	if a.RunningCount() != 1 {
		t.Fatalf("a.RunningCount() = %d, want 1 (fibre retried locally)", a.RunningCount())
	}

	// b's move queue is still full: the retried attempt must fail again
	// without ever advancing the fibre past its migrate call.
	if err := a.UpdateAt(1); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if sm.i != 1 {
		t.Fatalf("sm.i = %d after retried migrate attempt, want still 1", sm.i)
	}

	for {
		if _, ok := b.moveQueue.TryPop(); !ok {
			break
		}
	}

	if err := a.UpdateAt(2); err != nil {
		t.Fatalf("UpdateAt: %v", err)
	}
	if a.RunningCount() != 0 {
		t.Fatalf("a.RunningCount() = %d, want 0 once the migration finally succeeds", a.RunningCount())
	}
}

func TestScheduler_EmptyReflectsBandsAndMoveQueue(t *testing.T) {
	s := newSchedulerForTest()
	if !s.Empty() {
		t.Fatal("freshly constructed scheduler should be empty")
	}
	sm := &scriptedMachine{steps: []Suspension{SuspendYield()}}
	s.Start(NewFrame("t", sm), 0, "t")
	if s.Empty() {
		t.Fatal("scheduler with a running fibre should not be empty")
	}
}
