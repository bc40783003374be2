package gen

import (
	"testing"

	"fibre/core"
)

func TestSpawn_YieldThenComplete(t *testing.T) {
	var ran []string
	sm := Spawn(func(y *Yielder) {
		ran = append(ran, "before")
		y.Yield()
		ran = append(ran, "after")
	})
	f := core.NewFrame("t", sm)

	out := f.Resume(0)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("first resume = %v, want Continue", out.Kind)
	}
	if len(ran) != 1 || ran[0] != "before" {
		t.Fatalf("body should have run up to its first Yield, got %v", ran)
	}

	out = f.Resume(1)
	if out.Kind != core.OutcomeExpired {
		t.Fatalf("second resume = %v, want Expired once the body returns", out.Kind)
	}
	if len(ran) != 2 || ran[1] != "after" {
		t.Fatalf("body should have resumed past Yield, got %v", ran)
	}
}

func TestSpawn_PanicIsSurfacedAsException(t *testing.T) {
	sm := Spawn(func(y *Yielder) {
		panic("boom")
	})
	f := core.NewFrame("t", sm)

	out := f.Resume(0)
	if out.Kind != core.OutcomeException {
		t.Fatalf("resume on a panicking body = %v, want Exception", out.Kind)
	}
	if out.Err == nil {
		t.Fatal("a panicking body should produce a non-nil Err")
	}
}

func TestSpawn_SleepDeadlineBlocksUntilDue(t *testing.T) {
	sm := Spawn(func(y *Yielder) {
		y.Sleep(5)
		y.Yield()
	})
	f := core.NewFrame("t", sm)

	out := f.Resume(0)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("first resume = %v, want Continue", out.Kind)
	}
	out = f.Resume(2)
	if out.Kind != core.OutcomeSleep {
		t.Fatalf("resume before the sleep deadline = %v, want Sleep", out.Kind)
	}
	out = f.Resume(5)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("resume at the sleep deadline = %v, want Continue", out.Kind)
	}
}

func TestSpawn_WaitBlocksUntilPredicateTrue(t *testing.T) {
	ready := false
	sm := Spawn(func(y *Yielder) {
		y.Wait(func() bool { return ready })
		y.Yield()
	})
	f := core.NewFrame("t", sm)

	f.Resume(0)
	out := f.Resume(1)
	if out.Kind != core.OutcomeSleep {
		t.Fatalf("resume before predicate true = %v, want Sleep", out.Kind)
	}

	ready = true
	out = f.Resume(2)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("resume after predicate true = %v, want Continue", out.Kind)
	}
}

func TestSpawn_CloseUnparksBodyViaKillSignal(t *testing.T) {
	started := make(chan struct{})
	sm := Spawn(func(y *Yielder) {
		close(started)
		y.Yield() // parks here until Close kills it
	})
	f := core.NewFrame("t", sm)

	f.Resume(0)
	<-started

	sm.Close()
	if !sm.Done() {
		t.Fatal("machine should report Done after Close")
	}
	if sm.Err() != nil {
		t.Fatal("a killed-via-Close body should not report an Err (not a real panic)")
	}
}

func TestSpawn_CloseBeforeStartIsNoop(t *testing.T) {
	sm := Spawn(func(y *Yielder) { y.Yield() })
	sm.Close()
	if !sm.Done() {
		t.Fatal("Close before Advance should mark the machine done without starting it")
	}
}

type stubTarget struct{ accepted *core.Frame }

func (s *stubTarget) MoveIn(f *core.Frame, priority *int32) bool {
	s.accepted = f
	return true
}

func TestSpawn_MigrateProducesMovedOutcome(t *testing.T) {
	target := &stubTarget{}
	sm := Spawn(func(y *Yielder) {
		y.Migrate(target, nil)
		y.Yield()
	})
	f := core.NewFrame("t", sm)

	out := f.Resume(0)
	if out.Kind != core.OutcomeMoved {
		t.Fatalf("resume on Migrate = %v, want Moved", out.Kind)
	}
}

func TestSpawn_RescheduleCarriesPriorityAndPosition(t *testing.T) {
	sm := Spawn(func(y *Yielder) {
		y.Reschedule(5, core.PositionFront)
		y.Yield()
	})
	f := core.NewFrame("t", sm)

	out := f.Resume(0)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("resume on Reschedule = %v, want Continue", out.Kind)
	}
	if out.Reschedule == nil || out.Reschedule.Priority != 5 || out.Reschedule.Position != core.PositionFront {
		t.Fatalf("outcome.Reschedule = %+v, want {5 Front}", out.Reschedule)
	}
}

func TestSpawn_WaitFibreResolvesOnceTargetStopsRunning(t *testing.T) {
	other := core.NewFrame("other", Spawn(func(y *Yielder) {}))
	otherID := other.ID()

	sm := Spawn(func(y *Yielder) {
		y.WaitFibre(otherID)
		y.Yield()
	})
	f := core.NewFrame("t", sm)

	f.Resume(0)
	if !otherID.Running() {
		t.Fatal("other should still be marked running before it is resumed")
	}
	out := f.Resume(1)
	if out.Kind != core.OutcomeSleep {
		t.Fatalf("resume while the awaited fibre is still running = %v, want Sleep", out.Kind)
	}

	other.Resume(0) // completes immediately, clearing otherID's running bit
	out = f.Resume(2)
	if out.Kind != core.OutcomeContinue {
		t.Fatalf("resume once the awaited fibre stopped running = %v, want Continue", out.Kind)
	}
}
