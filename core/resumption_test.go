package core

import "testing"

func TestSuspendSleep_NonPositiveIsYield(t *testing.T) {
	for _, s := range []float64{0, -1, -0.5} {
		got := SuspendSleep(s)
		if got.kind != suspendYield {
			t.Fatalf("SuspendSleep(%v).kind = %v, want suspendYield", s, got.kind)
		}
	}
}

func TestSuspendSleep_Positive(t *testing.T) {
	got := SuspendSleep(2.5)
	if got.kind != suspendSleep || got.seconds != 2.5 {
		t.Fatalf("SuspendSleep(2.5) = %+v, want kind=suspendSleep seconds=2.5", got)
	}
}

func TestSuspendWaitFibre(t *testing.T) {
	id := newID()
	got := SuspendWaitFibre(id)
	if got.kind != suspendWaitFibre || !got.waitID.Equal(id) {
		t.Fatalf("SuspendWaitFibre did not capture the id correctly")
	}
}

func TestOutcomeKind_String(t *testing.T) {
	cases := map[OutcomeKind]string{
		OutcomeContinue:  "Continue",
		OutcomeSleep:     "Sleep",
		OutcomeMoved:     "Moved",
		OutcomeExpired:   "Expired",
		OutcomeException: "Exception",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", int(kind), got, want)
		}
	}
}
