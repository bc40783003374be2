package core

import "testing"

func TestID_NewIsRunning(t *testing.T) {
	id := newID()
	if !id.Valid() {
		t.Fatal("newID() produced an invalid id")
	}
	if !id.Running() {
		t.Fatal("newID() should start running")
	}
}

func TestID_ClearRunning(t *testing.T) {
	id := newID()
	id.clearRunning()
	if id.Running() {
		t.Fatal("clearRunning did not clear the running bit")
	}
	// Idempotent.
	id.clearRunning()
	if id.Running() {
		t.Fatal("second clearRunning flipped the bit back on")
	}
}

func TestID_CloneSharesRunningBit(t *testing.T) {
	id := newID()
	clone := id
	clone.clearRunning()
	if id.Running() {
		t.Fatal("clone's clearRunning should be observable from the original")
	}
}

func TestID_EqualityIgnoresRunningBit(t *testing.T) {
	id := newID()
	clone := id
	clone.clearRunning()
	if !id.Equal(clone) {
		t.Fatal("Equal should ignore the running bit")
	}

	other := newID()
	if id.Equal(other) {
		t.Fatal("two distinct ids compared equal")
	}
}

func TestID_CounterNeverCollidesWithSentinel(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := newID()
		if id.idValue|runningBit == invalidRaw {
			t.Fatalf("allocated id collided with the invalid sentinel: %#x", id.idValue)
		}
	}
}

func TestID_InvalidZeroValue(t *testing.T) {
	var zero ID
	if zero.Valid() {
		t.Fatal("zero-value ID should be invalid")
	}
	if zero.Running() {
		t.Fatal("zero-value ID should not report running")
	}
}
