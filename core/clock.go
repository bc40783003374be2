package core

import (
	"math"
	"sync/atomic"
	"time"
)

// DefaultQuantization is the tick granularity a Clock rounds samples down
// to when no explicit quantization is configured.
const DefaultQuantization = time.Microsecond

// Clock is a monotonic seconds-source. It samples a replaceable time
// function, quantizes the sample, and publishes it atomically so readers
// on any goroutine observe a consistent value. Grounded on
// KnightChaser-vrunq's TickClock (internal/sched/tickclock.go): an atomic
// tick counter fed by a single producer, generalized here from a
// push-style ticker channel to a pull-style Update() the scheduler drives
// itself once per run cycle.
type Clock struct {
	quantization time.Duration
	timeFunc     func() float64
	start        time.Time

	epochBits atomic.Uint64
	tick      atomic.Uint64
}

// NewClock creates a Clock whose default time function returns seconds
// since the call to NewClock.
func NewClock() *Clock {
	c := &Clock{
		quantization: DefaultQuantization,
		start:        time.Now(),
	}
	c.timeFunc = func() float64 {
		return time.Since(c.start).Seconds()
	}
	return c
}

// SetQuantization changes the rounding granularity. Not safe to call
// concurrently with Update.
func (c *Clock) SetQuantization(d time.Duration) {
	if d <= 0 {
		d = DefaultQuantization
	}
	c.quantization = d
}

// SetTimeFunc replaces the underlying time source. Not safe to call
// concurrently with Update; intended for tests and deterministic replay.
func (c *Clock) SetTimeFunc(f func() float64) {
	c.timeFunc = f
}

// Update samples the time function, quantizes it, stores it atomically,
// bumps the tick counter, and returns the new epoch time in seconds.
func (c *Clock) Update() float64 {
	raw := c.timeFunc()
	q := c.quantization.Seconds()
	quantized := raw
	if q > 0 {
		quantized = math.Floor(raw/q) * q
	}
	c.epochBits.Store(math.Float64bits(quantized))
	c.tick.Add(1)
	return quantized
}

// Epoch returns the last value stored by Update, in seconds.
func (c *Clock) Epoch() float64 {
	return math.Float64frombits(c.epochBits.Load())
}

// Tick returns how many times Update has been called.
func (c *Clock) Tick() uint64 {
	return c.tick.Load()
}
