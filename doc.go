// Package fibre provides cooperative, user-space lightweight tasks
// ("fibres") scheduled either on a single-threaded priority run loop or
// across a multi-threaded worker pool.
//
// A fibre is an ordinary Go function run on its own goroutine via Spawn,
// which suspends itself at well-defined points using the Yielder handle
// it is passed: Yield, Sleep, Wait, WaitTimeout, WaitFibre, Reschedule,
// and Migrate. Nothing preempts a fibre; it runs until it calls one of
// these.
//
// # Quick start
//
//	sched := fibre.NewScheduler(fibre.DefaultSchedulerParams(), nil)
//
//	sched.Start(fibre.NewFrame("greeter", fibre.Spawn(func(y *fibre.Yielder) {
//		fmt.Println("hello")
//		y.Sleep(1)
//		fmt.Println("hello again")
//	})), 0, "greeter")
//
//	for !sched.Empty() {
//		sched.Update()
//	}
//
// # Schedulers and pools
//
// Scheduler is the single-threaded run loop: it drains one priority band
// at a time, lowest value first, and its Update call runs on the calling
// goroutine. ThreadPool runs N worker goroutines pulling from per-band
// lock-free MPMC queues, trading strict ordering for throughput.
//
// A fibre can move from one to the other with Migrate, naming the target
// Scheduler or ThreadPool (both satisfy MoveTarget) and an optional new
// priority.
//
// # Observability
//
// fibre/observability/prometheus exports running-fibre counts and
// resume-duration histograms as Prometheus collectors. Logging goes
// through the process-wide hook installed with SetLogHook.
package fibre
