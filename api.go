package fibre

import (
	"fibre/core"
	"fibre/core/gen"
)

// Re-exported core types, so most callers only need to import the root
// package. Mirrors go-task-runner's types.go convenience re-export of core
// types into the root package namespace.
type (
	ID               = core.ID
	Frame            = core.Frame
	StateMachine     = core.StateMachine
	Suspension       = core.Suspension
	Outcome          = core.Outcome
	OutcomeKind      = core.OutcomeKind
	Position         = core.Position
	Reschedule       = core.Reschedule
	MoveTarget       = core.MoveTarget
	Scheduler        = core.Scheduler
	ThreadPool       = core.ThreadPool
	SchedulerParams  = core.SchedulerParams
	ThreadPoolParams = core.ThreadPoolParams
	Band             = core.Band
	Clock            = core.Clock
	Time             = core.Time
	ExceptionPolicy  = core.ExceptionPolicy
	Level            = core.Level
	Hook             = core.Hook
	Yielder          = gen.Yielder
	Body             = gen.Body
)

const (
	PositionBack  = core.PositionBack
	PositionFront = core.PositionFront

	OutcomeContinue  = core.OutcomeContinue
	OutcomeSleep     = core.OutcomeSleep
	OutcomeMoved     = core.OutcomeMoved
	OutcomeExpired   = core.OutcomeExpired
	OutcomeException = core.OutcomeException

	ExceptionRethrow = core.ExceptionRethrow
	ExceptionLog     = core.ExceptionLog

	LevelDebug = core.LevelDebug
	LevelInfo  = core.LevelInfo
	LevelWarn  = core.LevelWarn
	LevelError = core.LevelError
	LevelFatal = core.LevelFatal
)

var (
	NewFrame                 = core.NewFrame
	NewClock                 = core.NewClock
	NewScheduler             = core.NewScheduler
	NewThreadPool            = core.NewThreadPool
	DefaultBands             = core.DefaultBands
	DefaultSchedulerParams   = core.DefaultSchedulerParams
	DefaultThreadPoolParams  = core.DefaultThreadPoolParams
	LoadSchedulerParamsYAML  = core.LoadSchedulerParamsYAML
	LoadSchedulerParamsFile  = core.LoadSchedulerParamsFile
	LoadThreadPoolParamsYAML = core.LoadThreadPoolParamsYAML

	SuspendYield       = core.SuspendYield
	SuspendSleep       = core.SuspendSleep
	SuspendWait        = core.SuspendWait
	SuspendWaitTimeout = core.SuspendWaitTimeout
	SuspendWaitFibre   = core.SuspendWaitFibre
	SuspendReschedule  = core.SuspendReschedule
	SuspendMigrate     = core.SuspendMigrate

	SetLogHook   = core.SetLogHook
	ClearLogHook = core.ClearLogHook
	SetLogLevel  = core.SetLogLevel
	LogLevel     = core.LogLevel

	// Spawn builds a fibre state machine from an ordinary Go function (a
	// Body), running it on its own goroutine and suspending it at each
	// Yielder call.
	Spawn = gen.Spawn
)
