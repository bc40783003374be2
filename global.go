package fibre

import (
	"sync"

	"fibre/core"
)

// Global default ThreadPool helper, mirroring go-task-runner's
// InitGlobalThreadPool/GetGlobalThreadPool/ShutdownGlobalThreadPool
// singleton (pool.go in go-task-runner), adapted from a task-posting
// pool to a fibre-spawning one: convenient for callers who just want
// somewhere to run background fibres without managing a ThreadPool
// themselves.
var (
	globalPool *ThreadPool
	globalMu   sync.Mutex
)

// InitGlobalThreadPool initializes and starts the global ThreadPool with
// params (nil uses DefaultThreadPoolParams). Repeated calls after the
// first are no-ops.
func InitGlobalThreadPool(params *ThreadPoolParams) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return
	}
	globalPool = core.NewThreadPool(params, core.NewClock())
}

// GetGlobalThreadPool returns the global ThreadPool. Panics if
// InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *ThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		panic("fibre: global thread pool not initialized; call InitGlobalThreadPool first")
	}
	return globalPool
}

// ShutdownGlobalThreadPool stops every worker goroutine on the global
// pool, cancels every queued fibre, and clears the singleton so a
// subsequent InitGlobalThreadPool starts fresh.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		globalPool.Close()
		globalPool = nil
	}
}

// SpawnGlobal starts body as a fibre on the global ThreadPool under
// priority and name, returning its identifier. Requires
// InitGlobalThreadPool to have been called.
func SpawnGlobal(priority int32, name string, body Body) ID {
	pool := GetGlobalThreadPool()
	return pool.Start(NewFrame(name, Spawn(body)), priority, name)
}
