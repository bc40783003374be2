package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider exposes the point-in-time counts a
// SnapshotPoller needs from a fibre.Scheduler.
type SchedulerSnapshotProvider interface {
	RunningCount() int
	Empty() bool
}

// ThreadPoolSnapshotProvider exposes the point-in-time counts a
// SnapshotPoller needs from a fibre.ThreadPool.
type ThreadPoolSnapshotProvider interface {
	RunningCount() int
	WorkerCount() int
	Empty() bool
}

// SnapshotPoller periodically exports Scheduler/ThreadPool snapshots into
// Prometheus gauges, for callers who'd rather poll than thread Record*
// calls through every resume. Grounded on go-task-runner's
// observability/prometheus/snapshot_poller.go (SnapshotPoller: named
// providers registered by the caller, polled on a ticker, exported as
// gauges), generalized from runner/pool task-queue Stats() to
// scheduler/pool fibre counts.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]ThreadPoolSnapshotProvider

	schedulerRunning *prom.GaugeVec
	schedulerEmpty   *prom.GaugeVec

	poolRunning *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolEmpty   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its
// collectors under namespace (default "fibre").
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "fibre"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_running_fibres",
		Help:      "Running-fibre count snapshot per scheduler.",
	}, []string{"scheduler"})
	schedulerEmpty := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_empty",
		Help:      "Scheduler empty state (1=empty, 0=has fibres).",
	}, []string{"scheduler"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_running_fibres",
		Help:      "Running-fibre count snapshot per thread pool.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_workers",
		Help:      "Worker goroutine count per thread pool.",
	}, []string{"pool"})
	poolEmpty := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_empty",
		Help:      "Thread pool empty state (1=empty, 0=has fibres).",
	}, []string{"pool"})

	var err error
	if schedulerRunning, err = registerCollector(reg, schedulerRunning); err != nil {
		return nil, err
	}
	if schedulerEmpty, err = registerCollector(reg, schedulerEmpty); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolEmpty, err = registerCollector(reg, poolEmpty); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		schedulers:       make(map[string]SchedulerSnapshotProvider),
		pools:            make(map[string]ThreadPoolSnapshotProvider),
		schedulerRunning: schedulerRunning,
		schedulerEmpty:   schedulerEmpty,
		poolRunning:      poolRunning,
		poolWorkers:      poolWorkers,
		poolEmpty:        poolEmpty,
	}, nil
}

// AddScheduler registers a Scheduler to be polled under name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// AddThreadPool registers a ThreadPool to be polled under name.
func (p *SnapshotPoller) AddThreadPool(name string, provider ThreadPoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	for name, provider := range p.schedulers {
		p.schedulerRunning.WithLabelValues(name).Set(float64(provider.RunningCount()))
		if provider.Empty() {
			p.schedulerEmpty.WithLabelValues(name).Set(1)
		} else {
			p.schedulerEmpty.WithLabelValues(name).Set(0)
		}
	}
	p.schedulersMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		p.poolRunning.WithLabelValues(name).Set(float64(provider.RunningCount()))
		p.poolWorkers.WithLabelValues(name).Set(float64(provider.WorkerCount()))
		if provider.Empty() {
			p.poolEmpty.WithLabelValues(name).Set(1)
		} else {
			p.poolEmpty.WithLabelValues(name).Set(0)
		}
	}
	p.poolsMu.RUnlock()
}
