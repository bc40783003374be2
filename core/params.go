package core

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Band declares one priority level a Scheduler or ThreadPool recognizes
// up front, plus a per-band Capacity value. Capacity is carried through
// YAML but is not used for sizing: Scheduler deques always start at the
// minimum capacity and grow, and ThreadPool queues are sized by
// ThreadPoolParams.QueueCapacity.
// Priorities that fall between declared bands round down to the nearest
// declared one (lower-bound band matching).
type Band struct {
	Priority int32 `yaml:"priority"`
	Capacity int   `yaml:"capacity"`
}

// SchedulerParams configures a single-threaded Scheduler. Mirrors the
// shape of go-task-runner's TaskSchedulerConfig (core/interfaces.go in
// go-task-runner: an optional-fields struct paired with a
// Default*Config() constructor), generalized from runner handler
// injection to the fibre scheduler's band/queue tuning knobs.
type SchedulerParams struct {
	// Bands lists the priority bands this scheduler recognizes, lowest
	// first. Must be non-empty; a zero value falls back to DefaultBands.
	Bands []Band `yaml:"bands"`

	// MoveQueueCapacity sizes the bounded MPMC ingress queue used for
	// cross-scheduler migration and MoveIn. Rounded up to a power of two.
	MoveQueueCapacity int `yaml:"move_queue_capacity"`

	// PanicHandler is invoked when a fibre's state machine panics during
	// Advance. Defaults to a handler that logs at Error and treats the
	// panic as a normal Exception outcome.
	PanicHandler func(id ID, name string, recovered any)
}

// DefaultBands is the out-of-the-box three-band layout (high/normal/low
// preference, since a lower value is scheduled first) most demos and
// tests use.
func DefaultBands() []Band {
	return []Band{
		{Priority: -10, Capacity: 64},
		{Priority: 0, Capacity: 64},
		{Priority: 10, Capacity: 64},
	}
}

// DefaultSchedulerParams returns a ready-to-use SchedulerParams.
func DefaultSchedulerParams() *SchedulerParams {
	return &SchedulerParams{
		Bands:             DefaultBands(),
		MoveQueueCapacity: 256,
		PanicHandler:      defaultPanicHandler,
	}
}

func defaultPanicHandler(id ID, name string, recovered any) {
	logAt(LevelError, "fibre %s (%s) panicked: %v", id, name, recovered)
}

// ThreadPoolParams configures a multi-threaded ThreadPool.
type ThreadPoolParams struct {
	// Bands lists the priority bands this pool recognizes, lowest first.
	Bands []Band `yaml:"bands"`

	// Weights gives each declared band's selection weight in the
	// worker's weighted band-pick. Must be the same length as Bands; a
	// nil or mismatched slice, or a zero entry, falls back to the biased
	// default of Q-i copies for the i-th band in ascending priority order.
	Weights []int `yaml:"weights"`

	// Workers is the worker-goroutine count, with three-way semantics:
	// nil means "use every hardware thread", a non-negative value is an
	// exact count (0 is manual mode: no background workers, the caller
	// drives Update itself), and a negative value k means
	// max(hardware-threads + k, 1).
	Workers *int `yaml:"workers"`

	// QueueCapacity sizes each band's bounded MPMC queue.
	QueueCapacity int `yaml:"queue_capacity"`

	PanicHandler func(id ID, name string, recovered any)
}

// DefaultThreadPoolParams returns a ready-to-use ThreadPoolParams. Weights
// is left nil so NewThreadPool's w<=0 fallback builds the biased
// n-i selection table spec §4.5 names (Q copies of band 0, Q-1 of band 1,
// …), rather than the equal-weight table an explicit all-1s slice would
// produce.
func DefaultThreadPoolParams() *ThreadPoolParams {
	return &ThreadPoolParams{
		Bands:         DefaultBands(),
		Weights:       nil,
		Workers:       nil,
		QueueCapacity: 256,
		PanicHandler:  defaultPanicHandler,
	}
}

// schedulerParamsFile mirrors the on-disk shape of SchedulerParams' YAML
// fields only (the handler fields aren't serializable).
type schedulerParamsFile struct {
	Bands             []Band `yaml:"bands"`
	MoveQueueCapacity int    `yaml:"move_queue_capacity"`
}

// LoadSchedulerParamsYAML reads a scheduler's band/capacity layout from
// YAML, overriding DefaultSchedulerParams. Grounded on
// KnightChaser-vrunq's internal/sched/config.go Load: defaults first,
// unmarshal over them, clamp anything nonsensical back to the default.
func LoadSchedulerParamsYAML(data []byte) (*SchedulerParams, error) {
	p := DefaultSchedulerParams()
	var file schedulerParamsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Bands) > 0 {
		p.Bands = file.Bands
	}
	if file.MoveQueueCapacity > 0 {
		p.MoveQueueCapacity = file.MoveQueueCapacity
	}
	return p, nil
}

// LoadSchedulerParamsFile reads and parses a YAML file at path, returning
// DefaultSchedulerParams unchanged if the file cannot be read (matching
// vrunq's Load: a missing config file is not an error, just a no-op).
func LoadSchedulerParamsFile(path string) *SchedulerParams {
	p := DefaultSchedulerParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	loaded, err := LoadSchedulerParamsYAML(data)
	if err != nil {
		return p
	}
	return loaded
}

// threadPoolParamsFile mirrors the on-disk YAML shape of ThreadPoolParams.
// Workers has no "unset" representation in YAML, so the file format only
// expresses the exact-count, manual-mode and negative (hardware-relative)
// cases; pass nil Workers in code to request "every hardware thread".
type threadPoolParamsFile struct {
	Bands         []Band `yaml:"bands"`
	Weights       []int  `yaml:"weights"`
	Workers       *int   `yaml:"workers"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// LoadThreadPoolParamsYAML reads a pool's band/weight/worker layout from
// YAML, overriding DefaultThreadPoolParams.
func LoadThreadPoolParamsYAML(data []byte) (*ThreadPoolParams, error) {
	p := DefaultThreadPoolParams()
	var file threadPoolParamsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Bands) > 0 {
		p.Bands = file.Bands
	}
	if len(file.Weights) == len(p.Bands) && len(file.Weights) > 0 {
		p.Weights = file.Weights
	}
	if file.Workers != nil {
		p.Workers = file.Workers
	}
	if file.QueueCapacity > 0 {
		p.QueueCapacity = file.QueueCapacity
	}
	return p, nil
}
