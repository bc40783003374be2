// Package prometheus adapts fibre scheduling events to Prometheus
// collectors: running-fibre gauges per priority band, a resume-duration
// histogram, and exception/migration counters. Grounded on go-task-runner's
// observability/prometheus/metrics_exporter.go (NewMetricsExporter:
// namespace-scoped collectors, idempotent registration via
// registerCollector's AlreadyRegisteredError recovery), generalized from
// per-runner task metrics to per-band fibre metrics.
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter records fibre scheduling activity as Prometheus metrics.
// A Scheduler or ThreadPool can be wired to report through its Record*
// methods, without the core package importing Prometheus itself.
type MetricsExporter struct {
	resumeDurationSeconds *prom.HistogramVec
	runningFibres         *prom.GaugeVec
	exceptionsTotal       *prom.CounterVec
	migrationsTotal       *prom.CounterVec
	moveQueueFullTotal    *prom.CounterVec
}

// NewMetricsExporter creates and registers Prometheus collectors under
// namespace (default "fibre"), on reg (default prom.DefaultRegisterer).
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "fibre"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "resume_duration_seconds",
		Help:      "Time spent inside a single Frame.Resume call.",
		Buckets:   buckets,
	}, []string{"scheduler", "band"})
	runningVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "running_fibres",
		Help:      "Number of fibres currently queued or executing, per band.",
	}, []string{"scheduler", "band"})
	exceptionVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "exceptions_total",
		Help:      "Total number of fibre state machines that aborted with an exception.",
	}, []string{"scheduler"})
	migrationVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "migrations_total",
		Help:      "Total number of migration attempts, by outcome.",
	}, []string{"source", "outcome"})
	moveQueueFullVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "move_queue_full_total",
		Help:      "Total number of migration attempts rejected because the target ingress queue was full.",
	}, []string{"target"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if runningVec, err = registerCollector(reg, runningVec); err != nil {
		return nil, err
	}
	if exceptionVec, err = registerCollector(reg, exceptionVec); err != nil {
		return nil, err
	}
	if migrationVec, err = registerCollector(reg, migrationVec); err != nil {
		return nil, err
	}
	if moveQueueFullVec, err = registerCollector(reg, moveQueueFullVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		resumeDurationSeconds: durationVec,
		runningFibres:         runningVec,
		exceptionsTotal:       exceptionVec,
		migrationsTotal:       migrationVec,
		moveQueueFullTotal:    moveQueueFullVec,
	}, nil
}

// RecordResumeDuration records how long one Resume call took, for
// whichever band the resumed frame belonged to.
func (m *MetricsExporter) RecordResumeDuration(scheduler string, band int32, d time.Duration) {
	if m == nil {
		return
	}
	m.resumeDurationSeconds.WithLabelValues(normalizeLabel(scheduler, "unknown"), bandLabel(band)).Observe(d.Seconds())
}

// RecordRunningFibres sets the current queued-or-running count for a band.
func (m *MetricsExporter) RecordRunningFibres(scheduler string, band int32, count int) {
	if m == nil {
		return
	}
	m.runningFibres.WithLabelValues(normalizeLabel(scheduler, "unknown"), bandLabel(band)).Set(float64(count))
}

// RecordException increments the exception counter for a scheduler.
func (m *MetricsExporter) RecordException(scheduler string) {
	if m == nil {
		return
	}
	m.exceptionsTotal.WithLabelValues(normalizeLabel(scheduler, "unknown")).Inc()
}

// RecordMigration increments the migration counter for a source,
// outcome being "success" or "retry".
func (m *MetricsExporter) RecordMigration(source string, outcome string) {
	if m == nil {
		return
	}
	m.migrationsTotal.WithLabelValues(normalizeLabel(source, "unknown"), normalizeLabel(outcome, "unknown")).Inc()
}

// RecordMoveQueueFull increments the move-queue-full counter for target.
func (m *MetricsExporter) RecordMoveQueueFull(target string) {
	if m == nil {
		return
	}
	m.moveQueueFullTotal.WithLabelValues(normalizeLabel(target, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func bandLabel(priority int32) string {
	return strconv.FormatInt(int64(priority), 10)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
