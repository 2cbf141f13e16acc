package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the behavior system. It also
// implements Sink so it can sit next to a Router in a Fanout.
type Metrics struct {
	transitions  *prometheus.CounterVec
	results      *prometheus.CounterVec
	initFailures *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stackDepth   prometheus.Gauge
	ticks        prometheus.Counter

	lastStart map[string]time.Time
}

// MustNewMetrics constructs Metrics on reg. Collectors already registered with
// the same descriptors are reused so several managers may share a registry.
// Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "transitions_total",
			Help:      "Behavior switches performed by the system manager.",
		}, []string{"from", "to"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "behavior_results_total",
			Help:      "Terminal statuses reported by running behaviors.",
		}, []string{"behavior", "status"}),
		initFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "behavior_init_failures_total",
			Help:      "Behaviors that failed to initialize after being selected.",
		}, []string{"behavior"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "behavior_run_seconds",
			Help:      "Time a behavior stayed current.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"behavior"}),
		stackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "helper_stack_depth",
			Help:      "Helpers on the stack after the last tick.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robot",
			Subsystem: "behaviors",
			Name:      "ticks_total",
			Help:      "Update ticks processed by the system manager.",
		}),
		lastStart: map[string]time.Time{},
	}
	m.transitions = register(reg, m.transitions)
	m.results = register(reg, m.results)
	m.initFailures = register(reg, m.initFailures)
	m.runDuration = register(reg, m.runDuration)
	m.stackDepth = register(reg, m.stackDepth)
	m.ticks = register(reg, m.ticks)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveTick counts one tick and records the helper stack depth after it.
func (m *Metrics) ObserveTick(depth int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.stackDepth.Set(float64(depth))
}

// Publish implements Sink.
func (m *Metrics) Publish(e Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case KindTransition:
		if e.Transition == nil {
			return
		}
		from, to := string(e.Transition.OldID), string(e.Transition.NewID)
		m.transitions.WithLabelValues(from, to).Inc()
		if start, ok := m.lastStart[from]; ok {
			m.runDuration.WithLabelValues(from).Observe(e.At.Sub(start).Seconds())
			delete(m.lastStart, from)
		}
		m.lastStart[to] = e.At
	case KindResult:
		m.results.WithLabelValues(string(e.Behavior), e.Status.String()).Inc()
	case KindInitFailure:
		m.initFailures.WithLabelValues(string(e.Behavior)).Inc()
	}
}
